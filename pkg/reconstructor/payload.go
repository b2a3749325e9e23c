// Copyright 2025 Intmax2 Validity Prover
//
// Package reconstructor implements the State Reconstructor (C5): it
// replays full_blocks against the Merkle Forest to produce validity_state
// witnesses.

package reconstructor

import (
	"encoding/json"
	"fmt"

	"github.com/intmax2-labs/validity-prover/pkg/forest"
)

// BlockPayload is this repo's decoding of full_blocks.payload, the
// serialized block handed down by the L2 rollup contract's BlockPosted
// event. The wire encoding of that payload is rollup-contract-internal
// and out of scope for this system (§4.2 treats block-level artifacts as
// opaque structured data); this type is the boundary at which it becomes
// meaningful to the reconstructor.
type BlockPayload struct {
	BlockHash        []byte                      `json:"block_hash"`
	LastDepositIndex uint64                       `json:"last_deposit_index"`
	AccountUpdates   []forest.AccountUpdateInput  `json:"account_updates"`
}

// DecodeBlockPayload parses a full_blocks.payload blob.
func DecodeBlockPayload(payload []byte) (*BlockPayload, error) {
	var p BlockPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode block payload: %w", err)
	}
	return &p, nil
}
