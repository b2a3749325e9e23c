// Copyright 2025 Intmax2 Validity Prover
package forest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/intmax2-labs/validity-prover/pkg/database"
)

// DepositLeafInput is one deposit-leaf event to fold into the deposit
// tree for a block (§4.5 step 3).
type DepositLeafInput struct {
	DepositIndex uint64
	DepositHash  []byte
}

// AccountUpdateInput is one sender-registration / account-activity update
// to fold into the account tree (§4.5 step 4). Value is the account's
// last-block-number, encoded as a decimal string per the indexed tree's
// NUMERIC(78,0) convention.
type AccountUpdateInput struct {
	Key   string
	Value string
}

// BlockInputs carries everything ApplyBlock needs beyond the forest's own
// stored pre-state: the block hash and the deltas observed for this block.
type BlockInputs struct {
	BlockHash       []byte
	DepositLeaves   []DepositLeafInput
	AccountUpdates  []AccountUpdateInput
}

// Witness is the validity_witness artifact (§3, §4.2): pre/post roots for
// all three trees plus enough structural detail to reconstruct the
// transition circuit's inputs. Its exact encoding is opaque to the rest
// of the system beyond "the same block on the same pre-state reproduces
// the same bytes" (§4.2), which JSON marshaling with stable key order and
// no non-deterministic fields satisfies.
type Witness struct {
	BlockNumber uint32 `json:"block_number"`

	PreAccountRoot  []byte `json:"pre_account_root"`
	PostAccountRoot []byte `json:"post_account_root"`

	PreBlockHashRoot  []byte `json:"pre_block_hash_root"`
	PostBlockHashRoot []byte `json:"post_block_hash_root"`

	PreDepositRoot  []byte `json:"pre_deposit_root"`
	PostDepositRoot []byte `json:"post_deposit_root"`

	BlockHashPosition uint64 `json:"block_hash_position"`
	DepositPositions  []uint64 `json:"deposit_positions"`
	AccountPositions  []uint64 `json:"account_positions"`
}

// Encode serializes the witness deterministically.
func (w *Witness) Encode() ([]byte, error) {
	return json.Marshal(w)
}

// DecodeWitness parses a previously encoded witness.
func DecodeWitness(data []byte) (*Witness, error) {
	var w Witness
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode witness: %w", err)
	}
	return &w, nil
}

// ApplyBlock advances all three trees from preTimestamp's snapshot to a
// new post-state at timestamp, folding in this block's deposit-leaf and
// account-update deltas and appending its block hash. Every write uses
// the same timestamp so the post-state is visible as a single atomic
// snapshot version (§4.5: "single database transaction with a monotonic
// timestamp for all writes of this block").
func (f *Forest) ApplyBlock(ctx context.Context, tx *database.Tx, blockNumber uint32, preTimestamp, timestamp int64, in BlockInputs) (*Witness, error) {
	// Take the same advisory locks backup/prune takes (§4.7, §7 "Pruning
	// conflict") so a prune pass can never observe a half-written block.
	for _, tag := range []database.Tag{database.TagAccountTree, database.TagBlockHashTree, database.TagDepositTree} {
		if err := tx.AdvisoryLock(ctx, int(tag)); err != nil {
			return nil, fmt.Errorf("advisory lock tag %d: %w", tag, err)
		}
	}

	w := &Witness{BlockNumber: blockNumber}

	var err error
	if w.PreAccountRoot, err = f.Accounts.Root(ctx, preTimestamp); err != nil {
		return nil, fmt.Errorf("pre account root: %w", err)
	}
	if w.PreBlockHashRoot, err = f.BlockHashes.Root(ctx, preTimestamp); err != nil {
		return nil, fmt.Errorf("pre block-hash root: %w", err)
	}
	if w.PreDepositRoot, err = f.Deposits.Root(ctx, preTimestamp); err != nil {
		return nil, fmt.Errorf("pre deposit root: %w", err)
	}

	// Every tree's leaf count/low-leaf state is tracked here across the
	// loop, not re-read per item: all writes in this block share
	// `timestamp`, so a second item re-reading stored state at
	// timestamp-1 would see the same pre-block snapshot the first item
	// saw and silently collide with it (§4.5 "a monotonic timestamp for
	// all writes of this block" does not mean each write may ignore its
	// predecessors within the block).
	if len(in.DepositLeaves) > 0 {
		depositLen, err := f.Deposits.Len(ctx, preTimestamp)
		if err != nil {
			return nil, fmt.Errorf("deposit tree length: %w", err)
		}
		for _, leaf := range in.DepositLeaves {
			if err := f.Deposits.AppendHash(ctx, tx, timestamp, depositLen, leaf.DepositHash); err != nil {
				return nil, fmt.Errorf("append deposit leaf %d: %w", leaf.DepositIndex, err)
			}
			w.DepositPositions = append(w.DepositPositions, depositLen)
			depositLen++
		}
		if err := f.Deposits.FinalizeLen(ctx, tx, timestamp, depositLen); err != nil {
			return nil, fmt.Errorf("finalize deposit tree length: %w", err)
		}
	}

	if len(in.AccountUpdates) > 0 {
		accountLen, err := f.Accounts.Len(ctx, preTimestamp)
		if err != nil {
			return nil, fmt.Errorf("account tree length: %w", err)
		}
		for _, update := range in.AccountUpdates {
			pos, newLen, err := f.Accounts.Insert(ctx, tx, timestamp, accountLen, update.Key, update.Value)
			if err != nil {
				return nil, fmt.Errorf("update account %s: %w", update.Key, err)
			}
			w.AccountPositions = append(w.AccountPositions, pos)
			accountLen = newLen
		}
		if err := f.Accounts.FinalizeLen(ctx, tx, timestamp, accountLen); err != nil {
			return nil, fmt.Errorf("finalize account tree length: %w", err)
		}
	}

	blockHashLen, err := f.BlockHashes.Len(ctx, preTimestamp)
	if err != nil {
		return nil, fmt.Errorf("block-hash tree length: %w", err)
	}
	w.BlockHashPosition = blockHashLen
	if err := f.BlockHashes.AppendHash(ctx, tx, timestamp, blockHashLen, in.BlockHash); err != nil {
		return nil, fmt.Errorf("append block hash: %w", err)
	}
	if err := f.BlockHashes.FinalizeLen(ctx, tx, timestamp, blockHashLen+1); err != nil {
		return nil, fmt.Errorf("finalize block-hash tree length: %w", err)
	}

	if w.PostAccountRoot, err = f.Accounts.Root(ctx, timestamp); err != nil {
		return nil, fmt.Errorf("post account root: %w", err)
	}
	if w.PostBlockHashRoot, err = f.BlockHashes.Root(ctx, timestamp); err != nil {
		return nil, fmt.Errorf("post block-hash root: %w", err)
	}
	if w.PostDepositRoot, err = f.Deposits.Root(ctx, timestamp); err != nil {
		return nil, fmt.Errorf("post deposit root: %w", err)
	}

	return w, nil
}
