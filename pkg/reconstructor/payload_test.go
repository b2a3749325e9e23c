// Copyright 2025 Intmax2 Validity Prover
package reconstructor

import (
	"encoding/json"
	"testing"

	"github.com/intmax2-labs/validity-prover/pkg/forest"
)

func TestDecodeBlockPayload_RoundTrip(t *testing.T) {
	in := BlockPayload{
		BlockHash:        []byte{1, 2, 3, 4},
		LastDepositIndex: 41,
		AccountUpdates: []forest.AccountUpdateInput{
			{Key: "7", Value: "100"},
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out, err := DecodeBlockPayload(data)
	if err != nil {
		t.Fatalf("DecodeBlockPayload: %v", err)
	}
	if out.LastDepositIndex != 41 {
		t.Errorf("LastDepositIndex = %d, want 41", out.LastDepositIndex)
	}
	if len(out.AccountUpdates) != 1 || out.AccountUpdates[0].Key != "7" {
		t.Errorf("AccountUpdates mismatch: %+v", out.AccountUpdates)
	}
}

func TestDecodeBlockPayload_Invalid(t *testing.T) {
	if _, err := DecodeBlockPayload([]byte("not json")); err == nil {
		t.Error("expected an error decoding malformed payload")
	}
}
