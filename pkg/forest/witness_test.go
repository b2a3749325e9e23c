// Copyright 2025 Intmax2 Validity Prover
package forest

import (
	"bytes"
	"testing"
)

func TestWitness_EncodeDecodeRoundTrip(t *testing.T) {
	w := &Witness{
		BlockNumber:       7,
		PreAccountRoot:    []byte{1},
		PostAccountRoot:   []byte{2},
		PreBlockHashRoot:  []byte{3},
		PostBlockHashRoot: []byte{4},
		PreDepositRoot:    []byte{5},
		PostDepositRoot:   []byte{6},
		BlockHashPosition: 7,
		DepositPositions:  []uint64{1, 2, 3},
		AccountPositions:  []uint64{4, 5},
	}

	encoded, err := w.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeWitness(encoded)
	if err != nil {
		t.Fatalf("DecodeWitness: %v", err)
	}

	if decoded.BlockNumber != w.BlockNumber {
		t.Errorf("BlockNumber = %d, want %d", decoded.BlockNumber, w.BlockNumber)
	}
	if !bytes.Equal(decoded.PostAccountRoot, w.PostAccountRoot) {
		t.Errorf("PostAccountRoot mismatch")
	}
	if len(decoded.DepositPositions) != 3 {
		t.Errorf("DepositPositions length = %d, want 3", len(decoded.DepositPositions))
	}
}

func TestWitness_Encode_Deterministic(t *testing.T) {
	w := &Witness{BlockNumber: 1, PostAccountRoot: []byte{9, 9}}

	a, err := w.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := w.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("same witness produced different encodings: %s != %s", a, b)
	}
}

func TestDecodeWitness_Invalid(t *testing.T) {
	if _, err := DecodeWitness([]byte("{invalid")); err == nil {
		t.Error("expected an error decoding malformed witness JSON")
	}
}
