// Copyright 2025 Intmax2 Validity Prover
package forest

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/intmax2-labs/validity-prover/pkg/database"
)

func TestEncodeIndexedLeaf_Deterministic(t *testing.T) {
	row := database.IndexedLeafRow{Position: 1, NextIndex: 2, Key: "5", NextKey: "9", Value: "100"}

	a, err := encodeIndexedLeaf(row)
	if err != nil {
		t.Fatalf("encodeIndexedLeaf: %v", err)
	}
	b, err := encodeIndexedLeaf(row)
	if err != nil {
		t.Fatalf("encodeIndexedLeaf: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("encoding not deterministic: %x != %x", a, b)
	}
}

func TestEncodeIndexedLeaf_DistinctInputsDiffer(t *testing.T) {
	base := database.IndexedLeafRow{Position: 1, NextIndex: 2, Key: "5", NextKey: "9", Value: "100"}
	changedValue := base
	changedValue.Value = "101"

	a, err := encodeIndexedLeaf(base)
	if err != nil {
		t.Fatalf("encodeIndexedLeaf: %v", err)
	}
	b, err := encodeIndexedLeaf(changedValue)
	if err != nil {
		t.Fatalf("encodeIndexedLeaf: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("expected different hashes for different values")
	}
}

func TestEncodeIndexedLeaf_InvalidKey(t *testing.T) {
	row := database.IndexedLeafRow{Position: 1, NextIndex: 2, Key: "not-a-number", NextKey: "9", Value: "100"}
	if _, err := encodeIndexedLeaf(row); err == nil {
		t.Error("expected an error for a non-numeric key")
	}
}

func TestMaxIndexedKey_IsBelowFieldModulusMagnitude(t *testing.T) {
	if len(MaxIndexedKey) == 0 {
		t.Fatal("MaxIndexedKey must not be empty")
	}
	// BN254 scalar field modulus.
	modulus, _ := new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
	key, ok := new(big.Int).SetString(MaxIndexedKey, 10)
	if !ok {
		t.Fatalf("MaxIndexedKey %q is not a decimal integer", MaxIndexedKey)
	}
	if key.Cmp(modulus) >= 0 {
		t.Errorf("MaxIndexedKey %s is not below the BN254 scalar field modulus", MaxIndexedKey)
	}
}
