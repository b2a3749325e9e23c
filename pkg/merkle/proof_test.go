// Copyright 2025 Intmax2 Validity Prover
package merkle

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestComputeRoot_SingleLevel(t *testing.T) {
	leaf := HashLeaf([]byte("leaf 0"))
	sibling := HashLeaf([]byte("leaf 1"))

	proof := InclusionProof{LeafIndex: 0, Height: 1, Siblings: [][]byte{sibling}}
	root, err := ComputeRoot(leaf, proof)
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}

	want := HashNode(leaf, sibling)
	if !bytes.Equal(root, want) {
		t.Errorf("root mismatch: got %x, want %x", root, want)
	}

	ok, err := VerifyProof(want, leaf, proof)
	if err != nil || !ok {
		t.Errorf("VerifyProof failed: ok=%v err=%v", ok, err)
	}
}

func TestComputeRoot_RightChild(t *testing.T) {
	leaf0 := HashLeaf([]byte("leaf 0"))
	leaf1 := HashLeaf([]byte("leaf 1"))

	proof := InclusionProof{LeafIndex: 1, Height: 1, Siblings: [][]byte{leaf0}}
	root, err := ComputeRoot(leaf1, proof)
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}

	want := HashNode(leaf0, leaf1)
	if !bytes.Equal(root, want) {
		t.Errorf("root mismatch: got %x, want %x", root, want)
	}
}

func TestComputeRoot_WrongSiblingCountRejected(t *testing.T) {
	leaf := HashLeaf([]byte("leaf"))
	proof := InclusionProof{LeafIndex: 0, Height: 2, Siblings: [][]byte{EmptyLeafHash}}
	if _, err := ComputeRoot(leaf, proof); err == nil {
		t.Fatal("expected error for mismatched sibling count")
	}
}

func TestEmptySubtreeHash_Monotonic(t *testing.T) {
	h0 := EmptySubtreeHash(0)
	h1 := EmptySubtreeHash(1)
	if bytes.Equal(h0, h1) {
		t.Error("empty subtree hashes at different heights must differ")
	}
	if !bytes.Equal(h0, EmptyLeafHash) {
		t.Error("height-0 empty subtree hash must equal the empty leaf hash")
	}
}

func TestBitPath_RoundTrip(t *testing.T) {
	p := NewBitPath(0b1011, 0, 8)
	encoded := p.Encode()
	decoded, err := DecodeBitPath(encoded)
	if err != nil {
		t.Fatalf("DecodeBitPath: %v", err)
	}
	if !p.Equal(decoded) {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, p)
	}
}

func TestBitPath_AncestorPrefixesAgree(t *testing.T) {
	// The path to the ancestor at height 2 must be a prefix of the path
	// to the ancestor at height 0 (the leaf's direct parent chain).
	leafPath := NewBitPath(0b1011, 0, 8)
	ancestorPath := NewBitPath(0b1011, 2, 8)

	if len(ancestorPath.Bits) != len(leafPath.Bits)-2 {
		t.Fatalf("unexpected ancestor path length: %d", len(ancestorPath.Bits))
	}
	for i := range ancestorPath.Bits {
		if ancestorPath.Bits[i] != leafPath.Bits[i] {
			t.Errorf("ancestor path diverges from leaf path at bit %d", i)
		}
	}
}

func TestReceipt_ValidateRoundTrip(t *testing.T) {
	leaf := HashLeaf([]byte("leaf"))
	sibling := HashLeaf([]byte("sibling"))
	proof := InclusionProof{LeafIndex: 0, Height: 1, Siblings: [][]byte{sibling}}
	root, err := ComputeRoot(leaf, proof)
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}

	r := NewReceipt(leaf, root, 42, proof)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	encoded, err := r.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := ReceiptFromJSON(encoded)
	if err != nil {
		t.Fatalf("ReceiptFromJSON: %v", err)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("decoded.Validate: %v", err)
	}
	if decoded.BlockNumber != 42 {
		t.Errorf("block number round trip mismatch: got %d", decoded.BlockNumber)
	}
}

func TestReceipt_TamperedAnchorRejected(t *testing.T) {
	leaf := HashLeaf([]byte("leaf"))
	sibling := HashLeaf([]byte("sibling"))
	proof := InclusionProof{LeafIndex: 0, Height: 1, Siblings: [][]byte{sibling}}
	root, _ := ComputeRoot(leaf, proof)

	r := NewReceipt(leaf, root, 1, proof)
	r.Anchor = hex.EncodeToString(HashLeaf([]byte("tampered")))
	if err := r.Validate(); err == nil {
		t.Fatal("expected validation failure for tampered anchor")
	}
}
