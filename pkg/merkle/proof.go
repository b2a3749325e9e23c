// Copyright 2025 Intmax2 Validity Prover
//
// Merkle Proof Computation and Verification
package merkle

import (
	"crypto/subtle"
	"fmt"
)

// InclusionProof is a sibling path from a leaf up to (but not including)
// the root, as read from a C1 snapshot at some timestamp T. Siblings[0]
// is the leaf's direct sibling; Siblings[Height-1] is the sibling of the
// node just below the root. Absent rows in the snapshot resolve to
// EmptySubtreeHash(level).
type InclusionProof struct {
	LeafIndex uint64
	Height    int
	Siblings  [][]byte
}

// ComputeRoot recomputes the root implied by leafHash and the proof path.
// At level i (0-indexed from the leaf), bit i of LeafIndex selects
// whether the current node is the right child (bit set) or left child of
// its parent.
func ComputeRoot(leafHash []byte, proof InclusionProof) ([]byte, error) {
	if len(proof.Siblings) != proof.Height {
		return nil, fmt.Errorf("%w: expected %d siblings, got %d", ErrInvalidProof, proof.Height, len(proof.Siblings))
	}
	current := leafHash
	for level := 0; level < proof.Height; level++ {
		sibling := proof.Siblings[level]
		if (proof.LeafIndex>>uint(level))&1 == 1 {
			current = HashNode(sibling, current)
		} else {
			current = HashNode(current, sibling)
		}
	}
	return current, nil
}

// VerifyProof reports whether proof authenticates leafHash against root.
func VerifyProof(root, leafHash []byte, proof InclusionProof) (bool, error) {
	computed, err := ComputeRoot(leafHash, proof)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, root) == 1, nil
}
