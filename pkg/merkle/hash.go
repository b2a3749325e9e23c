// Copyright 2025 Intmax2 Validity Prover
//
// Hash primitives shared by the standard and indexed Merkle trees.
package merkle

import (
	"github.com/consensys/gnark-crypto/hash"
)

// EmptyLeafHash is the canonical hash of an unwritten leaf.
var EmptyLeafHash = hashBytes([]byte("intmax2/validity-prover/empty-leaf"))

func hashBytes(data []byte) []byte {
	h := hash.MIMC_BN254.New()
	h.Write(data)
	return h.Sum(nil)
}

// HashLeaf hashes raw leaf payload bytes into a leaf commitment. The same
// primitive used here must be re-derivable inside the transition circuit,
// which is why it is MiMC over BN254 rather than SHA-256.
func HashLeaf(payload []byte) []byte {
	return hashBytes(payload)
}

// HashNode combines two child hashes into their parent.
func HashNode(left, right []byte) []byte {
	combined := make([]byte, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	return hashBytes(combined)
}

// emptySubtreeHashes[i] is the hash of an entirely-empty subtree of
// height i (i=0 is a single empty leaf), precomputed once at package
// init so snapshot reads at absent rows resolve without walking a
// physical all-zero tree.
var emptySubtreeHashes = computeEmptySubtreeHashes(64)

func computeEmptySubtreeHashes(maxHeight int) [][]byte {
	levels := make([][]byte, maxHeight+1)
	levels[0] = EmptyLeafHash
	for i := 1; i <= maxHeight; i++ {
		levels[i] = HashNode(levels[i-1], levels[i-1])
	}
	return levels
}

// EmptySubtreeHash returns the precomputed hash of an empty subtree whose
// leaves are `height` levels below it (height 0 = a single empty leaf).
func EmptySubtreeHash(height int) []byte {
	if height < len(emptySubtreeHashes) {
		return emptySubtreeHashes[height]
	}
	h := emptySubtreeHashes[len(emptySubtreeHashes)-1]
	for i := len(emptySubtreeHashes) - 1; i < height; i++ {
		h = HashNode(h, h)
	}
	return h
}
