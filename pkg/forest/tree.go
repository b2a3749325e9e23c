// Copyright 2025 Intmax2 Validity Prover
//
// Package forest implements the Merkle Forest (C2): the account tree
// (indexed), block-hash tree (standard), and deposit tree (standard),
// built as two roles — Standard and Indexed — over the Versioned Merkle
// Store (C1). Both roles share the bottom-up hash recomputation walk;
// they differ only in how a leaf's payload and position are chosen.

package forest

import (
	"context"
	"fmt"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/merkle"
)

// recomputePath writes leafHash at position and every interior node on
// its root path, combining with the sibling hash read at each level
// (falling back to the canonical empty-subtree hash where no sibling has
// ever been written). It returns the new root.
func recomputePath(ctx context.Context, store *database.MerkleStore, tx *database.Tx, tag database.Tag, timestamp int64, position uint64, leafHash []byte, height int) ([]byte, error) {
	current := leafHash
	for level := 0; level < height; level++ {
		ancestorPos := position >> uint(level)
		path := merkle.NewBitPath(position, level, height)
		if err := store.WriteNode(ctx, tx, tag, timestamp, path, current); err != nil {
			return nil, fmt.Errorf("write node level %d: %w", level, err)
		}

		siblingPath := merkle.NewBitPath(position^(1<<uint(level)), level, height)
		sibling, err := store.ReadNode(ctx, tag, siblingPath, timestamp)
		if err != nil {
			return nil, fmt.Errorf("read sibling level %d: %w", level, err)
		}
		if sibling == nil {
			sibling = merkle.EmptySubtreeHash(level)
		}

		if ancestorPos&1 == 1 {
			current = merkle.HashNode(sibling, current)
		} else {
			current = merkle.HashNode(current, sibling)
		}
	}

	if err := store.WriteRoot(ctx, tx, tag, timestamp, current); err != nil {
		return nil, fmt.Errorf("write root: %w", err)
	}
	return current, nil
}
