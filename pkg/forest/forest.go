// Copyright 2025 Intmax2 Validity Prover
package forest

import "github.com/intmax2-labs/validity-prover/pkg/database"

// Default tree heights. The account tree and deposit tree use the
// intmax2 rollup's standard 32-level capacity; the block-hash tree is
// sized generously since a block is appended every block.
const (
	AccountTreeHeight   = 32
	BlockHashTreeHeight = 32
	DepositTreeHeight   = 32
)

// Forest aggregates the three Merkle Forest trees (C2) over a shared
// Versioned Merkle Store.
type Forest struct {
	Accounts   *IndexedTree
	BlockHashes *StandardTree
	Deposits   *StandardTree
}

func New(store *database.MerkleStore) *Forest {
	return &Forest{
		Accounts:    NewIndexedTree(store, AccountTreeHeight),
		BlockHashes: NewStandardTree(store, database.TagBlockHashTree, BlockHashTreeHeight),
		Deposits:    NewStandardTree(store, database.TagDepositTree, DepositTreeHeight),
	}
}
