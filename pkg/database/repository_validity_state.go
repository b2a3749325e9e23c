// Copyright 2025 Intmax2 Validity Prover
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ValidityStateRepository owns validity_state and tx_tree_roots (C5).
type ValidityStateRepository struct {
	client *Client
}

func NewValidityStateRepository(client *Client) *ValidityStateRepository {
	return &ValidityStateRepository{client: client}
}

// Insert writes the validity witness for a block and its tx-tree-root
// reverse-index entry in the caller's transaction. block_number must be
// exactly one greater than the current max, enforced by the caller
// (State Reconstructor), not by a database constraint, since the
// contiguity invariant spans a read-then-write that a UNIQUE constraint
// alone cannot express.
func (r *ValidityStateRepository) Insert(ctx context.Context, tx *Tx, blockNumber uint32, witness []byte, txTreeRoot []byte) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO validity_state (block_number, witness) VALUES ($1, $2)
		 ON CONFLICT (block_number) DO NOTHING`, blockNumber, witness); err != nil {
		return fmt.Errorf("insert validity_state %d: %w", blockNumber, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tx_tree_roots (root, block_number) VALUES ($1, $2)
		 ON CONFLICT (root) DO NOTHING`, txTreeRoot, blockNumber); err != nil {
		return fmt.Errorf("insert tx_tree_roots %d: %w", blockNumber, err)
	}
	return nil
}

// MaxBlockNumber returns the highest block_number present, or -1 if empty.
func (r *ValidityStateRepository) MaxBlockNumber(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.client.QueryRowContext(ctx, `SELECT MAX(block_number) FROM validity_state`).Scan(&max); err != nil {
		return -1, fmt.Errorf("max validity_state block number: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}

// Witness returns the stored witness bytes for a block, or nil if absent.
func (r *ValidityStateRepository) Witness(ctx context.Context, blockNumber uint32) ([]byte, error) {
	var witness []byte
	err := r.client.QueryRowContext(ctx,
		`SELECT witness FROM validity_state WHERE block_number = $1`, blockNumber).Scan(&witness)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("witness %d: %w", blockNumber, err)
	}
	return witness, nil
}

// BlockByTxTreeRoot implements GET /block-number-by-tx-tree-root/{root}.
func (r *ValidityStateRepository) BlockByTxTreeRoot(ctx context.Context, root []byte) (uint32, bool, error) {
	var blockNumber uint32
	err := r.client.QueryRowContext(ctx,
		`SELECT block_number FROM tx_tree_roots WHERE root = $1`, root).Scan(&blockNumber)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("block by tx tree root: %w", err)
	}
	return blockNumber, true, nil
}
