// Copyright 2025 Intmax2 Validity Prover
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Cursor stream names, one per singleton watermark (§3 "Chain cursors").
const (
	StreamL1Deposits       = "l1_deposit_sync_eth_block_num"
	StreamL2DepositLeaves  = "l2_deposit_leaf_sync_eth_block_num"
	StreamL2BlocksPosted   = "l2_block_posted_sync_eth_block_num"
)

// CursorRepository owns the chain_cursors singleton watermarks.
type CursorRepository struct {
	client *Client
}

func NewCursorRepository(client *Client) *CursorRepository {
	return &CursorRepository{client: client}
}

// Get returns the current watermark for a stream, or 0 if never set.
func (r *CursorRepository) Get(ctx context.Context, stream string) (uint64, error) {
	var blockNumber int64
	err := r.client.QueryRowContext(ctx,
		`SELECT block_number FROM chain_cursors WHERE stream = $1`, stream).Scan(&blockNumber)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor %s: %w", stream, err)
	}
	return uint64(blockNumber), nil
}

// Advance moves the watermark forward within tx. Returns ErrReorgBeyondSafety
// if the new value would move the watermark backwards.
func (r *CursorRepository) Advance(ctx context.Context, tx *Tx, stream string, blockNumber uint64) error {
	var current int64
	err := tx.QueryRowContext(ctx,
		`SELECT block_number FROM chain_cursors WHERE stream = $1 FOR UPDATE`, stream).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("lock cursor %s: %w", stream, err)
	}
	if err == nil && blockNumber < uint64(current) {
		return fmt.Errorf("%w: stream=%s current=%d new=%d", ErrReorgBeyondSafety, stream, current, blockNumber)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chain_cursors (stream, block_number, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (stream) DO UPDATE SET block_number = EXCLUDED.block_number, updated_at = now()`,
		stream, blockNumber)
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", stream, err)
	}
	return nil
}
