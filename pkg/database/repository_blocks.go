// Copyright 2025 Intmax2 Validity Prover
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// FullBlock is one row of the L2 block timeline (C4).
type FullBlock struct {
	BlockNumber      uint32
	Payload          []byte
	LastDepositIndex *uint64
	L2BlockNumber    uint64
	L2TxIndex        int
}

// BlockRepository owns full_blocks (C4).
type BlockRepository struct {
	client *Client
}

func NewBlockRepository(client *Client) *BlockRepository {
	return &BlockRepository{client: client}
}

// Insert is idempotent on block_number conflict.
func (r *BlockRepository) Insert(ctx context.Context, tx *Tx, b FullBlock) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO full_blocks (block_number, payload, last_deposit_index, l2_block_number, l2_tx_index)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (block_number) DO NOTHING`,
		b.BlockNumber, b.Payload, b.LastDepositIndex, b.L2BlockNumber, b.L2TxIndex)
	if err != nil {
		return fmt.Errorf("insert full block %d: %w", b.BlockNumber, err)
	}
	return nil
}

// Get returns the block at blockNumber, or nil if absent.
func (r *BlockRepository) Get(ctx context.Context, blockNumber uint32) (*FullBlock, error) {
	b := &FullBlock{BlockNumber: blockNumber}
	err := r.client.QueryRowContext(ctx,
		`SELECT payload, last_deposit_index, l2_block_number, l2_tx_index FROM full_blocks WHERE block_number = $1`,
		blockNumber).Scan(&b.Payload, &b.LastDepositIndex, &b.L2BlockNumber, &b.L2TxIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get full block %d: %w", blockNumber, err)
	}
	return b, nil
}

// SetLastDepositIndex records the last deposit index a block's payload
// embeds, once the reconstructor has parsed it.
func (r *BlockRepository) SetLastDepositIndex(ctx context.Context, tx *Tx, blockNumber uint32, lastDepositIndex uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE full_blocks SET last_deposit_index = $1 WHERE block_number = $2`,
		lastDepositIndex, blockNumber)
	if err != nil {
		return fmt.Errorf("set last deposit index for block %d: %w", blockNumber, err)
	}
	return nil
}

// MaxBlockNumber returns the highest block number present, or -1 if
// full_blocks is empty. This is the raw maximum, which may sit past a gap
// (§4.4); the reconstructor discovers the gap itself by requesting the
// next contiguous block via Get and treating a miss as a stall.
func (r *BlockRepository) MaxBlockNumber(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.client.QueryRowContext(ctx, `SELECT MAX(block_number) FROM full_blocks`).Scan(&max); err != nil {
		return -1, fmt.Errorf("max block number: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}
