// Copyright 2025 Intmax2 Validity Prover
package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
)

// Deposit is one row of the L1 deposit log (§3 "Deposited events").
type Deposit struct {
	DepositID      uint64
	Depositor      []byte
	PubkeySaltHash []byte
	TokenIndex     uint64
	Amount         *big.Int
	IsEligible     bool
	DepositedAt    uint64
	DepositHash    []byte
	L1BlockNumber  uint64
	L1TxIndex      int
}

// DepositLeaf is one row of the L2 deposit-leaf log.
type DepositLeaf struct {
	DepositIndex  uint64
	DepositHash   []byte
	L2BlockNumber uint64
	L2TxIndex     int
}

// DepositRepository owns the deposit timeline tables (C3).
type DepositRepository struct {
	client *Client
}

func NewDepositRepository(client *Client) *DepositRepository {
	return &DepositRepository{client: client}
}

// UpsertDeposited inserts a Deposited event, a no-op on primary-key
// conflict (idempotent replay per §4.3).
func (r *DepositRepository) UpsertDeposited(ctx context.Context, tx *Tx, d Deposit) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO deposits (deposit_id, depositor, pubkey_salt_hash, token_index, amount,
		                        is_eligible, deposited_at, deposit_hash, l1_block_number, l1_tx_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (deposit_id) DO NOTHING`,
		d.DepositID, d.Depositor, d.PubkeySaltHash, d.TokenIndex, d.Amount.String(),
		d.IsEligible, d.DepositedAt, d.DepositHash, d.L1BlockNumber, d.L1TxIndex)
	if err != nil {
		return fmt.Errorf("upsert deposit %d: %w", d.DepositID, err)
	}
	return nil
}

// UpsertDepositLeaf inserts a DepositLeafInserted event, idempotent on
// deposit_index conflict.
func (r *DepositRepository) UpsertDepositLeaf(ctx context.Context, tx *Tx, l DepositLeaf) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO deposit_leaves (deposit_index, deposit_hash, l2_block_number, l2_tx_index)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (deposit_index) DO NOTHING`,
		l.DepositIndex, l.DepositHash, l.L2BlockNumber, l.L2TxIndex)
	if err != nil {
		return fmt.Errorf("upsert deposit leaf %d: %w", l.DepositIndex, err)
	}
	return nil
}

// ByHash returns the Deposited event matching a deposit hash, or nil.
func (r *DepositRepository) ByHash(ctx context.Context, hash []byte) (*Deposit, error) {
	d := &Deposit{Amount: new(big.Int)}
	var amount string
	err := r.client.QueryRowContext(ctx,
		`SELECT deposit_id, depositor, pubkey_salt_hash, token_index, amount, is_eligible,
		        deposited_at, deposit_hash, l1_block_number, l1_tx_index
		 FROM deposits WHERE deposit_hash = $1`, hash).
		Scan(&d.DepositID, &d.Depositor, &d.PubkeySaltHash, &d.TokenIndex, &amount, &d.IsEligible,
			&d.DepositedAt, &d.DepositHash, &d.L1BlockNumber, &d.L1TxIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deposit by hash: %w", err)
	}
	d.Amount.SetString(amount, 10)
	return d, nil
}

// UnreflectedLeaves returns deposit-leaf events with
// fromIndex <= deposit_index <= maxIndex, the range the reconstructor has
// not yet appended to the deposit tree (fromIndex is the deposit tree's
// current length: leaf positions and deposit indices coincide 1:1).
func (r *DepositRepository) UnreflectedLeaves(ctx context.Context, fromIndex, maxIndex uint64) ([]DepositLeaf, error) {
	rows, err := r.client.QueryContext(ctx,
		`SELECT deposit_index, deposit_hash, l2_block_number, l2_tx_index FROM deposit_leaves
		 WHERE deposit_index >= $1 AND deposit_index <= $2 ORDER BY deposit_index ASC`,
		fromIndex, maxIndex)
	if err != nil {
		return nil, fmt.Errorf("unreflected leaves: %w", err)
	}
	defer rows.Close()

	var out []DepositLeaf
	for rows.Next() {
		var l DepositLeaf
		if err := rows.Scan(&l.DepositIndex, &l.DepositHash, &l.L2BlockNumber, &l.L2TxIndex); err != nil {
			return nil, fmt.Errorf("scan deposit leaf: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
