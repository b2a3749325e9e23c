// Copyright 2025 Intmax2 Validity Prover
package database

import (
	"context"
	"fmt"
)

// CutoffRepository owns the prune_cutoff singleton (§4.7 Backup & Prune).
// Rows with timestamp <= cutoff for a non-backup tag become eligible for
// collapse into that tag's twin backup tag.
type CutoffRepository struct {
	client *Client
}

func NewCutoffRepository(client *Client) *CutoffRepository {
	return &CutoffRepository{client: client}
}

// Get returns the current cutoff block number, or 0 if never set.
func (r *CutoffRepository) Get(ctx context.Context) (uint64, error) {
	var cutoff int64
	err := r.client.QueryRowContext(ctx, `SELECT block_number FROM prune_cutoff WHERE singleton`).Scan(&cutoff)
	if err != nil {
		return 0, fmt.Errorf("get prune cutoff: %w", err)
	}
	return uint64(cutoff), nil
}

// Advance moves the cutoff forward within tx, under the caller's advisory
// lock. Rejects attempts to move it backwards.
func (r *CutoffRepository) Advance(ctx context.Context, tx *Tx, cutoff uint64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE prune_cutoff SET block_number = $1, updated_at = now() WHERE singleton AND block_number <= $1`, cutoff)
	if err != nil {
		return fmt.Errorf("advance prune cutoff: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("prune cutoff %d is not ahead of the current value", cutoff)
	}
	return nil
}
