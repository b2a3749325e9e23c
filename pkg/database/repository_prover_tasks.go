// Copyright 2025 Intmax2 Validity Prover
//
// Prover task lifecycle (C6): NEW -> ASSIGNED -> COMPLETED, with
// heartbeat-refreshed leases and row-level locking for single-flight
// assignment/submission under worker contention.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProverTask mirrors one row of prover_tasks.
type ProverTask struct {
	BlockNumber     uint32
	Assigned        bool
	AssignedAt      *time.Time
	LastHeartbeat   *time.Time
	WorkerToken     *uuid.UUID
	Completed       bool
	CompletedAt     *time.Time
	TransitionProof []byte
}

// ProverTaskRepository owns prover_tasks (C6).
type ProverTaskRepository struct {
	client *Client
}

func NewProverTaskRepository(client *Client) *ProverTaskRepository {
	return &ProverTaskRepository{client: client}
}

// EnsureTask creates a NEW task row for blockNumber once validity_state[N]
// exists. Idempotent.
func (r *ProverTaskRepository) EnsureTask(ctx context.Context, tx *Tx, blockNumber uint32) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO prover_tasks (block_number) VALUES ($1) ON CONFLICT (block_number) DO NOTHING`,
		blockNumber)
	if err != nil {
		return fmt.Errorf("ensure prover task %d: %w", blockNumber, err)
	}
	return nil
}

// AssignLowestNew picks the lowest-numbered NEW task under row lock and
// assigns it to workerToken. Returns ErrNoTaskAvailable if none is NEW.
// Uses FOR UPDATE SKIP LOCKED so two workers racing never block on each
// other; exactly one wins the row, the other sees the next candidate.
func (r *ProverTaskRepository) AssignLowestNew(ctx context.Context, workerToken uuid.UUID, now time.Time) (*ProverTask, error) {
	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var blockNumber uint32
	err = tx.QueryRowContext(ctx,
		`SELECT block_number FROM prover_tasks
		 WHERE NOT assigned AND NOT completed
		 ORDER BY block_number ASC
		 FOR UPDATE SKIP LOCKED
		 LIMIT 1`).Scan(&blockNumber)
	if err == sql.ErrNoRows {
		return nil, ErrNoTaskAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("select new task: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE prover_tasks SET assigned = TRUE, assigned_at = $1, last_heartbeat = $1, worker_token = $2
		 WHERE block_number = $3`, now, workerToken, blockNumber); err != nil {
		return nil, fmt.Errorf("assign task %d: %w", blockNumber, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}

	return &ProverTask{
		BlockNumber:   blockNumber,
		Assigned:      true,
		AssignedAt:    &now,
		LastHeartbeat: &now,
		WorkerToken:   &workerToken,
	}, nil
}

// Heartbeat refreshes last_heartbeat if workerToken still holds the lease.
func (r *ProverTaskRepository) Heartbeat(ctx context.Context, blockNumber uint32, workerToken uuid.UUID, now time.Time) error {
	result, err := r.client.ExecContext(ctx,
		`UPDATE prover_tasks SET last_heartbeat = $1
		 WHERE block_number = $2 AND worker_token = $3 AND assigned AND NOT completed`,
		now, blockNumber, workerToken)
	if err != nil {
		return fmt.Errorf("heartbeat task %d: %w", blockNumber, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrTaskNotAssignedToCaller
	}
	return nil
}

// Submit records a completed transition proof if workerToken still holds
// the lease; otherwise rejects with ErrTaskNotAssignedToCaller per the
// "Invalid worker submission" policy (§7) without touching stored state.
func (r *ProverTaskRepository) Submit(ctx context.Context, blockNumber uint32, workerToken uuid.UUID, proof []byte, now time.Time) error {
	result, err := r.client.ExecContext(ctx,
		`UPDATE prover_tasks SET completed = TRUE, completed_at = $1, transition_proof = $2
		 WHERE block_number = $3 AND worker_token = $4 AND assigned AND NOT completed`,
		now, proof, blockNumber, workerToken)
	if err != nil {
		return fmt.Errorf("submit task %d: %w", blockNumber, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrTaskNotAssignedToCaller
	}
	return nil
}

// SweepExpiredLeases resets ASSIGNED tasks whose heartbeat is older than
// ttl back to NEW, and returns the count reset.
func (r *ProverTaskRepository) SweepExpiredLeases(ctx context.Context, ttl time.Duration, now time.Time) (int64, error) {
	deadline := now.Add(-ttl)
	result, err := r.client.ExecContext(ctx,
		`UPDATE prover_tasks SET assigned = FALSE, assigned_at = NULL, last_heartbeat = NULL, worker_token = NULL
		 WHERE assigned AND NOT completed AND last_heartbeat < $1`, deadline)
	if err != nil {
		return 0, fmt.Errorf("sweep expired leases: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Task returns the current row for blockNumber, or nil if absent.
func (r *ProverTaskRepository) Task(ctx context.Context, blockNumber uint32) (*ProverTask, error) {
	t := &ProverTask{BlockNumber: blockNumber}
	err := r.client.QueryRowContext(ctx,
		`SELECT assigned, assigned_at, last_heartbeat, worker_token, completed, completed_at, transition_proof
		 FROM prover_tasks WHERE block_number = $1`, blockNumber).
		Scan(&t.Assigned, &t.AssignedAt, &t.LastHeartbeat, &t.WorkerToken, &t.Completed, &t.CompletedAt, &t.TransitionProof)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", blockNumber, err)
	}
	return t, nil
}

// ValidityProofRepository owns validity_proofs, the strictly ascending
// cumulative proof chain produced by the chaining loop.
type ValidityProofRepository struct {
	client *Client
}

func NewValidityProofRepository(client *Client) *ValidityProofRepository {
	return &ValidityProofRepository{client: client}
}

// Latest returns the highest block_number with a stored proof, or -1 if
// none exists yet.
func (r *ValidityProofRepository) Latest(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.client.QueryRowContext(ctx, `SELECT MAX(block_number) FROM validity_proofs`).Scan(&max); err != nil {
		return -1, fmt.Errorf("latest validity proof: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}

// Get returns the stored proof bytes for a block, or nil if absent.
func (r *ValidityProofRepository) Get(ctx context.Context, blockNumber uint32) ([]byte, error) {
	var proof []byte
	err := r.client.QueryRowContext(ctx,
		`SELECT proof FROM validity_proofs WHERE block_number = $1`, blockNumber).Scan(&proof)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get validity proof %d: %w", blockNumber, err)
	}
	return proof, nil
}

// Append writes the next proof in the chain under a row lock on the
// previous proof's row, enforcing strict ascending order: it fails with
// ErrPredecessorMissing if blockNumber > 0 and blockNumber-1 has no proof.
func (r *ValidityProofRepository) Append(ctx context.Context, blockNumber uint32, proof []byte) error {
	tx, err := r.client.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if blockNumber > 0 {
		var predecessor []byte
		err := tx.QueryRowContext(ctx,
			`SELECT proof FROM validity_proofs WHERE block_number = $1 FOR UPDATE`, blockNumber-1).Scan(&predecessor)
		if err == sql.ErrNoRows {
			return ErrPredecessorMissing
		}
		if err != nil {
			return fmt.Errorf("lock predecessor proof: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO validity_proofs (block_number, proof) VALUES ($1, $2) ON CONFLICT (block_number) DO NOTHING`,
		blockNumber, proof); err != nil {
		return fmt.Errorf("append validity proof %d: %w", blockNumber, err)
	}

	return tx.Commit()
}
