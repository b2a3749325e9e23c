// Copyright 2025 Intmax2 Validity Prover
//
// Exercises ProverTaskRepository and ValidityProofRepository against a
// real Postgres instance. Uses a test database or skips, matching the
// teacher's CERTEN_TEST_DB convention.

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/intmax2-labs/validity-prover/pkg/config"
)

var testClient *Client

func TestMain(m *testing.M) {
	connStr := os.Getenv("VALIDITY_PROVER_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	cfg := &config.Config{DatabaseURL: connStr, DatabaseMaxOpenConns: 5, DatabaseMaxIdleConns: 2}
	client, err := NewClient(cfg)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := client.MigrateUp(context.Background()); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}
	testClient = client

	code := m.Run()
	client.Close()
	os.Exit(code)
}

func mustTruncate(t *testing.T) {
	t.Helper()
	if _, err := testClient.ExecContext(context.Background(),
		`TRUNCATE prover_tasks, validity_proofs, validity_state RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestProverTaskRepository_AssignHeartbeatSubmit(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	mustTruncate(t)
	ctx := context.Background()
	repo := NewProverTaskRepository(testClient)

	tx, err := testClient.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := repo.EnsureTask(ctx, tx, 1); err != nil {
		t.Fatalf("EnsureTask: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	worker := uuid.New()
	task, err := repo.AssignLowestNew(ctx, worker, time.Now())
	if err != nil {
		t.Fatalf("AssignLowestNew: %v", err)
	}
	if task.BlockNumber != 1 {
		t.Fatalf("assigned block = %d, want 1", task.BlockNumber)
	}

	if _, err := repo.AssignLowestNew(ctx, uuid.New(), time.Now()); err != ErrNoTaskAvailable {
		t.Fatalf("expected ErrNoTaskAvailable, got %v", err)
	}

	if err := repo.Heartbeat(ctx, 1, worker, time.Now()); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	otherWorker := uuid.New()
	if err := repo.Heartbeat(ctx, 1, otherWorker, time.Now()); err != ErrTaskNotAssignedToCaller {
		t.Fatalf("expected ErrTaskNotAssignedToCaller, got %v", err)
	}

	if err := repo.Submit(ctx, 1, worker, []byte("proof-bytes"), time.Now()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	stored, err := repo.Task(ctx, 1)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if !stored.Completed {
		t.Fatal("expected task to be marked completed")
	}
}

func TestProverTaskRepository_SweepExpiredLeases(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	mustTruncate(t)
	ctx := context.Background()
	repo := NewProverTaskRepository(testClient)

	tx, err := testClient.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := repo.EnsureTask(ctx, tx, 5); err != nil {
		t.Fatalf("EnsureTask: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	worker := uuid.New()
	staleAssignTime := time.Now().Add(-time.Hour)
	if _, err := repo.AssignLowestNew(ctx, worker, staleAssignTime); err != nil {
		t.Fatalf("AssignLowestNew: %v", err)
	}

	n, err := repo.SweepExpiredLeases(ctx, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("SweepExpiredLeases: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d leases, want 1", n)
	}

	task, err := repo.Task(ctx, 5)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task.Assigned {
		t.Fatal("expected lease to have been reset to NEW")
	}
}

func TestValidityProofRepository_StrictOrdering(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	mustTruncate(t)
	ctx := context.Background()
	repo := NewValidityProofRepository(testClient)

	if err := repo.Append(ctx, 1, []byte("proof-1")); err != ErrPredecessorMissing {
		t.Fatalf("expected ErrPredecessorMissing, got %v", err)
	}

	if err := repo.Append(ctx, 0, []byte("proof-0")); err != nil {
		t.Fatalf("Append(0): %v", err)
	}
	if err := repo.Append(ctx, 1, []byte("proof-1")); err != nil {
		t.Fatalf("Append(1): %v", err)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != 1 {
		t.Fatalf("Latest = %d, want 1", latest)
	}
}
