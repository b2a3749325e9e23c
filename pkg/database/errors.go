// Copyright 2025 Intmax2 Validity Prover
//
// Package database provides sentinel errors for repository operations.

package database

import "errors"

var (
	// ErrNotFound names a missing entity. The repositories in this package
	// do not return it: their getters report an absent row as a nil result.
	ErrNotFound = errors.New("entity not found")

	// ErrReorgBeyondSafety is returned when a watermark would move
	// backwards, meaning a reorg deeper than the configured safety
	// confirmations was observed. Fatal for the affected observer loop.
	ErrReorgBeyondSafety = errors.New("reorg beyond safety confirmations")

	// ErrBlockGap names a hole in the full_blocks timeline. No repository
	// returns it; the reconstructor treats a missing next block as a stall.
	ErrBlockGap = errors.New("gap in block timeline")

	// ErrTaskNotAssignedToCaller is returned when a worker submits a
	// proof or heartbeat for a task it no longer holds the lease on.
	ErrTaskNotAssignedToCaller = errors.New("task lease expired or held by another worker")

	// ErrNoTaskAvailable is returned when a worker requests work but no
	// NEW task exists.
	ErrNoTaskAvailable = errors.New("no prover task available")

	// ErrPredecessorMissing is returned when the chaining loop is asked
	// to advance past a block whose predecessor proof does not exist yet.
	ErrPredecessorMissing = errors.New("predecessor validity proof missing")
)
