// Copyright 2025 Intmax2 Validity Prover
//
// Package prover implements the coordination half of C6: lease sweeping
// and cumulative-proof chaining. The actual SNARK computation is done out
// of process: per-block transition proofs by external worker processes
// that pull tasks over the task API (§6) and push results back in, and the
// recursive aggregation step by an external service that HTTPAggregator
// calls; this package only sequences state.

package prover

import (
	"context"
	"log"
	"time"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/metrics"
)

// Sweeper resets ASSIGNED tasks whose lease has expired back to NEW
// (§4.6 state machine, "timeout" transition).
type Sweeper struct {
	tasks    *database.ProverTaskRepository
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
}

func NewSweeper(db *database.Client, ttl, interval time.Duration, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(log.Writer(), "[LeaseSweeper] ", log.LstdFlags)
	}
	return &Sweeper{tasks: database.NewProverTaskRepository(db), ttl: ttl, interval: interval, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		n, err := s.tasks.SweepExpiredLeases(ctx, s.ttl, time.Now())
		if err != nil {
			s.logger.Printf("sweep error: %v", err)
		} else if n > 0 {
			metrics.ProverLeasesExpired.Add(float64(n))
			s.logger.Printf("reset %d expired lease(s) to NEW", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
