// Copyright 2025 Intmax2 Validity Prover
package prover

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/metrics"
)

// Aggregator recursively wraps a previous cumulative validity proof with
// a block's transition proof, producing the next cumulative proof
// (glossary: "Validity proof (cumulative)"). It is satisfied by an
// out-of-process SNARK recursion service; this package treats the result
// as opaque bytes.
type Aggregator interface {
	Combine(ctx context.Context, blockNumber uint32, previousCumulative, transitionProof []byte) ([]byte, error)
}

// Chainer advances validity_proofs one block at a time, in strict
// ascending order, by aggregating each completed task's transition proof
// onto the previous cumulative proof (§4.6).
type Chainer struct {
	tasks      *database.ProverTaskRepository
	proofs     *database.ValidityProofRepository
	aggregator Aggregator
	interval   time.Duration
	logger     *log.Logger
}

func NewChainer(db *database.Client, aggregator Aggregator, interval time.Duration, logger *log.Logger) *Chainer {
	if logger == nil {
		logger = log.New(log.Writer(), "[Chainer] ", log.LstdFlags)
	}
	return &Chainer{
		tasks:      database.NewProverTaskRepository(db),
		proofs:     database.NewValidityProofRepository(db),
		aggregator: aggregator,
		interval:   interval,
		logger:     logger,
	}
}

func (c *Chainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		for {
			advanced, err := c.tick(ctx)
			if err != nil {
				c.logger.Printf("chaining error: %v", err)
				break
			}
			if !advanced {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick appends the next cumulative proof if its predecessor is in place
// and its task is complete. Returns (true, nil) if it advanced the chain.
func (c *Chainer) tick(ctx context.Context) (bool, error) {
	latest, err := c.proofs.Latest(ctx)
	if err != nil {
		return false, err
	}
	next := uint32(latest + 1)

	task, err := c.tasks.Task(ctx, next)
	if err != nil {
		return false, err
	}
	if task == nil || !task.Completed {
		return false, nil // missing prerequisite: stall, not an error (§7)
	}

	var previous []byte
	if latest >= 0 {
		previous, err = c.proofs.Get(ctx, uint32(latest))
		if err != nil {
			return false, err
		}
		if previous == nil {
			return false, errors.New("latest cumulative proof vanished unexpectedly")
		}
	}

	cumulative, err := c.aggregator.Combine(ctx, next, previous, task.TransitionProof)
	if err != nil {
		return false, err
	}

	if err := c.proofs.Append(ctx, next, cumulative); err != nil {
		if errors.Is(err, database.ErrPredecessorMissing) {
			return false, nil
		}
		return false, err
	}

	metrics.CumulativeProofHeight.Set(float64(next))
	c.logger.Printf("chained validity proof for block %d", next)
	return true, nil
}
