// Copyright 2025 Intmax2 Validity Prover
package reconstructor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/forest"
	"github.com/intmax2-labs/validity-prover/pkg/metrics"
)

// Reconstructor implements C5: replays blocks one at a time against the
// Merkle Forest, producing a validity_witness per block under a single
// transaction with a shared pre/post timestamp pair.
type Reconstructor struct {
	db       *database.Client
	forest   *forest.Forest
	blocks   *database.BlockRepository
	deposits *database.DepositRepository
	state    *database.ValidityStateRepository
	tasks    *database.ProverTaskRepository
	interval time.Duration
	logger   *log.Logger
}

func New(db *database.Client, f *forest.Forest, interval time.Duration, logger *log.Logger) *Reconstructor {
	if logger == nil {
		logger = log.New(log.Writer(), "[Reconstructor] ", log.LstdFlags)
	}
	return &Reconstructor{
		db:       db,
		forest:   f,
		blocks:   database.NewBlockRepository(db),
		deposits: database.NewDepositRepository(db),
		state:    database.NewValidityStateRepository(db),
		tasks:    database.NewProverTaskRepository(db),
		interval: interval,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled, processing one block per successful
// iteration and retrying immediately (subject to the tick interval) when
// more contiguous blocks remain.
func (r *Reconstructor) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			processed, err := r.tick(ctx)
			if err != nil {
				r.logger.Printf("reconstruction error: %v", err)
				break
			}
			if !processed {
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

// tick processes the next contiguous block, if any is ready. It returns
// (true, nil) if a block was processed, (false, nil) if there is nothing
// to do yet, and a non-nil error for genuine failures (missing
// prerequisites are not errors per §7 and are reported as (false, nil)).
func (r *Reconstructor) tick(ctx context.Context) (bool, error) {
	prev, err := r.state.MaxBlockNumber(ctx)
	if err != nil {
		return false, err
	}
	maxFullBlock, err := r.blocks.MaxBlockNumber(ctx)
	if err != nil {
		return false, err
	}
	if maxFullBlock <= prev {
		return false, nil
	}

	n := uint32(prev + 1)
	block, err := r.blocks.Get(ctx, n)
	if err != nil {
		return false, err
	}
	if block == nil {
		r.logger.Printf("stalling: block %d missing from full_blocks (gap)", n)
		return false, nil
	}

	payload, err := DecodeBlockPayload(block.Payload)
	if err != nil {
		return false, fmt.Errorf("block %d: %w", n, err)
	}

	depositLeaves, err := r.loadDepositLeaves(ctx, n, payload.LastDepositIndex)
	if errors.Is(err, errStall) {
		r.logger.Printf("stalling: block %d references unreflected deposit leaves not yet in the log", n)
		metrics.ReconstructorStalls.Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	preTimestamp := int64(n)
	timestamp := int64(n) + 1

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	witness, err := r.forest.ApplyBlock(ctx, tx, n, preTimestamp, timestamp, forestInputs(payload, depositLeaves))
	if err != nil {
		return false, fmt.Errorf("apply block %d: %w", n, err)
	}

	encoded, err := witness.Encode()
	if err != nil {
		return false, err
	}

	txTreeRoot := witness.PostBlockHashRoot
	if err := r.state.Insert(ctx, tx, n, encoded, txTreeRoot); err != nil {
		return false, err
	}
	if err := r.blocks.SetLastDepositIndex(ctx, tx, n, payload.LastDepositIndex); err != nil {
		return false, err
	}
	if err := r.tasks.EnsureTask(ctx, tx, n); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	metrics.ReconstructedBlockHeight.Set(float64(n))
	r.logger.Printf("reconstructed block %d (account_root=%x, deposit_root=%x)", n, witness.PostAccountRoot, witness.PostDepositRoot)
	return true, nil
}

var errStall = errors.New("unreflected deposit leaves missing from log")

func (r *Reconstructor) loadDepositLeaves(ctx context.Context, blockNumber uint32, lastDepositIndex uint64) ([]forest.DepositLeafInput, error) {
	currentLen, err := r.forest.Deposits.Len(ctx, int64(blockNumber))
	if err != nil {
		return nil, err
	}
	if lastDepositIndex < currentLen {
		return nil, nil
	}

	rows, err := r.deposits.UnreflectedLeaves(ctx, currentLen, lastDepositIndex)
	if err != nil {
		return nil, err
	}
	if uint64(len(rows)) != lastDepositIndex-currentLen+1 {
		return nil, errStall
	}

	out := make([]forest.DepositLeafInput, len(rows))
	for i, row := range rows {
		out[i] = forest.DepositLeafInput{DepositIndex: row.DepositIndex, DepositHash: row.DepositHash}
	}
	return out, nil
}

func forestInputs(payload *BlockPayload, depositLeaves []forest.DepositLeafInput) forest.BlockInputs {
	return forest.BlockInputs{
		BlockHash:      payload.BlockHash,
		DepositLeaves:  depositLeaves,
		AccountUpdates: payload.AccountUpdates,
	}
}
