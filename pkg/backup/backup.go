// Copyright 2025 Intmax2 Validity Prover
//
// Package backup implements §4.7 Backup & Prune: periodically collapsing
// C1's history older than a cutoff into the backup tags (11,12,13) and
// deleting superseded rows ahead of that cutoff, while holding the same
// per-tag advisory lock the reconstructor takes before writing (§7
// "Pruning conflict": prune and backup never run concurrently with
// writers to the same tag).

package backup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/intmax2-labs/validity-prover/pkg/database"
)

// liveToBackup pairs each live tag with its twin backup tag (§3, §4.7).
var liveToBackup = map[database.Tag]database.Tag{
	database.TagAccountTree:   database.TagAccountTreeBackup,
	database.TagBlockHashTree: database.TagBlockHashTreeBackup,
	database.TagDepositTree:   database.TagDepositTreeBackup,
}

// Config configures the backup/prune schedule.
type Config struct {
	// Offset is how many blocks of recent history to keep out of the
	// cutoff, so in-flight reads at recent snapshots are never pruned.
	Offset   uint64
	Interval time.Duration
}

// Job runs the backup-then-prune cycle on Interval.
type Job struct {
	db      *database.Client
	cutoffs *database.CutoffRepository
	state   *database.ValidityStateRepository
	cfg     Config
	logger  *log.Logger
}

func New(db *database.Client, cfg Config, logger *log.Logger) *Job {
	if logger == nil {
		logger = log.New(log.Writer(), "[Backup] ", log.LstdFlags)
	}
	return &Job{
		db:      db,
		cutoffs: database.NewCutoffRepository(db),
		state:   database.NewValidityStateRepository(db),
		cfg:     cfg,
		logger:  logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := j.tick(ctx); err != nil {
			j.logger.Printf("backup/prune error: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick computes the new cutoff and, if it has advanced, runs backup then
// prune against it, each in its own transaction (§4.7: "Both run in one
// database transaction each").
func (j *Job) tick(ctx context.Context) error {
	latest, err := j.state.MaxBlockNumber(ctx)
	if err != nil {
		return err
	}
	if latest < 0 {
		return nil // nothing reconstructed yet
	}

	current, err := j.cutoffs.Get(ctx)
	if err != nil {
		return err
	}

	target := current
	if uint64(latest) > j.cfg.Offset {
		candidate := uint64(latest) - j.cfg.Offset
		if candidate > target {
			target = candidate
		}
	}
	if target <= current {
		return nil // no new history to collapse
	}

	if err := j.backup(ctx, target); err != nil {
		return fmt.Errorf("backup to cutoff %d: %w", target, err)
	}
	if err := j.prune(ctx, target); err != nil {
		return fmt.Errorf("prune to cutoff %d: %w", target, err)
	}

	j.logger.Printf("advanced backup/prune cutoff to block %d", target)
	return nil
}

// backup copies every live-tag row with timestamp <= cutoff into its twin
// backup tag and persists the new cutoff, all under the per-tag advisory
// locks also taken by the reconstructor before writing.
func (j *Job) backup(ctx context.Context, cutoff uint64) error {
	tx, err := j.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for live, bak := range liveToBackup {
		if err := tx.AdvisoryLock(ctx, int(live)); err != nil {
			return fmt.Errorf("lock tag %d: %w", live, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hash_nodes (tag, timestamp, bit_path, hash)
			 SELECT $2, timestamp, bit_path, hash FROM hash_nodes
			 WHERE tag = $1 AND timestamp <= $3
			 ON CONFLICT DO NOTHING`, live, bak, cutoff); err != nil {
			return fmt.Errorf("backup hash_nodes tag %d: %w", live, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leaves (tag, timestamp, position, leaf_hash, payload)
			 SELECT $2, timestamp, position, leaf_hash, payload FROM leaves
			 WHERE tag = $1 AND timestamp <= $3
			 ON CONFLICT DO NOTHING`, live, bak, cutoff); err != nil {
			return fmt.Errorf("backup leaves tag %d: %w", live, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leaves_len (tag, timestamp, length)
			 SELECT $2, timestamp, length FROM leaves_len
			 WHERE tag = $1 AND timestamp <= $3
			 ON CONFLICT DO NOTHING`, live, bak, cutoff); err != nil {
			return fmt.Errorf("backup leaves_len tag %d: %w", live, err)
		}

		if live == database.TagAccountTree {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO indexed_leaves (tag, timestamp, position, leaf_hash, next_index, key, next_key, value)
				 SELECT $2, timestamp, position, leaf_hash, next_index, key, next_key, value FROM indexed_leaves
				 WHERE tag = $1 AND timestamp <= $3
				 ON CONFLICT DO NOTHING`, live, bak, cutoff); err != nil {
				return fmt.Errorf("backup indexed_leaves tag %d: %w", live, err)
			}
		}
	}

	if err := j.cutoffs.Advance(ctx, tx, cutoff); err != nil {
		return err
	}

	return tx.Commit()
}

// prune retains, per live tag and per row key, only the greatest
// timestamp <= cutoff and deletes the rest with timestamp <= cutoff. Rows
// with timestamp > cutoff are never touched, so every snapshot read at
// T > cutoff still resolves identically (§4.7).
func (j *Job) prune(ctx context.Context, cutoff uint64) error {
	tx, err := j.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for live := range liveToBackup {
		if err := tx.AdvisoryLock(ctx, int(live)); err != nil {
			return fmt.Errorf("lock tag %d: %w", live, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM hash_nodes h
			 WHERE h.tag = $1 AND h.timestamp <= $2
			   AND h.timestamp < (
			     SELECT MAX(h2.timestamp) FROM hash_nodes h2
			     WHERE h2.tag = h.tag AND h2.bit_path = h.bit_path AND h2.timestamp <= $2
			   )`, live, cutoff); err != nil {
			return fmt.Errorf("prune hash_nodes tag %d: %w", live, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM leaves l
			 WHERE l.tag = $1 AND l.timestamp <= $2
			   AND l.timestamp < (
			     SELECT MAX(l2.timestamp) FROM leaves l2
			     WHERE l2.tag = l.tag AND l2.position = l.position AND l2.timestamp <= $2
			   )`, live, cutoff); err != nil {
			return fmt.Errorf("prune leaves tag %d: %w", live, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM leaves_len ll
			 WHERE ll.tag = $1 AND ll.timestamp <= $2
			   AND ll.timestamp < (
			     SELECT MAX(ll2.timestamp) FROM leaves_len ll2
			     WHERE ll2.tag = ll.tag AND ll2.timestamp <= $2
			   )`, live, cutoff); err != nil {
			return fmt.Errorf("prune leaves_len tag %d: %w", live, err)
		}

		if live == database.TagAccountTree {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM indexed_leaves il
				 WHERE il.tag = $1 AND il.timestamp <= $2
				   AND il.timestamp < (
				     SELECT MAX(il2.timestamp) FROM indexed_leaves il2
				     WHERE il2.tag = il.tag AND il2.position = il.position AND il2.timestamp <= $2
				   )`, live, cutoff); err != nil {
				return fmt.Errorf("prune indexed_leaves tag %d: %w", live, err)
			}
		}
	}

	return tx.Commit()
}
