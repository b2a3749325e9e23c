// Copyright 2025 Intmax2 Validity Prover
//
// Versioned Merkle Store (C1): persistent, time-indexed, partitioned
// storage of hash-tree nodes, leaves, and length counters, with
// historical snapshot reads at any timestamp.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/intmax2-labs/validity-prover/pkg/merkle"
)

// Tag identifies one of the three logical trees in the Merkle forest (C2),
// or its backup twin written by the Backup job.
type Tag int16

const (
	TagAccountTree   Tag = 1
	TagBlockHashTree Tag = 2
	TagDepositTree   Tag = 3

	TagAccountTreeBackup   Tag = 11
	TagBlockHashTreeBackup Tag = 12
	TagDepositTreeBackup   Tag = 13
)

// BackupTag returns the twin backup tag for a live tag.
func (t Tag) BackupTag() Tag { return t + 10 }

// MerkleStore implements the C1 abstraction over the hash_nodes, leaves,
// leaves_len and indexed_leaves relations. Every method that mutates state
// takes the enclosing *Tx so callers (C2, C5, C6) can batch a block's
// worth of Merkle writes into one atomic commit with one timestamp.
type MerkleStore struct {
	client *Client
}

func NewMerkleStore(client *Client) *MerkleStore {
	return &MerkleStore{client: client}
}

// WriteNode upserts an interior hash-node row, overwriting any row already
// present at (tag, bit_path, timestamp). A single block routinely touches
// the same ancestor path (the root, above all) from more than one leaf
// write under one timestamp (§4.5), so this must replace rather than
// ignore a second write — the later recomputation is always the
// authoritative one for that snapshot version. Replaying an unchanged
// block writes the same hash back, which is harmless.
func (s *MerkleStore) WriteNode(ctx context.Context, tx *Tx, tag Tag, timestamp int64, path merkle.BitPath, hash []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO hash_nodes (tag, timestamp, bit_path, hash) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tag, bit_path, timestamp) DO UPDATE SET hash = EXCLUDED.hash`,
		tag, timestamp, path.Encode(), hash)
	if err != nil {
		return fmt.Errorf("write hash node: %w", err)
	}
	return nil
}

// ReadNode returns the node hash visible at snapshot `atTimestamp`, or nil
// if no row exists at or before that timestamp (the caller substitutes the
// canonical empty-subtree hash).
func (s *MerkleStore) ReadNode(ctx context.Context, tag Tag, path merkle.BitPath, atTimestamp int64) ([]byte, error) {
	var hash []byte
	err := s.client.QueryRowContext(ctx,
		`SELECT hash FROM hash_nodes
		 WHERE tag = $1 AND bit_path = $2 AND timestamp <= $3
		 ORDER BY timestamp DESC LIMIT 1`,
		tag, path.Encode(), atTimestamp).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hash node: %w", err)
	}
	return hash, nil
}

// WriteLeaf upserts a leaf row for a standard tree (tags 2, 3).
func (s *MerkleStore) WriteLeaf(ctx context.Context, tx *Tx, tag Tag, timestamp int64, position uint64, leafHash, payload []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO leaves (tag, timestamp, position, leaf_hash, payload) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tag, position, timestamp) DO NOTHING`,
		tag, timestamp, position, leafHash, payload)
	if err != nil {
		return fmt.Errorf("write leaf: %w", err)
	}
	return nil
}

// ReadLeaf returns the leaf hash and payload visible at `atTimestamp`.
func (s *MerkleStore) ReadLeaf(ctx context.Context, tag Tag, position uint64, atTimestamp int64) (leafHash, payload []byte, err error) {
	err = s.client.QueryRowContext(ctx,
		`SELECT leaf_hash, payload FROM leaves
		 WHERE tag = $1 AND position = $2 AND timestamp <= $3
		 ORDER BY timestamp DESC LIMIT 1`,
		tag, position, atTimestamp).Scan(&leafHash, &payload)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read leaf: %w", err)
	}
	return leafHash, payload, nil
}

// WriteLeavesLen records the current leaf count after an append.
func (s *MerkleStore) WriteLeavesLen(ctx context.Context, tx *Tx, tag Tag, timestamp int64, length uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO leaves_len (tag, timestamp, length) VALUES ($1, $2, $3)
		 ON CONFLICT (tag, timestamp) DO NOTHING`,
		tag, timestamp, length)
	if err != nil {
		return fmt.Errorf("write leaves_len: %w", err)
	}
	return nil
}

// ReadLeavesLen returns the leaf count visible at `atTimestamp`, or 0 if
// the tree has never been written to.
func (s *MerkleStore) ReadLeavesLen(ctx context.Context, tag Tag, atTimestamp int64) (uint64, error) {
	var length uint64
	err := s.client.QueryRowContext(ctx,
		`SELECT length FROM leaves_len
		 WHERE tag = $1 AND timestamp <= $2
		 ORDER BY timestamp DESC LIMIT 1`,
		tag, atTimestamp).Scan(&length)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read leaves_len: %w", err)
	}
	return length, nil
}

// rootPath is the zero-length bit path addressing the tree root.
var rootPath = merkle.BitPath{}

// WriteRoot is WriteNode specialized to the root (empty bit path).
func (s *MerkleStore) WriteRoot(ctx context.Context, tx *Tx, tag Tag, timestamp int64, hash []byte) error {
	return s.WriteNode(ctx, tx, tag, timestamp, rootPath, hash)
}

// ReadRoot is ReadNode specialized to the root, falling back to the
// height's empty-subtree hash when unwritten.
func (s *MerkleStore) ReadRoot(ctx context.Context, tag Tag, atTimestamp int64, height int) ([]byte, error) {
	hash, err := s.ReadNode(ctx, tag, rootPath, atTimestamp)
	if err != nil {
		return nil, err
	}
	if hash == nil {
		return merkle.EmptySubtreeHash(height), nil
	}
	return hash, nil
}

// Prove builds an InclusionProof for `position` as of `atTimestamp` in a
// standard tree of the given height, reading one sibling hash per level.
func (s *MerkleStore) Prove(ctx context.Context, tag Tag, position uint64, atTimestamp int64, height int) (merkle.InclusionProof, error) {
	siblings := make([][]byte, height)
	for level := 0; level < height; level++ {
		siblingPos := position ^ (1 << uint(level))
		path := merkle.NewBitPath(siblingPos, level, height)
		hash, err := s.ReadNode(ctx, tag, path, atTimestamp)
		if err != nil {
			return merkle.InclusionProof{}, err
		}
		if hash == nil {
			hash = merkle.EmptySubtreeHash(level)
		}
		siblings[level] = hash
	}
	return merkle.InclusionProof{LeafIndex: position, Height: height, Siblings: siblings}, nil
}

// IndexedLeafRow is one row of the sorted-linked-list structure backing
// the indexed tree (tag 1).
type IndexedLeafRow struct {
	Position  uint64
	LeafHash  []byte
	NextIndex uint64
	Key       string // decimal string; NUMERIC(78,0) round-trips exactly via database/sql's string scan
	NextKey   string
	Value     string
}

// WriteIndexedLeaf upserts one indexed-tree leaf row, overwriting any row
// already present at (tag, position, timestamp). A low leaf can be
// re-pointed more than once within the same block when several new keys
// land in what was, before the block, a single gap (§4.5) — the later
// write is always the correct final pointer for that snapshot version.
func (s *MerkleStore) WriteIndexedLeaf(ctx context.Context, tx *Tx, timestamp int64, row IndexedLeafRow) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO indexed_leaves (tag, timestamp, position, leaf_hash, next_index, key, next_key, value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tag, position, timestamp) DO UPDATE SET
		   leaf_hash = EXCLUDED.leaf_hash, next_index = EXCLUDED.next_index,
		   key = EXCLUDED.key, next_key = EXCLUDED.next_key, value = EXCLUDED.value`,
		TagAccountTree, timestamp, row.Position, row.LeafHash, row.NextIndex, row.Key, row.NextKey, row.Value)
	if err != nil {
		return fmt.Errorf("write indexed leaf: %w", err)
	}
	return nil
}

// ReadIndexedLeaf returns the indexed-tree leaf at `position` visible at
// `atTimestamp`.
func (s *MerkleStore) ReadIndexedLeaf(ctx context.Context, position uint64, atTimestamp int64) (*IndexedLeafRow, error) {
	row := &IndexedLeafRow{Position: position}
	err := s.client.QueryRowContext(ctx,
		`SELECT leaf_hash, next_index, key, next_key, value FROM indexed_leaves
		 WHERE tag = $1 AND position = $2 AND timestamp <= $3
		 ORDER BY timestamp DESC LIMIT 1`,
		TagAccountTree, position, atTimestamp).
		Scan(&row.LeafHash, &row.NextIndex, &row.Key, &row.NextKey, &row.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read indexed leaf: %w", err)
	}
	return row, nil
}

// FindLowLeaf locates the leaf whose key < newKey < next_key, the
// insertion point for a new indexed-tree key, as of `atTimestamp`. Both
// bounds are strict, so a key that is already present has no low leaf.
func (s *MerkleStore) FindLowLeaf(ctx context.Context, newKey string, atTimestamp int64) (*IndexedLeafRow, error) {
	row := &IndexedLeafRow{}
	err := s.client.QueryRowContext(ctx,
		`SELECT position, leaf_hash, next_index, key, next_key, value FROM (
		   SELECT DISTINCT ON (position) position, leaf_hash, next_index, key, next_key, value
		   FROM indexed_leaves
		   WHERE tag = $1 AND timestamp <= $2
		   ORDER BY position, timestamp DESC
		 ) latest
		 WHERE key < $3::numeric AND next_key > $3::numeric
		 LIMIT 1`,
		TagAccountTree, atTimestamp, newKey).
		Scan(&row.Position, &row.LeafHash, &row.NextIndex, &row.Key, &row.NextKey, &row.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find low leaf: %w", err)
	}
	return row, nil
}
