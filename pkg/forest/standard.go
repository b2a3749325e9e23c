// Copyright 2025 Intmax2 Validity Prover
package forest

import (
	"context"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/merkle"
)

// StandardTree is an append-only Merkle tree (block-hash tree, deposit
// tree) built over the Versioned Merkle Store.
type StandardTree struct {
	store  *database.MerkleStore
	tag    database.Tag
	height int
}

func NewStandardTree(store *database.MerkleStore, tag database.Tag, height int) *StandardTree {
	return &StandardTree{store: store, tag: tag, height: height}
}

// Append adds payload as the next leaf at position, hashing it with
// HashLeaf to derive the leaf commitment. Must be called within the
// caller's block-scoped transaction with a single timestamp per §4.5
// step 3-5. Callers appending more than one leaf under the same
// timestamp (e.g. ApplyBlock folding in a block's whole deposit-leaf
// list) must track the running position themselves — position is not
// re-derived from stored state here, since two leaves written under the
// same timestamp would otherwise both read the same pre-block length and
// collide on the same position (see FinalizeLen).
func (t *StandardTree) Append(ctx context.Context, tx *database.Tx, timestamp int64, position uint64, payload []byte) error {
	return t.appendAt(ctx, tx, timestamp, position, merkle.HashLeaf(payload), payload)
}

// AppendHash adds a leaf whose commitment is already computed upstream
// (e.g. a block hash or a deposit hash from the L1/L2 event logs), so it
// is stored directly as both the leaf hash and the leaf payload rather
// than being re-hashed. See Append for the position-tracking contract.
func (t *StandardTree) AppendHash(ctx context.Context, tx *database.Tx, timestamp int64, position uint64, hash []byte) error {
	return t.appendAt(ctx, tx, timestamp, position, hash, hash)
}

func (t *StandardTree) appendAt(ctx context.Context, tx *database.Tx, timestamp int64, position uint64, leafHash, payload []byte) error {
	if err := t.store.WriteLeaf(ctx, tx, t.tag, timestamp, position, leafHash, payload); err != nil {
		return err
	}
	if _, err := recomputePath(ctx, t.store, tx, t.tag, timestamp, position, leafHash, t.height); err != nil {
		return err
	}
	return nil
}

// FinalizeLen records the tree's leaf count after all of a block's
// appends have been written under timestamp. Called once per tree per
// block (not once per leaf): leaves_len has one row per (tag, timestamp),
// so writing it per-leaf under a shared block timestamp would only ever
// persist the first leaf's count.
func (t *StandardTree) FinalizeLen(ctx context.Context, tx *database.Tx, timestamp int64, length uint64) error {
	return t.store.WriteLeavesLen(ctx, tx, t.tag, timestamp, length)
}

// Root returns the tree root as of atTimestamp.
func (t *StandardTree) Root(ctx context.Context, atTimestamp int64) ([]byte, error) {
	return t.store.ReadRoot(ctx, t.tag, atTimestamp, t.height)
}

// Prove returns an inclusion proof for position as of atTimestamp.
func (t *StandardTree) Prove(ctx context.Context, position uint64, atTimestamp int64) (merkle.InclusionProof, error) {
	return t.store.Prove(ctx, t.tag, position, atTimestamp, t.height)
}

// Len returns the number of leaves as of atTimestamp.
func (t *StandardTree) Len(ctx context.Context, atTimestamp int64) (uint64, error) {
	return t.store.ReadLeavesLen(ctx, t.tag, atTimestamp)
}
