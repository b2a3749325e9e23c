// Copyright 2025 Intmax2 Validity Prover
package forest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/merkle"
)

// MaxIndexedKey is the sentinel upper bound key (2^253 - 1, comfortably
// inside the BN254 scalar field) used as next_key for the tail of the
// sorted linked list.
var MaxIndexedKey = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 253), big.NewInt(1)).String()

// IndexedTree is the sorted-linked-list Merkle tree backing the account
// tree (tag 1), supporting membership and non-membership proofs via
// low-leaf lookups.
type IndexedTree struct {
	store  *database.MerkleStore
	height int
}

func NewIndexedTree(store *database.MerkleStore, height int) *IndexedTree {
	return &IndexedTree{store: store, height: height}
}

// Insert inserts (key, value) into the tree, updating the preceding
// low-leaf's linked-list pointers, given n, the tree's leaf count before
// this insert. key must not already be present; ErrDuplicateOrOutOfRangeKey
// is returned if no low leaf brackets it. Returns the new leaf's position
// and the tree's leaf count after this insert.
//
// n must be threaded through by the caller across a block's whole list of
// account updates (§4.5 step 4) rather than re-read from stored state per
// call: every update in the block shares one timestamp, so a second
// ReadLeavesLen call under that same timestamp would see the same
// pre-block count the first call saw, and both inserts would be assigned
// the same position. The low-leaf lookup itself is read at timestamp, not
// timestamp-1, so a second update in the block correctly sees any
// low-leaf pointer change made by the first (WriteIndexedLeaf upserts,
// so a low leaf re-pointed twice within one block converges to the last
// write, not the first).
func (t *IndexedTree) Insert(ctx context.Context, tx *database.Tx, timestamp int64, n uint64, key, value string) (position, newLen uint64, err error) {
	if n == 0 {
		sentinel := database.IndexedLeafRow{Position: 0, NextIndex: 1, Key: "0", NextKey: key, Value: "0"}
		if err := t.writeAndRecompute(ctx, tx, timestamp, sentinel); err != nil {
			return 0, 0, err
		}
		newLeaf := database.IndexedLeafRow{Position: 1, NextIndex: 0, Key: key, NextKey: MaxIndexedKey, Value: value}
		if err := t.writeAndRecompute(ctx, tx, timestamp, newLeaf); err != nil {
			return 0, 0, err
		}
		return 1, 2, nil
	}

	low, err := t.store.FindLowLeaf(ctx, key, timestamp)
	if err != nil {
		return 0, 0, fmt.Errorf("find low leaf: %w", err)
	}
	if low == nil {
		return 0, 0, ErrDuplicateOrOutOfRangeKey
	}

	updatedLow := *low
	updatedLow.NextIndex = n
	updatedLow.NextKey = key
	if err := t.writeAndRecompute(ctx, tx, timestamp, updatedLow); err != nil {
		return 0, 0, err
	}

	newLeaf := database.IndexedLeafRow{Position: n, NextIndex: low.NextIndex, Key: key, NextKey: low.NextKey, Value: value}
	if err := t.writeAndRecompute(ctx, tx, timestamp, newLeaf); err != nil {
		return 0, 0, err
	}

	return n, n + 1, nil
}

// FinalizeLen records the account tree's leaf count after all of a
// block's inserts have been written under timestamp. Called once per
// block, for the same reason as StandardTree.FinalizeLen.
func (t *IndexedTree) FinalizeLen(ctx context.Context, tx *database.Tx, timestamp int64, length uint64) error {
	return t.store.WriteLeavesLen(ctx, tx, database.TagAccountTree, timestamp, length)
}

func (t *IndexedTree) writeAndRecompute(ctx context.Context, tx *database.Tx, timestamp int64, row database.IndexedLeafRow) error {
	leafHash, err := encodeIndexedLeaf(row)
	if err != nil {
		return err
	}
	row.LeafHash = leafHash
	if err := t.store.WriteIndexedLeaf(ctx, tx, timestamp, row); err != nil {
		return err
	}
	_, err = recomputePath(ctx, t.store, tx, database.TagAccountTree, timestamp, row.Position, leafHash, t.height)
	return err
}

// Root returns the account tree root as of atTimestamp.
func (t *IndexedTree) Root(ctx context.Context, atTimestamp int64) ([]byte, error) {
	return t.store.ReadRoot(ctx, database.TagAccountTree, atTimestamp, t.height)
}

// Prove returns an inclusion proof for position as of atTimestamp. For a
// non-membership proof, callers locate the low leaf via FindLowLeaf and
// prove that leaf's inclusion instead.
func (t *IndexedTree) Prove(ctx context.Context, position uint64, atTimestamp int64) (merkle.InclusionProof, error) {
	return t.store.Prove(ctx, database.TagAccountTree, position, atTimestamp, t.height)
}

// Len returns the number of leaves (including the sentinel) as of
// atTimestamp.
func (t *IndexedTree) Len(ctx context.Context, atTimestamp int64) (uint64, error) {
	return t.store.ReadLeavesLen(ctx, database.TagAccountTree, atTimestamp)
}

// encodeIndexedLeaf serializes an indexed-leaf row into the fixed-width
// byte string hashed to produce its leaf hash.
func encodeIndexedLeaf(row database.IndexedLeafRow) ([]byte, error) {
	key, ok := new(big.Int).SetString(row.Key, 10)
	if !ok {
		return nil, fmt.Errorf("invalid key %q", row.Key)
	}
	nextKey, ok := new(big.Int).SetString(row.NextKey, 10)
	if !ok {
		return nil, fmt.Errorf("invalid next_key %q", row.NextKey)
	}
	value, ok := new(big.Int).SetString(row.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid value %q", row.Value)
	}

	buf := make([]byte, 8+8+32+32+32)
	binary.BigEndian.PutUint64(buf[0:8], row.Position)
	binary.BigEndian.PutUint64(buf[8:16], row.NextIndex)
	key.FillBytes(buf[16:48])
	nextKey.FillBytes(buf[48:80])
	value.FillBytes(buf[80:112])

	return merkle.HashLeaf(buf), nil
}
