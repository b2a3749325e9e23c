// Copyright 2025 Intmax2 Validity Prover
package l2observer

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeBlockPosted(t *testing.T) {
	obs, err := NewObserver(Config{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	payload := []byte(`{"block_hash":"00","last_deposit_index":0,"account_updates":[]}`)
	nonIndexed := obs.abi.Events["BlockPosted"].Inputs.NonIndexed()
	data, err := nonIndexed.Pack(payload)
	if err != nil {
		t.Fatalf("pack non-indexed args: %v", err)
	}

	l := types.Log{
		Topics:      []common.Hash{obs.topicBlockPosted, common.BigToHash(big.NewInt(9))},
		Data:        data,
		BlockNumber: 55,
		TxIndex:     1,
	}

	block, err := obs.decodeBlockPosted(l)
	if err != nil {
		t.Fatalf("decodeBlockPosted: %v", err)
	}
	if block.BlockNumber != 9 {
		t.Errorf("BlockNumber = %d, want 9", block.BlockNumber)
	}
	if !bytes.Equal(block.Payload, payload) {
		t.Errorf("Payload mismatch: got %s", block.Payload)
	}
	if block.L2TxIndex != 1 {
		t.Errorf("L2TxIndex = %d, want 1", block.L2TxIndex)
	}
}

func TestDecodeDepositLeafInserted(t *testing.T) {
	obs, err := NewObserver(Config{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	var depositHash [32]byte
	copy(depositHash[:], []byte("deposit-hash-32-bytes-long!!!!!"))

	nonIndexed := obs.abi.Events["DepositLeafInserted"].Inputs.NonIndexed()
	data, err := nonIndexed.Pack(depositHash)
	if err != nil {
		t.Fatalf("pack non-indexed args: %v", err)
	}

	l := types.Log{
		Topics:      []common.Hash{obs.topicDepositLeafInserted, common.BigToHash(big.NewInt(3))},
		Data:        data,
		BlockNumber: 60,
		TxIndex:     0,
	}

	leaf, err := obs.decodeDepositLeafInserted(l)
	if err != nil {
		t.Fatalf("decodeDepositLeafInserted: %v", err)
	}
	if leaf.DepositIndex != 3 {
		t.Errorf("DepositIndex = %d, want 3", leaf.DepositIndex)
	}
	if !bytes.Equal(leaf.DepositHash, depositHash[:]) {
		t.Errorf("DepositHash mismatch")
	}
}

func TestSortLogsAscending(t *testing.T) {
	logs := []types.Log{
		{BlockNumber: 5, TxIndex: 1},
		{BlockNumber: 3, TxIndex: 9},
		{BlockNumber: 5, TxIndex: 0},
	}
	sortLogsAscending(logs)

	if logs[0].BlockNumber != 3 {
		t.Fatalf("expected block 3 first, got %d", logs[0].BlockNumber)
	}
	if logs[1].BlockNumber != 5 || logs[1].TxIndex != 0 {
		t.Fatalf("expected (5,0) second, got (%d,%d)", logs[1].BlockNumber, logs[1].TxIndex)
	}
	if logs[2].BlockNumber != 5 || logs[2].TxIndex != 1 {
		t.Fatalf("expected (5,1) third, got (%d,%d)", logs[2].BlockNumber, logs[2].TxIndex)
	}
}
