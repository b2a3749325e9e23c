// Copyright 2025 Intmax2 Validity Prover
package l1observer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeDeposited(t *testing.T) {
	obs, err := NewObserver(Config{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	depositor := common.HexToAddress("0x00000000000000000000000000000000000001")
	var pubkeySaltHash, depositHash [32]byte
	copy(pubkeySaltHash[:], []byte("pubkey-salt-hash-32-bytes-long!"))
	copy(depositHash[:], []byte("deposit-hash-32-bytes-long!!!!!"))

	nonIndexed := obs.abi.Events["Deposited"].Inputs.NonIndexed()
	data, err := nonIndexed.Pack(depositor, pubkeySaltHash, uint32(3), big.NewInt(1000), true, uint64(12345), depositHash)
	if err != nil {
		t.Fatalf("pack non-indexed args: %v", err)
	}

	depositID := big.NewInt(42)
	l := types.Log{
		Topics:      []common.Hash{obs.topic, common.BigToHash(depositID)},
		Data:        data,
		BlockNumber: 100,
		TxIndex:     2,
	}

	deposit, err := obs.decodeDeposited(context.Background(), l)
	if err != nil {
		t.Fatalf("decodeDeposited: %v", err)
	}

	if deposit.DepositID != 42 {
		t.Errorf("DepositID = %d, want 42", deposit.DepositID)
	}
	if deposit.TokenIndex != 3 {
		t.Errorf("TokenIndex = %d, want 3", deposit.TokenIndex)
	}
	if deposit.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("Amount = %s, want 1000", deposit.Amount)
	}
	if !deposit.IsEligible {
		t.Error("IsEligible = false, want true")
	}
	if deposit.DepositedAt != 12345 {
		t.Errorf("DepositedAt = %d, want 12345", deposit.DepositedAt)
	}
	if deposit.L1TxIndex != 2 {
		t.Errorf("L1TxIndex = %d, want 2", deposit.L1TxIndex)
	}
}

func TestDecodeDeposited_MissingTopic(t *testing.T) {
	obs, err := NewObserver(Config{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	l := types.Log{Topics: []common.Hash{obs.topic}}
	if _, err := obs.decodeDeposited(context.Background(), l); err == nil {
		t.Error("expected an error when the indexed depositId topic is missing")
	}
}
