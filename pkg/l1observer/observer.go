// Copyright 2025 Intmax2 Validity Prover
//
// Observer watches the L1 liquidity contract for Deposited events (C3) and
// maintains the deposit timeline.

package l1observer

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/intmax2-labs/validity-prover/pkg/chain"
	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/metrics"
)

// depositedEventABI describes the single event this observer decodes.
// indexed depositId lets clients filter by id; the rest travel in Data.
const depositedEventABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "depositId", "type": "uint256"},
			{"indexed": false, "name": "depositor", "type": "address"},
			{"indexed": false, "name": "pubkeySaltHash", "type": "bytes32"},
			{"indexed": false, "name": "tokenIndex", "type": "uint32"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "isEligible", "type": "bool"},
			{"indexed": false, "name": "depositedAt", "type": "uint64"},
			{"indexed": false, "name": "depositHash", "type": "bytes32"}
		],
		"name": "Deposited",
		"type": "event"
	}
]`

// Config configures an Observer instance.
type Config struct {
	ContractAddress    common.Address
	SafetyConfirmations uint64
	PollInterval        time.Duration
	MaxBlocksPerScan     uint64
}

// Observer implements C3.
type Observer struct {
	cfg     Config
	client  *chain.Client
	db      *database.Client
	cursors *database.CursorRepository
	deposits *database.DepositRepository
	abi     abi.ABI
	topic   common.Hash
	logger  *log.Logger
}

func NewObserver(cfg Config, client *chain.Client, db *database.Client, logger *log.Logger) (*Observer, error) {
	parsedABI, err := abi.JSON(strings.NewReader(depositedEventABI))
	if err != nil {
		return nil, fmt.Errorf("parse deposited event abi: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[L1Observer] ", log.LstdFlags)
	}
	return &Observer{
		cfg:      cfg,
		client:   client,
		db:       db,
		cursors:  database.NewCursorRepository(db),
		deposits: database.NewDepositRepository(db),
		abi:      parsedABI,
		topic:    parsedABI.Events["Deposited"].ID,
		logger:   logger,
	}, nil
}

// Run polls until ctx is cancelled, ticking at PollInterval.
func (o *Observer) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := o.tick(ctx); err != nil {
			o.logger.Printf("tick error: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs one scan-and-commit cycle (§4.3 algorithm).
func (o *Observer) tick(ctx context.Context) error {
	watermark, err := o.cursors.Get(ctx, database.StreamL1Deposits)
	if err != nil {
		return err
	}

	safeHead, err := o.client.SafeHead(ctx, o.cfg.SafetyConfirmations)
	if err != nil {
		return fmt.Errorf("safe head: %w", err)
	}

	from := watermark + 1
	if from > safeHead {
		return nil // nothing new within safety window
	}
	to := safeHead
	if o.cfg.MaxBlocksPerScan > 0 && to-from+1 > o.cfg.MaxBlocksPerScan {
		to = from + o.cfg.MaxBlocksPerScan - 1
	}

	logs, err := o.client.FilterLogs(ctx, o.cfg.ContractAddress, from, to, []common.Hash{o.topic})
	if err != nil {
		return err
	}

	tx, err := o.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range logs {
		deposit, err := o.decodeDeposited(ctx, l)
		if err != nil {
			return fmt.Errorf("decode Deposited at block %d: %w", l.BlockNumber, err)
		}
		if err := o.deposits.UpsertDeposited(ctx, tx, *deposit); err != nil {
			return err
		}
		metrics.L1DepositsObserved.Inc()
	}

	if err := o.cursors.Advance(ctx, tx, database.StreamL1Deposits, to); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.L1ObserverWatermark.Set(float64(to))
	return nil
}

func (o *Observer) decodeDeposited(ctx context.Context, l types.Log) (*database.Deposit, error) {
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("missing indexed depositId topic")
	}
	depositID := new(big.Int).SetBytes(l.Topics[1].Bytes())

	values, err := o.abi.Unpack("Deposited", l.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	if len(values) != 7 {
		return nil, fmt.Errorf("expected 7 non-indexed fields, got %d", len(values))
	}

	depositor, _ := values[0].(common.Address)
	pubkeySaltHash, _ := values[1].([32]byte)
	tokenIndex, _ := values[2].(uint32)
	amount, _ := values[3].(*big.Int)
	isEligible, _ := values[4].(bool)
	depositedAt, _ := values[5].(uint64)
	depositHash, _ := values[6].([32]byte)

	return &database.Deposit{
		DepositID:      depositID.Uint64(),
		Depositor:      depositor.Bytes(),
		PubkeySaltHash: pubkeySaltHash[:],
		TokenIndex:     uint64(tokenIndex),
		Amount:         amount,
		IsEligible:     isEligible,
		DepositedAt:    depositedAt,
		DepositHash:    depositHash[:],
		L1BlockNumber:  l.BlockNumber,
		L1TxIndex:      int(l.TxIndex),
	}, nil
}
