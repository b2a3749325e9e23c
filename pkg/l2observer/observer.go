// Copyright 2025 Intmax2 Validity Prover
//
// Observer watches the L2 rollup contract for BlockPosted and
// DepositLeafInserted events (C4) and maintains the block timeline plus
// the deposit-leaf log, each behind its own watermark.

package l2observer

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/intmax2-labs/validity-prover/pkg/chain"
	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/metrics"
)

const rollupEventsABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "blockNumber", "type": "uint32"},
			{"indexed": false, "name": "serializedBlock", "type": "bytes"}
		],
		"name": "BlockPosted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "depositIndex", "type": "uint32"},
			{"indexed": false, "name": "depositHash", "type": "bytes32"}
		],
		"name": "DepositLeafInserted",
		"type": "event"
	}
]`

// Config configures an Observer instance.
type Config struct {
	ContractAddress     common.Address
	SafetyConfirmations uint64
	PollInterval        time.Duration
	MaxBlocksPerScan    uint64
}

// Observer implements C4.
type Observer struct {
	cfg      Config
	client   *chain.Client
	db       *database.Client
	cursors  *database.CursorRepository
	blocks   *database.BlockRepository
	deposits *database.DepositRepository
	abi      abi.ABI
	topicBlockPosted         common.Hash
	topicDepositLeafInserted common.Hash
	logger                   *log.Logger
}

func NewObserver(cfg Config, client *chain.Client, db *database.Client, logger *log.Logger) (*Observer, error) {
	parsedABI, err := abi.JSON(strings.NewReader(rollupEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse rollup event abi: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[L2Observer] ", log.LstdFlags)
	}
	return &Observer{
		cfg:                      cfg,
		client:                   client,
		db:                       db,
		cursors:                  database.NewCursorRepository(db),
		blocks:                   database.NewBlockRepository(db),
		deposits:                 database.NewDepositRepository(db),
		abi:                      parsedABI,
		topicBlockPosted:         parsedABI.Events["BlockPosted"].ID,
		topicDepositLeafInserted: parsedABI.Events["DepositLeafInserted"].ID,
		logger:                   logger,
	}, nil
}

// Run polls until ctx is cancelled, ticking at PollInterval. Each tick
// advances both watermarks independently; a failure in one stream does
// not block the other on the next tick.
func (o *Observer) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := o.tickBlocks(ctx); err != nil {
			o.logger.Printf("block tick error: %v", err)
		}
		if err := o.tickDepositLeaves(ctx); err != nil {
			o.logger.Printf("deposit leaf tick error: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Observer) scanRange(ctx context.Context, stream string) (from, to uint64, ok bool, err error) {
	watermark, err := o.cursors.Get(ctx, stream)
	if err != nil {
		return 0, 0, false, err
	}
	safeHead, err := o.client.SafeHead(ctx, o.cfg.SafetyConfirmations)
	if err != nil {
		return 0, 0, false, fmt.Errorf("safe head: %w", err)
	}
	from = watermark + 1
	if from > safeHead {
		return 0, 0, false, nil
	}
	to = safeHead
	if o.cfg.MaxBlocksPerScan > 0 && to-from+1 > o.cfg.MaxBlocksPerScan {
		to = from + o.cfg.MaxBlocksPerScan - 1
	}
	return from, to, true, nil
}

// tickBlocks ingests BlockPosted events in strict ascending
// (block_number, tx_index) order (§4.4).
func (o *Observer) tickBlocks(ctx context.Context) error {
	from, to, ok, err := o.scanRange(ctx, database.StreamL2BlocksPosted)
	if err != nil || !ok {
		return err
	}

	logs, err := o.client.FilterLogs(ctx, o.cfg.ContractAddress, from, to, []common.Hash{o.topicBlockPosted})
	if err != nil {
		return err
	}
	sortLogsAscending(logs)

	tx, err := o.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range logs {
		b, err := o.decodeBlockPosted(l)
		if err != nil {
			return fmt.Errorf("decode BlockPosted at block %d: %w", l.BlockNumber, err)
		}
		if err := o.blocks.Insert(ctx, tx, *b); err != nil {
			return err
		}
		metrics.L2BlocksObserved.Inc()
	}

	if err := o.cursors.Advance(ctx, tx, database.StreamL2BlocksPosted, to); err != nil {
		return err
	}
	return tx.Commit()
}

// tickDepositLeaves ingests DepositLeafInserted events.
func (o *Observer) tickDepositLeaves(ctx context.Context) error {
	from, to, ok, err := o.scanRange(ctx, database.StreamL2DepositLeaves)
	if err != nil || !ok {
		return err
	}

	logs, err := o.client.FilterLogs(ctx, o.cfg.ContractAddress, from, to, []common.Hash{o.topicDepositLeafInserted})
	if err != nil {
		return err
	}
	sortLogsAscending(logs)

	tx, err := o.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range logs {
		leaf, err := o.decodeDepositLeafInserted(l)
		if err != nil {
			return fmt.Errorf("decode DepositLeafInserted at block %d: %w", l.BlockNumber, err)
		}
		if err := o.deposits.UpsertDepositLeaf(ctx, tx, *leaf); err != nil {
			return err
		}
		metrics.L2DepositLeavesObserved.Inc()
	}

	if err := o.cursors.Advance(ctx, tx, database.StreamL2DepositLeaves, to); err != nil {
		return err
	}
	return tx.Commit()
}

func sortLogsAscending(logs []types.Log) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].TxIndex < logs[j].TxIndex
	})
}

func (o *Observer) decodeBlockPosted(l types.Log) (*database.FullBlock, error) {
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("missing indexed blockNumber topic")
	}
	blockNumber := uint32(new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64())

	values, err := o.abi.Unpack("BlockPosted", l.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("expected 1 non-indexed field, got %d", len(values))
	}
	payload, _ := values[0].([]byte)

	// LastDepositIndex is embedded in the serialized block payload and is
	// filled in by the State Reconstructor when it parses Payload, not here.
	return &database.FullBlock{
		BlockNumber:   blockNumber,
		Payload:       payload,
		L2BlockNumber: l.BlockNumber,
		L2TxIndex:     int(l.TxIndex),
	}, nil
}

func (o *Observer) decodeDepositLeafInserted(l types.Log) (*database.DepositLeaf, error) {
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("missing indexed depositIndex topic")
	}
	depositIndex := new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()

	values, err := o.abi.Unpack("DepositLeafInserted", l.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("expected 1 non-indexed field, got %d", len(values))
	}
	depositHash, _ := values[0].([32]byte)

	return &database.DepositLeaf{
		DepositIndex:  depositIndex,
		DepositHash:   depositHash[:],
		L2BlockNumber: l.BlockNumber,
		L2TxIndex:     int(l.TxIndex),
	}, nil
}
