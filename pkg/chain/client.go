// Copyright 2025 Intmax2 Validity Prover
//
// Client wraps an Ethereum-family JSON-RPC endpoint for the L1 and L2
// observers (C3, C4). Both chains are EVM-compatible, so one client type
// serves either role; callers distinguish L1 vs L2 only by which
// contract address and confirmation depth they pass in.

package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/intmax2-labs/validity-prover/pkg/retry"
)

// Client is a thin, retrying wrapper over ethclient.Client.
type Client struct {
	inner   *ethclient.Client
	chainID *big.Int
	url     string
	policy  retry.Policy
}

// NewClient dials url and verifies chainID matches the configured value.
func NewClient(ctx context.Context, url string, chainID int64) (*Client, error) {
	inner, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	remote, err := inner.ChainID(ctx)
	if err != nil {
		inner.Close()
		return nil, fmt.Errorf("chain id from %s: %w", url, err)
	}
	if remote.Cmp(big.NewInt(chainID)) != 0 {
		inner.Close()
		return nil, fmt.Errorf("chain id mismatch at %s: configured %d, node reports %s", url, chainID, remote)
	}
	return &Client{
		inner:   inner,
		chainID: big.NewInt(chainID),
		url:     url,
		policy:  retry.DefaultPolicy(),
	}, nil
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int { return c.chainID }

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.inner.Close() }

// LatestBlockNumber returns the chain head, retrying transient RPC errors.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := retry.Do(ctx, c.policy, func() error {
		var err error
		n, err = c.inner.BlockNumber(ctx)
		return err
	})
	return n, err
}

// SafeHead returns the latest block minus confirmations, or 0 if the chain
// hasn't produced that many blocks yet.
func (c *Client) SafeHead(ctx context.Context, confirmations uint64) (uint64, error) {
	latest, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if latest < confirmations {
		return 0, nil
	}
	return latest - confirmations, nil
}

// BlockTimestamp returns the unix timestamp of a block.
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	var header *types.Header
	err := retry.Do(ctx, c.policy, func() error {
		var err error
		header, err = c.inner.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("header for block %d: %w", blockNumber, err)
	}
	return header.Time, nil
}

// FilterLogs fetches logs for [fromBlock, toBlock] emitted by contract,
// optionally restricted to topics[0] values, retrying transient RPC
// failures per the configured backoff policy.
func (c *Client) FilterLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64, topics []common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contract},
	}
	if len(topics) > 0 {
		query.Topics = [][]common.Hash{topics}
	}

	var logs []types.Log
	err := retry.Do(ctx, c.policy, func() error {
		var err error
		logs, err = c.inner.FilterLogs(ctx, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs [%d,%d] on %s: %w", fromBlock, toBlock, contract.Hex(), err)
	}
	return logs, nil
}

// TransactionIndex returns the index of a transaction within its block,
// used to populate the (block_number, tx_index) locators in the data
// model (§3).
func (c *Client) TransactionIndex(ctx context.Context, txHash common.Hash) (int, error) {
	var receipt *types.Receipt
	err := retry.Do(ctx, c.policy, func() error {
		var err error
		receipt, err = c.inner.TransactionReceipt(ctx, txHash)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("receipt for tx %s: %w", txHash.Hex(), err)
	}
	return int(receipt.TransactionIndex), nil
}

// EventTopic computes the Keccak256 topic hash for an event signature,
// e.g. "Deposited(uint256,address,bytes32,uint32,uint256,bool,uint64,bytes32)".
func EventTopic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}
