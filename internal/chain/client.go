package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the read-only RPC access tick syncing needs: chain id, head,
// Mint/Burn log ranges and the tickSpacing() call.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID. It is fetched once per client.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID == nil {
		id, err := c.ethClient.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("eth_chainId: %w", err)
		}
		c.chainID = id
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	head, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return head, nil
}

// FilterLogs returns the logs of [fromBlock, toBlock] emitted by addresses
// whose topic0 is one of topic0. An empty topic0 matches every event.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query, err := logQuery(fromBlock, toBlock, addresses, topic0)
	if err != nil {
		return nil, err
	}
	logs, err := c.ethClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs %d-%d: %w", fromBlock, toBlock, err)
	}
	return logs, nil
}

// CallContract performs an eth_call, at the latest block when blockNumber is nil.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

func logQuery(fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) (ethereum.FilterQuery, error) {
	if fromBlock > toBlock {
		return ethereum.FilterQuery{}, fmt.Errorf("invalid log range %d-%d", fromBlock, toBlock)
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return query, nil
}
