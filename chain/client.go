package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

var logger = ethlog.New("module", "chain")

// Client is a single JSON-RPC endpoint connection, wrapping ethclient.Client
// the way client/bridge_client.go wraps an *rpc.Client: method-per-call,
// errors classified rather than returned raw.
type Client struct {
	endpoint        string
	eth             *ethclient.Client
	rpc             *rpc.Client
	extraSuppressed []string
}

// Dial connects to a single HTTP(S) or WS(S) endpoint. extraSuppressed adds
// operator-configured RPC error substrings (config key SUPPRESS_PATTERNS) to
// the built-in suppression list used when classifying RpcErrors.
func Dial(ctx context.Context, endpoint string, extraSuppressed ...string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	logger.Info("dialed endpoint", "endpoint", endpoint)
	return &Client{
		endpoint:        endpoint,
		eth:             ethclient.NewClient(rc),
		rpc:             rc,
		extraSuppressed: extraSuppressed,
	}, nil
}

// Endpoint returns the URL this client is bound to.
func (c *Client) Endpoint() string { return c.endpoint }

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Close() }

// ChainID returns the connected chain's id.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, c.classify(err)
	}
	return id.Uint64(), nil
}

// LatestBlockNumber returns the chain's current head block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, c.classify(err)
	}
	return n, nil
}

// GetLogs fetches logs for [fromBlock, toBlock] at address, matching topic-0
// against any of topics (a single combined query for both event
// kinds, split by topic-0 after decoding).
func (c *Client) GetLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topics [2][32]byte) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{common.Hash(topics[0]), common.Hash(topics[1])}},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, c.classify(err)
	}
	return logs, nil
}

// GetTransactionCount returns the next nonce the chain would accept for
// addr, per the "pending" tag (the ledger seeds/rebases from
// this value but otherwise tracks locally).
func (c *Client) GetTransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, c.classify(err)
	}
	return n, nil
}

// BoundNonceSource returns a nonce source bound to addr, satisfying
// vrf.ChainNonceSource's single-argument GetTransactionCount shape (the
// ledger only ever needs the nonce for its own fulfiller address).
func (c *Client) BoundNonceSource(addr common.Address) *AddressNonceSource {
	return &AddressNonceSource{client: c, addr: addr}
}

// AddressNonceSource adapts Client.GetTransactionCount to a fixed address.
type AddressNonceSource struct {
	client *Client
	addr   common.Address
}

// GetTransactionCount returns the chain-reported nonce for the bound address.
func (s *AddressNonceSource) GetTransactionCount(ctx context.Context) (uint64, error) {
	return s.client.GetTransactionCount(ctx, s.addr)
}

// SendRawTransaction broadcasts an already-signed transaction.
func (c *Client) SendRawTransaction(ctx context.Context, signed *types.Transaction) error {
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return c.classify(err)
	}
	return nil
}

// WaitForReceipt polls for a transaction's receipt until it appears or ctx
// is done (the worker pool blocks on this per dispatched tx).
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, pollEvery time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SubscribeLogs opens a live WebSocket subscription for address's logs
// matching topics. The caller must select on sub.Err() and
// restart on any error; this method does not retry internally.
func (c *Client) SubscribeLogs(ctx context.Context, address common.Address, topics [2][32]byte, ch chan<- types.Log) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{common.Hash(topics[0]), common.Hash(topics[1])}},
	}
	sub, err := c.eth.SubscribeFilterLogs(ctx, query, ch)
	if err != nil {
		return nil, c.classify(err)
	}
	return sub, nil
}

func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(rpc.Error); ok {
		return &RpcError{Endpoint: c.endpoint, Err: err, Suppressed: isSuppressed(rpcErr.Error(), c.extraSuppressed)}
	}
	return &TransportError{Endpoint: c.endpoint, Err: err}
}

// IsSuppressed reports whether err wraps an *RpcError matching the
// configured (or default) suppression substrings.
func IsSuppressed(err error, extra []string) bool {
	for err != nil {
		if rpcErr, ok := err.(*RpcError); ok {
			return isSuppressed(rpcErr.Err.Error(), extra)
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
