package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"optionsMirror/internal/metrics"
	"optionsMirror/internal/model"
)

// Caller is the JSON-RPC surface used by Client. *rpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// BlockID selects the block a read is evaluated against.
type BlockID struct {
	number uint64
	latest bool
}

// Latest evaluates reads against the chain head.
var Latest = BlockID{latest: true}

// AtBlock evaluates reads against a historical block.
func AtBlock(number uint64) BlockID {
	return BlockID{number: number}
}

func (b BlockID) String() string {
	if b.latest {
		return "latest"
	}
	return fmt.Sprintf("%d", b.number)
}

func (b BlockID) MarshalJSON() ([]byte, error) {
	if b.latest {
		return json.Marshal("latest")
	}
	return json.Marshal(map[string]uint64{"block_number": b.number})
}

// FunctionCall is the request object of starknet_call.
type FunctionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

type blockHeader struct {
	BlockNumber *uint64 `json:"block_number"`
	Timestamp   uint64  `json:"timestamp"`
	Status      string  `json:"status"`
}

// Client wraps a Starknet JSON-RPC node and provides helper methods.
type Client struct {
	rpc     Caller
	network string

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials the RPC URL.
func NewClient(ctx context.Context, rpcURL, network string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientWithCaller(rpcClient, network), nil
}

// NewClientWithCaller builds a Client on an existing JSON-RPC caller.
func NewClientWithCaller(caller Caller, network string) *Client {
	return &Client{
		rpc:     caller,
		network: network,
		tsCache: make(map[uint64]uint64),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// LatestBlockNumber returns the chain head.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	if err := c.call(ctx, &head, "starknet_blockNumber"); err != nil {
		return 0, err
	}
	return head, nil
}

// BlockHeader returns number and timestamp of an accepted block, using an in-memory cache.
func (c *Client) BlockHeader(ctx context.Context, number uint64) (model.Block, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return model.Block{Number: number, Timestamp: ts}, nil
	}

	var header blockHeader
	if err := c.call(ctx, &header, "starknet_getBlockWithTxHashes", AtBlock(number)); err != nil {
		return model.Block{}, fmt.Errorf("get block %d: %w", number, err)
	}
	if header.BlockNumber == nil {
		return model.Block{}, fmt.Errorf("block %d is pending: %w", number, ErrMalformedResult)
	}
	if *header.BlockNumber != number {
		return model.Block{}, fmt.Errorf("asked for block %d, node returned %d: %w", number, *header.BlockNumber, ErrMalformedResult)
	}

	c.mu.Lock()
	c.tsCache[number] = header.Timestamp
	c.mu.Unlock()

	return model.Block{Number: number, Timestamp: header.Timestamp}, nil
}

// Call performs a starknet_call of entryPoint on contract at block.
func (c *Client) Call(ctx context.Context, contract, entryPoint string, calldata []*big.Int, block BlockID) ([]*big.Int, error) {
	req := FunctionCall{
		ContractAddress:    contract,
		EntryPointSelector: hexutil.EncodeBig(Selector(entryPoint)),
		Calldata:           make([]string, 0, len(calldata)),
	}
	for _, v := range calldata {
		req.Calldata = append(req.Calldata, hexutil.EncodeBig(v))
	}

	var raw []string
	if err := c.call(ctx, &raw, "starknet_call", req, block); err != nil {
		return nil, fmt.Errorf("call %s: %w", entryPoint, err)
	}

	values := make([]*big.Int, 0, len(raw))
	for i, item := range raw {
		v, err := model.ParseFelt(item)
		if err != nil {
			return nil, fmt.Errorf("call %s result[%d]: %v: %w", entryPoint, i, err, ErrMalformedResult)
		}
		values = append(values, v)
	}
	return values, nil
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	err := c.rpc.CallContext(ctx, result, method, args...)
	metrics.RPCLatency.WithLabelValues(c.network, method).Observe(time.Since(start).Seconds())
	metrics.RPCCallsTotal.WithLabelValues(c.network, method).Inc()
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.network, method, errorType(err)).Inc()
	}
	return err
}

func errorType(err error) string {
	var rpcErr rpc.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	case errors.As(err, &rpcErr):
		return "rpc"
	default:
		return "transport"
	}
}
