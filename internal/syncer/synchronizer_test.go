package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"optionsMirror/internal/chain"
	"optionsMirror/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	blocks  map[uint64]model.Block
	pools   map[string]model.PoolSnapshot
	options map[string]model.OptionVolatilitySnapshot
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{
		blocks:  make(map[uint64]model.Block),
		pools:   make(map[string]model.PoolSnapshot),
		options: make(map[string]model.OptionVolatilitySnapshot),
	}
}

func rowKey(addr string, n uint64) string {
	return fmt.Sprintf("%s@%d", addr, n)
}

func (m *memStore) SaveBlockSnapshot(ctx context.Context, snap model.BlockSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.blocks[snap.Block.Number]; !ok {
		m.blocks[snap.Block.Number] = snap.Block
	}
	for _, p := range snap.Pools {
		if _, ok := m.pools[rowKey(p.PoolAddress, p.BlockNumber)]; !ok {
			m.pools[rowKey(p.PoolAddress, p.BlockNumber)] = p
		}
	}
	for _, o := range snap.Options {
		if _, ok := m.options[rowKey(o.OptionAddress, o.BlockNumber)]; !ok {
			m.options[rowKey(o.OptionAddress, o.BlockNumber)] = o
		}
	}
	return nil
}

func (m *memStore) MaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		highest uint64
		ok      bool
	)
	for n := range m.blocks {
		if !ok || n > highest {
			highest, ok = n, true
		}
	}
	return highest, ok, nil
}

func (m *memStore) PoolBlockNumbers(ctx context.Context, pool string, from, to uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint64
	for _, p := range m.pools {
		if p.PoolAddress == pool && p.BlockNumber >= from && p.BlockNumber <= to {
			out = append(out, p.BlockNumber)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) pool(addr string, n uint64) (model.PoolSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[rowKey(addr, n)]
	return p, ok
}

func (m *memStore) option(addr string, n uint64) (model.OptionVolatilitySnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.options[rowKey(addr, n)]
	return o, ok
}

// fakeChain serves block headers and a fixed head. failures[n] is the number of
// header requests for block n that fail before one succeeds.
type fakeChain struct {
	mu       sync.Mutex
	head     uint64
	failures map[uint64]int
	requests map[uint64]int
}

func (f *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) BlockHeader(ctx context.Context, n uint64) (model.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests == nil {
		f.requests = make(map[uint64]int)
	}
	f.requests[n]++
	if f.failures[n] > 0 {
		f.failures[n]--
		return model.Block{}, errors.New("connection reset by peer")
	}
	return model.Block{Number: n, Timestamp: 1_700_000_000 + n}, nil
}

func (f *fakeChain) requestCount(n uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[n]
}

// stateReader answers every AMM entry point through handler functions keyed by name.
type stateReader struct {
	mu    sync.Mutex
	fns   map[string]func(block uint64) ([]*big.Int, error)
	calls map[string]int
}

func (s *stateReader) Call(ctx context.Context, contract, entryPoint string, calldata []*big.Int, block chain.BlockID) ([]*big.Int, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[entryPoint]++
	fn := s.fns[entryPoint]
	s.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("unexpected entry point %s", entryPoint)
	}
	n, err := blockNumber(block)
	if err != nil {
		return nil, err
	}
	return fn(n)
}

func (s *stateReader) callCount(entryPoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[entryPoint]
}

func blockNumber(b chain.BlockID) (uint64, error) {
	var n uint64
	if _, err := fmt.Sscanf(b.String(), "%d", &n); err != nil {
		return 0, fmt.Errorf("unexpected block id %s", b)
	}
	return n, nil
}

func felts(values ...int64) func(uint64) ([]*big.Int, error) {
	return func(uint64) ([]*big.Int, error) {
		out := make([]*big.Int, 0, len(values))
		for _, v := range values {
			out = append(out, big.NewInt(v))
		}
		return out, nil
	}
}

func healthyReader() *stateReader {
	return &stateReader{fns: map[string]func(uint64) ([]*big.Int, error){
		"get_pool_locked_capital":     felts(1000),
		"get_unlocked_capital":        felts(2000),
		"get_lpool_balance":           felts(3000),
		"get_value_of_pool_position":  felts(400),
		"get_underlying_for_lptokens": felts(5, 0),
		"get_option_volatility":       felts(80),
		"get_option_position":         felts(7),
	}}
}

const (
	testPool   = "0x0000000000000000000000000000000000000000000000000000000000000abc"
	testOption = "0x0000000000000000000000000000000000000000000000000000000000000def"
)

func newTestSync(cfg Config, c ChainReader, reader chain.Reader, store *memStore) *Synchronizer {
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.Network == "" {
		cfg.Network = "testnet"
	}
	amm := chain.NewAMM(reader, "0x1", zap.NewNop())
	return New(cfg, c, amm, store, zap.NewNop())
}

func TestRunGaplessWithTransientFailures(t *testing.T) {
	store := newMemStore()
	fc := &fakeChain{head: 110, failures: map[uint64]int{103: 2, 107: 1}}
	s := newTestSync(Config{Pools: []string{testPool}, GenesisBlock: 100, ToBlock: 109}, fc, healthyReader(), store)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	for n := uint64(100); n <= 109; n++ {
		if _, ok := store.pool(testPool, n); !ok {
			t.Fatalf("block %d missing", n)
		}
	}
	if _, ok := store.pool(testPool, 110); ok {
		t.Fatalf("block 110 synced past the --to bound")
	}
	if got := fc.requestCount(103); got != 3 {
		t.Fatalf("block 103 requested %d times, want 3", got)
	}
	if got := fc.requestCount(104); got != 1 {
		t.Fatalf("block 104 requested %d times, want 1", got)
	}
}

func TestRunResumesFromCursor(t *testing.T) {
	store := newMemStore()
	fc := &fakeChain{head: 200}
	first := newTestSync(Config{Pools: []string{testPool}, GenesisBlock: 100, ToBlock: 104}, fc, healthyReader(), store)
	if err := first.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := newTestSync(Config{Pools: []string{testPool}, GenesisBlock: 100, ToBlock: 106}, fc, healthyReader(), store)
	next, err := second.NextBlock(context.Background())
	if err != nil {
		t.Fatalf("next block: %v", err)
	}
	if next != 105 {
		t.Fatalf("next block = %d, want 105", next)
	}
	if err := second.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := fc.requestCount(102); got != 1 {
		t.Fatalf("block 102 re-requested: %d", got)
	}
	if _, ok := store.pool(testPool, 106); !ok {
		t.Fatalf("block 106 missing")
	}
}

func TestSyncBlockSoftFailureIsNull(t *testing.T) {
	store := newMemStore()
	reader := healthyReader()
	reader.fns["get_value_of_pool_position"] = func(uint64) ([]*big.Int, error) {
		return nil, errors.New("Contract error: " + chain.RevertBlackScholes)
	}
	s := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 9001}, reader, store)

	if err := s.SyncBlock(context.Background(), 9001); err != nil {
		t.Fatalf("sync block: %v", err)
	}
	row, ok := store.pool(testPool, 9001)
	if !ok {
		t.Fatalf("pool row missing")
	}
	if row.PoolPosition != nil {
		t.Fatalf("pool position = %v, want null", *row.PoolPosition)
	}
	if row.LockedCapital != model.NewAmount(big.NewInt(1000)) {
		t.Fatalf("locked capital = %s", row.LockedCapital)
	}
	if row.LpTokenValue == nil || *row.LpTokenValue != model.NewAmount(big.NewInt(5)) {
		t.Fatalf("lp token value = %v", row.LpTokenValue)
	}
	if next, _ := s.NextBlock(context.Background()); next != 9002 {
		t.Fatalf("cursor did not advance: next = %d", next)
	}
}

func TestSyncBlockHardFailureWritesNothing(t *testing.T) {
	store := newMemStore()
	reader := healthyReader()
	reader.fns["get_lpool_balance"] = func(uint64) ([]*big.Int, error) {
		return nil, errors.New("503 Service Unavailable")
	}
	s := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 50}, reader, store)

	if err := s.SyncBlock(context.Background(), 42); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok, _ := store.MaxBlockNumber(context.Background()); ok {
		t.Fatalf("block persisted after hard failure")
	}
	if _, ok := store.pool(testPool, 42); ok {
		t.Fatalf("pool row persisted after hard failure")
	}
}

func TestSyncBlockExpiredOptionSkipsReads(t *testing.T) {
	store := newMemStore()
	reader := healthyReader()
	fc := &fakeChain{head: 500}
	ts := uint64(1_700_000_000 + 500)
	opts := []model.Option{
		{Address: testOption, PoolAddress: testPool, Maturity: ts - model.OptionGracePeriod, StrikePrice: "0x1"},
		{Address: "0x0f", PoolAddress: testPool, Maturity: ts - model.OptionGracePeriod + 1, StrikePrice: "0x1"},
	}
	s := newTestSync(Config{Pools: []string{testPool}, Options: opts}, fc, reader, store)

	if err := s.SyncBlock(context.Background(), 500); err != nil {
		t.Fatalf("sync block: %v", err)
	}

	expired, ok := store.option(testOption, 500)
	if !ok {
		t.Fatalf("expired option row missing")
	}
	if expired.Volatility != nil || expired.Position != nil {
		t.Fatalf("expired option row = %+v, want nulls", expired)
	}
	active, ok := store.option("0x0f", 500)
	if !ok || active.Volatility == nil || active.Position == nil {
		t.Fatalf("active option row = %+v", active)
	}
	if got := reader.callCount("get_option_volatility"); got != 1 {
		t.Fatalf("volatility reads = %d, want 1", got)
	}
}

func TestSyncBlockOptionReadFailureIsLenient(t *testing.T) {
	store := newMemStore()
	reader := healthyReader()
	reader.fns["get_option_position"] = func(uint64) ([]*big.Int, error) {
		return nil, errors.New("i/o timeout")
	}
	opts := []model.Option{{Address: testOption, PoolAddress: testPool, Maturity: 1_800_000_000, StrikePrice: "0x1"}}
	s := newTestSync(Config{Pools: []string{testPool}, Options: opts}, &fakeChain{head: 10}, reader, store)

	if err := s.SyncBlock(context.Background(), 10); err != nil {
		t.Fatalf("sync block: %v", err)
	}
	row, _ := store.option(testOption, 10)
	if row.Volatility == nil || *row.Volatility != model.NewAmount(big.NewInt(80)) {
		t.Fatalf("volatility = %v", row.Volatility)
	}
	if row.Position != nil {
		t.Fatalf("position = %v, want null", *row.Position)
	}
}

func TestRunStopsOnPersistError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	s := newTestSync(Config{Pools: []string{testPool}, GenesisBlock: 1, ToBlock: 5}, &fakeChain{head: 5}, healthyReader(), store)

	err := s.Run(context.Background())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("run error = %v, want ErrPersist", err)
	}
}

func TestRunHonorsCancel(t *testing.T) {
	store := newMemStore()
	s := newTestSync(Config{Pools: []string{testPool}, GenesisBlock: 1}, &fakeChain{head: 3}, healthyReader(), store)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run error = %v, want deadline exceeded", err)
	}
	if _, ok := store.pool(testPool, 3); !ok {
		t.Fatalf("head block not synced before polling")
	}
}
