package syncer

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

const otherPool = "0x0000000000000000000000000000000000000000000000000000000000000bcd"

func seed(t *testing.T, s *Synchronizer, blocks ...uint64) {
	t.Helper()
	for _, n := range blocks {
		if err := s.SyncBlock(context.Background(), n); err != nil {
			t.Fatalf("seed block %d: %v", n, err)
		}
	}
}

func TestMissingBlocksAcrossWindows(t *testing.T) {
	store := newMemStore()
	s := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 100}, healthyReader(), store)
	seed(t, s, 10, 11, 13, 14, 17, 20)

	b := NewBackfiller(BackfillConfig{ScanBatch: 3}, s, store, zap.NewNop())
	got, err := b.MissingBlocks(context.Background(), testPool, 10, 20)
	if err != nil {
		t.Fatalf("missing blocks: %v", err)
	}
	want := []uint64{12, 15, 16, 18, 19}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("missing = %v, want %v", got, want)
	}
}

func TestMissingUnionOverPools(t *testing.T) {
	store := newMemStore()
	s := newTestSync(Config{Pools: []string{testPool, otherPool}}, &fakeChain{head: 100}, healthyReader(), store)
	seed(t, s, 1, 2, 3, 4, 5)

	// Rows written with a single-pool config leave the other pool uncovered.
	single := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 100}, healthyReader(), store)
	seed(t, single, 6, 7)

	b := NewBackfiller(BackfillConfig{}, s, store, zap.NewNop())
	got, err := b.Missing(context.Background(), 1, 8)
	if err != nil {
		t.Fatalf("missing: %v", err)
	}
	want := []uint64{6, 7, 8}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("missing = %v, want %v", got, want)
	}
}

func TestBackfillConverges(t *testing.T) {
	store := newMemStore()
	fc := &fakeChain{head: 100}
	s := newTestSync(Config{Pools: []string{testPool}}, fc, healthyReader(), store)
	seed(t, s, 50, 53, 55)

	// Block 52 keeps failing for the whole first pass.
	fc.failures = map[uint64]int{52: 2}
	b := NewBackfiller(BackfillConfig{Workers: 3, Retries: 1}, s, store, zap.NewNop())

	res, err := b.Backfill(context.Background(), 50, 55)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if !reflect.DeepEqual(res.Missing, []uint64{51, 52, 54}) {
		t.Fatalf("missing = %v", res.Missing)
	}
	if res.Resolved != 2 || !reflect.DeepEqual(res.Failed, []uint64{52}) {
		t.Fatalf("first pass result = %+v", res)
	}

	res, err = b.Backfill(context.Background(), 50, 55)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(res.Missing, []uint64{52}) || res.Resolved != 1 || len(res.Failed) != 0 {
		t.Fatalf("second pass result = %+v", res)
	}

	res, err = b.Backfill(context.Background(), 50, 55)
	if err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("still missing %v", res.Missing)
	}
	for n := uint64(50); n <= 55; n++ {
		if _, ok := store.pool(testPool, n); !ok {
			t.Fatalf("block %d missing after backfill", n)
		}
	}
}

func TestBackfillLeavesExistingRows(t *testing.T) {
	store := newMemStore()
	s := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 100}, healthyReader(), store)
	seed(t, s, 7)
	before, _ := store.pool(testPool, 7)

	reader := healthyReader()
	reader.fns["get_pool_locked_capital"] = felts(999999)
	later := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 100}, reader, store)
	b := NewBackfiller(BackfillConfig{}, later, store, zap.NewNop())
	if _, err := b.Backfill(context.Background(), 6, 8); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	after, _ := store.pool(testPool, 7)
	if after != before {
		t.Fatalf("existing row rewritten: %+v -> %+v", before, after)
	}
	if got := reader.callCount("get_pool_locked_capital"); got != 2 {
		t.Fatalf("locked capital reads = %d, want 2", got)
	}
	fresh, _ := store.pool(testPool, 8)
	if v, err := fresh.LockedCapital.Big(); err != nil || v.Cmp(big.NewInt(999999)) != 0 {
		t.Fatalf("hole filled with %s", fresh.LockedCapital)
	}
}

func TestBackfillPersistErrorIsFatal(t *testing.T) {
	store := newMemStore()
	s := newTestSync(Config{Pools: []string{testPool}}, &fakeChain{head: 100}, healthyReader(), store)
	store.saveErr = errors.New("connection refused")

	b := NewBackfiller(BackfillConfig{Workers: 2}, s, store, zap.NewNop())
	_, err := b.Backfill(context.Background(), 1, 4)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("backfill error = %v, want ErrPersist", err)
	}
}
