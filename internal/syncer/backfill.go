package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optionsMirror/internal/metrics"
	"optionsMirror/internal/storage"
)

// BackfillConfig controls gap scanning and hole resolution.
type BackfillConfig struct {
	// Workers is the number of holes resolved concurrently.
	Workers int
	// Retries is the number of extra attempts per hole within one pass.
	Retries int
	// ScanBatch bounds the block window loaded from the store per query.
	ScanBatch uint64
}

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Missing  []uint64
	Resolved int
	Failed   []uint64
}

// Backfiller finds holes in persisted pool coverage and resolves each one
// through the single-block sync path.
type Backfiller struct {
	cfg    BackfillConfig
	sync   *Synchronizer
	store  storage.BlockStore
	logger *zap.Logger
}

func NewBackfiller(cfg BackfillConfig, s *Synchronizer, store storage.BlockStore, logger *zap.Logger) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ScanBatch == 0 {
		cfg.ScanBatch = 10000
	}
	return &Backfiller{cfg: cfg, sync: s, store: store, logger: logger}
}

// MissingBlocks returns the blocks in [start, end] with no persisted snapshot for pool, ascending.
func (b *Backfiller) MissingBlocks(ctx context.Context, pool string, start, end uint64) ([]uint64, error) {
	ranges, err := SplitRange(start, end, b.cfg.ScanBatch)
	if err != nil {
		return nil, err
	}

	var missing []uint64
	for _, r := range ranges {
		have, err := b.store.PoolBlockNumbers(ctx, pool, r.From, r.To)
		if err != nil {
			return nil, fmt.Errorf("load pool %s blocks %d-%d: %w", pool, r.From, r.To, err)
		}
		missing = append(missing, missingInRange(r, have)...)
	}
	return missing, nil
}

// Missing returns the union of missing blocks over all configured pools, ascending.
func (b *Backfiller) Missing(ctx context.Context, start, end uint64) ([]uint64, error) {
	seen := make(map[uint64]struct{})
	for _, pool := range b.sync.cfg.Pools {
		blocks, err := b.MissingBlocks(ctx, pool, start, end)
		if err != nil {
			return nil, err
		}
		for _, n := range blocks {
			seen[n] = struct{}{}
		}
	}

	out := make([]uint64, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// Backfill runs one pass over [start, end]. Holes are resolved concurrently and
// independently; a hole that still fails is reported in Failed and left for the next pass.
func (b *Backfiller) Backfill(ctx context.Context, start, end uint64) (BackfillResult, error) {
	missing, err := b.Missing(ctx, start, end)
	if err != nil {
		return BackfillResult{}, err
	}
	metrics.MissingBlocks.WithLabelValues(b.sync.cfg.Network).Set(float64(len(missing)))

	result := BackfillResult{Missing: missing}
	if len(missing) == 0 {
		return result, nil
	}
	b.logger.Info("backfill pass", zap.Uint64("from", start), zap.Uint64("to", end), zap.Int("missing", len(missing)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for _, n := range missing {
		n := n
		g.Go(func() error {
			err := withRetry(gctx, b.cfg.Retries, b.sync.cfg.RetryBackoff, func(ctx context.Context) error {
				return b.sync.syncBlock(ctx, n, pathBackfill)
			})
			if errors.Is(err, ErrPersist) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("hole not resolved", zap.Uint64("block_number", n), zap.Error(err))
				result.Failed = append(result.Failed, n)
				return nil
			}
			result.Resolved++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	slices.Sort(result.Failed)
	metrics.MissingBlocks.WithLabelValues(b.sync.cfg.Network).Set(float64(len(result.Failed)))
	return result, nil
}
