package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optionsMirror/internal/metrics"
	"optionsMirror/internal/model"
	"optionsMirror/internal/storage"
)

// ErrPersist marks store failures. They end the run instead of being retried.
var ErrPersist = errors.New("persist block snapshot")

const (
	pathForward  = "forward"
	pathBackfill = "backfill"
)

// ChainReader provides block headers and the chain head.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockHeader(ctx context.Context, number uint64) (model.Block, error)
}

// StateReader provides point-in-time pool and option state. *chain.AMM satisfies it.
type StateReader interface {
	PoolState(ctx context.Context, pool string, block uint64) (model.PoolSnapshot, error)
	OptionVolatilityAndPosition(ctx context.Context, opt model.Option, block uint64) (*model.Amount, *model.Amount)
}

// Config holds runtime settings for the synchronizer.
type Config struct {
	Network      string
	Pools        []string
	Options      []model.Option
	GenesisBlock uint64
	// ToBlock stops the forward walk after this block; 0 follows the head forever.
	ToBlock      uint64
	RetryBackoff time.Duration
	PollInterval time.Duration
}

// Synchronizer walks the chain block by block and persists a full snapshot per block.
type Synchronizer struct {
	cfg    Config
	chain  ChainReader
	state  StateReader
	store  storage.BlockStore
	logger *zap.Logger
}

// New builds a Synchronizer with its dependencies.
func New(cfg Config, chainReader ChainReader, state StateReader, store storage.BlockStore, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 3 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Synchronizer{
		cfg:    cfg,
		chain:  chainReader,
		state:  state,
		store:  store,
		logger: logger,
	}
}

// NextBlock returns the first block not yet persisted: the highest persisted block plus one,
// or the genesis block on an empty store.
func (s *Synchronizer) NextBlock(ctx context.Context) (uint64, error) {
	last, ok, err := s.store.MaxBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	if !ok {
		return s.cfg.GenesisBlock, nil
	}
	return last + 1, nil
}

// Run executes the forward sync loop. Blocks are processed strictly in order and the
// cursor only moves past a block once its snapshot is persisted.
func (s *Synchronizer) Run(ctx context.Context) error {
	if s.chain == nil || s.state == nil || s.store == nil {
		return fmt.Errorf("synchronizer dependencies are not set")
	}

	next, err := s.NextBlock(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("sync start",
		zap.String("network", s.cfg.Network),
		zap.Uint64("from", next),
		zap.Uint64("to", s.cfg.ToBlock),
		zap.Int("pools", len(s.cfg.Pools)),
		zap.Int("options", len(s.cfg.Options)),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cfg.ToBlock > 0 && next > s.cfg.ToBlock {
			s.logger.Info("sync complete", zap.Uint64("last", next-1))
			return nil
		}

		head, err := s.chain.LatestBlockNumber(ctx)
		if err != nil {
			s.logger.Warn("get chain head failed", zap.Error(err))
			if err := sleepCtx(ctx, s.cfg.RetryBackoff); err != nil {
				return err
			}
			continue
		}
		metrics.ChainHead.WithLabelValues(s.cfg.Network).Set(float64(head))
		if s.cfg.ToBlock > 0 && head > s.cfg.ToBlock {
			head = s.cfg.ToBlock
		}

		if next > head {
			if err := sleepCtx(ctx, s.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		for next <= head {
			err := s.syncBlock(ctx, next, pathForward)
			if err == nil {
				metrics.SyncedBlock.WithLabelValues(s.cfg.Network).Set(float64(next))
				next++
				continue
			}
			if errors.Is(err, ErrPersist) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			metrics.BlockRetries.WithLabelValues(s.cfg.Network).Inc()
			s.logger.Warn("block sync failed, retrying", zap.Uint64("block_number", next), zap.Error(err))
			if err := sleepCtx(ctx, s.cfg.RetryBackoff); err != nil {
				return err
			}
		}
	}
}

// SyncBlock fetches and persists one block snapshot. Nothing is written unless every
// hard read succeeded.
func (s *Synchronizer) SyncBlock(ctx context.Context, number uint64) error {
	return s.syncBlock(ctx, number, pathForward)
}

func (s *Synchronizer) syncBlock(ctx context.Context, number uint64, path string) error {
	start := time.Now()
	snap, err := s.fetchSnapshot(ctx, number)
	if err != nil {
		return err
	}
	if err := s.store.SaveBlockSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("%w %d: %w", ErrPersist, number, err)
	}

	metrics.BlocksSynced.WithLabelValues(s.cfg.Network, path).Inc()
	s.logger.Debug("block synced",
		zap.Uint64("block_number", number),
		zap.String("path", path),
		zap.Int("pools", len(snap.Pools)),
		zap.Int("options", len(snap.Options)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *Synchronizer) fetchSnapshot(ctx context.Context, number uint64) (model.BlockSnapshot, error) {
	block, err := s.chain.BlockHeader(ctx, number)
	if err != nil {
		return model.BlockSnapshot{}, fmt.Errorf("block header %d: %w", number, err)
	}

	snap := model.BlockSnapshot{
		Block:   block,
		Pools:   make([]model.PoolSnapshot, len(s.cfg.Pools)),
		Options: make([]model.OptionVolatilitySnapshot, len(s.cfg.Options)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, pool := range s.cfg.Pools {
		i, pool := i, pool
		g.Go(func() error {
			state, err := s.state.PoolState(gctx, pool, number)
			if err != nil {
				return err
			}
			snap.Pools[i] = state
			return nil
		})
	}
	for i, opt := range s.cfg.Options {
		i, opt := i, opt
		snap.Options[i] = model.OptionVolatilitySnapshot{OptionAddress: opt.Address, BlockNumber: number}
		if !opt.Active(block.Timestamp) {
			continue
		}
		g.Go(func() error {
			vol, pos := s.state.OptionVolatilityAndPosition(gctx, opt, number)
			snap.Options[i].Volatility = vol
			snap.Options[i].Position = pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.BlockSnapshot{}, err
	}
	return snap, nil
}
