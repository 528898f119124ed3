package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optionsMirror/internal/metrics"
	"optionsMirror/internal/model"
)

const (
	fnLockedCapital    = "get_pool_locked_capital"
	fnUnlockedCapital  = "get_unlocked_capital"
	fnLpoolBalance     = "get_lpool_balance"
	fnValueOfPosition  = "get_value_of_pool_position"
	fnUnderlyingForLpt = "get_underlying_for_lptokens"
	fnOptionVolatility = "get_option_volatility"
	fnOptionPosition   = "get_option_position"
)

// One whole LP token, 10^18 base units.
var oneLpToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Reader performs contract reads. *Client satisfies it.
type Reader interface {
	Call(ctx context.Context, contract, entryPoint string, calldata []*big.Int, block BlockID) ([]*big.Int, error)
}

// AMM reads pool and option state from the options AMM contract at historical blocks.
type AMM struct {
	reader  Reader
	address string
	logger  *zap.Logger
}

func NewAMM(reader Reader, address string, logger *zap.Logger) *AMM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMM{reader: reader, address: address, logger: logger}
}

// LockedCapital returns capital locked by open options of the pool.
func (a *AMM) LockedCapital(ctx context.Context, pool string, block uint64) (model.Amount, error) {
	return a.hardFelt(ctx, fnLockedCapital, pool, block)
}

// UnlockedCapital returns capital available to underwrite new options.
func (a *AMM) UnlockedCapital(ctx context.Context, pool string, block uint64) (model.Amount, error) {
	return a.hardFelt(ctx, fnUnlockedCapital, pool, block)
}

// LpoolBalance returns the total pool balance.
func (a *AMM) LpoolBalance(ctx context.Context, pool string, block uint64) (model.Amount, error) {
	return a.hardFelt(ctx, fnLpoolBalance, pool, block)
}

// ValueOfPoolPosition returns nil when the AMM cannot price the position at block.
func (a *AMM) ValueOfPoolPosition(ctx context.Context, pool string, block uint64) (*model.Amount, error) {
	values, err := a.read(ctx, fnValueOfPosition, block, pool)
	if err != nil {
		return a.soft(fnValueOfPosition, pool, block, err)
	}
	if len(values) < 1 {
		return nil, fmt.Errorf("%s: empty result: %w", fnValueOfPosition, ErrMalformedResult)
	}
	return model.AmountPtr(values[0]), nil
}

// ValueOfLpToken returns the underlying value of one LP token, nil when not computable.
func (a *AMM) ValueOfLpToken(ctx context.Context, pool string, block uint64) (*model.Amount, error) {
	lpt, err := feltArg(pool)
	if err != nil {
		return nil, err
	}
	low := new(big.Int).And(oneLpToken, maxUint128)
	high := new(big.Int).Rsh(oneLpToken, 128)
	values, err := a.reader.Call(ctx, a.address, fnUnderlyingForLpt, []*big.Int{lpt, low, high}, AtBlock(block))
	if err != nil {
		return a.soft(fnUnderlyingForLpt, pool, block, err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("%s: want uint256, got %d felts: %w", fnUnderlyingForLpt, len(values), ErrMalformedResult)
	}
	return model.AmountPtr(model.Uint256(values[0], values[1])), nil
}

// PoolState issues the five pool reads concurrently. Any hard failure fails the whole snapshot.
func (a *AMM) PoolState(ctx context.Context, pool string, block uint64) (model.PoolSnapshot, error) {
	snap := model.PoolSnapshot{PoolAddress: pool, BlockNumber: block}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.LockedCapital, err = a.LockedCapital(gctx, pool, block)
		return err
	})
	g.Go(func() (err error) {
		snap.UnlockedCapital, err = a.UnlockedCapital(gctx, pool, block)
		return err
	})
	g.Go(func() (err error) {
		snap.LpBalance, err = a.LpoolBalance(gctx, pool, block)
		return err
	})
	g.Go(func() (err error) {
		snap.PoolPosition, err = a.ValueOfPoolPosition(gctx, pool, block)
		return err
	})
	g.Go(func() (err error) {
		snap.LpTokenValue, err = a.ValueOfLpToken(gctx, pool, block)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("pool %s at %d: %w", pool, block, err)
	}
	return snap, nil
}

// OptionVolatilityAndPosition reads volatility and position concurrently.
// Each value is nil when its own read fails; failures are never returned.
func (a *AMM) OptionVolatilityAndPosition(ctx context.Context, opt model.Option, block uint64) (*model.Amount, *model.Amount) {
	var (
		wg       sync.WaitGroup
		vol, pos *model.Amount
	)

	maturity := new(big.Int).SetUint64(opt.Maturity)
	side := big.NewInt(int64(opt.Side))

	wg.Add(2)
	go func() {
		defer wg.Done()
		values, err := a.read(ctx, fnOptionVolatility, block, opt.PoolAddress, maturity, opt.StrikePrice)
		if err != nil || len(values) < 1 {
			a.logger.Debug("option volatility unavailable", zap.String("option", opt.Address), zap.Uint64("block_number", block), zap.Error(err))
			return
		}
		vol = model.AmountPtr(values[0])
	}()
	go func() {
		defer wg.Done()
		values, err := a.read(ctx, fnOptionPosition, block, opt.PoolAddress, side, maturity, opt.StrikePrice)
		if err != nil || len(values) < 1 {
			a.logger.Debug("option position unavailable", zap.String("option", opt.Address), zap.Uint64("block_number", block), zap.Error(err))
			return
		}
		pos = model.AmountPtr(values[0])
	}()
	wg.Wait()

	return vol, pos
}

func (a *AMM) hardFelt(ctx context.Context, fn, pool string, block uint64) (model.Amount, error) {
	values, err := a.read(ctx, fn, block, pool)
	if err != nil {
		return "", err
	}
	if len(values) < 1 {
		return "", fmt.Errorf("%s: empty result: %w", fn, ErrMalformedResult)
	}
	return model.NewAmount(values[0]), nil
}

func (a *AMM) soft(fn, pool string, block uint64, err error) (*model.Amount, error) {
	c := Classify(err)
	if !c.Soft() {
		return nil, err
	}
	metrics.SoftFailures.WithLabelValues(fn, c.Reason).Inc()
	a.logger.Debug("value not computable",
		zap.String("function", fn),
		zap.String("pool", pool),
		zap.Uint64("block_number", block),
		zap.String("reason", c.Reason),
	)
	return nil, nil
}

// read accepts felt hex strings and *big.Int arguments.
func (a *AMM) read(ctx context.Context, fn string, block uint64, args ...interface{}) ([]*big.Int, error) {
	calldata := make([]*big.Int, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case *big.Int:
			calldata = append(calldata, v)
		case string:
			f, err := feltArg(v)
			if err != nil {
				return nil, err
			}
			calldata = append(calldata, f)
		default:
			return nil, fmt.Errorf("%s: unsupported calldata type %T", fn, arg)
		}
	}
	return a.reader.Call(ctx, a.address, fn, calldata, AtBlock(block))
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

func feltArg(s string) (*big.Int, error) {
	v, err := model.ParseFelt(s)
	if err != nil {
		return nil, fmt.Errorf("calldata: %w", err)
	}
	return v, nil
}
