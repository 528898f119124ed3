package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const fnGetDataMedian = "get_data_median"

// Data type variant of the oracle's DataType enum for spot entries.
const spotEntryVariant = 0

// SpotMedian is the aggregated spot price of a pair.
type SpotMedian struct {
	Pair        string
	Price       *big.Int
	Decimals    uint32
	LastUpdated uint64
	NumSources  uint32
}

// Value returns the price scaled by its decimals.
func (s SpotMedian) Value() decimal.Decimal {
	if s.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(s.Price, -int32(s.Decimals))
}

// Oracle reads the price feed contract.
type Oracle struct {
	reader  Reader
	address string
}

func NewOracle(reader Reader, address string) *Oracle {
	return &Oracle{reader: reader, address: address}
}

// SpotMedian returns the median spot price for a pair such as "ETH/USD" at block.
func (o *Oracle) SpotMedian(ctx context.Context, pair string, block BlockID) (SpotMedian, error) {
	if pair == "" || len(pair) > 31 {
		return SpotMedian{}, fmt.Errorf("invalid pair %q", pair)
	}
	calldata := []*big.Int{big.NewInt(spotEntryVariant), ShortString(pair)}
	values, err := o.reader.Call(ctx, o.address, fnGetDataMedian, calldata, block)
	if err != nil {
		return SpotMedian{}, err
	}
	return decodeSpotMedian(pair, values)
}

func decodeSpotMedian(pair string, values []*big.Int) (SpotMedian, error) {
	if len(values) < 4 {
		return SpotMedian{}, fmt.Errorf("%s: want at least 4 fields, got %d: %w", fnGetDataMedian, len(values), ErrMalformedResult)
	}
	if values[0].BitLen() > 128 {
		return SpotMedian{}, fmt.Errorf("%s: price overflows u128: %w", fnGetDataMedian, ErrMalformedResult)
	}
	decimals, err := fitUint(values[1], 32, "decimals")
	if err != nil {
		return SpotMedian{}, err
	}
	updated, err := fitUint(values[2], 64, "last_updated_timestamp")
	if err != nil {
		return SpotMedian{}, err
	}
	sources, err := fitUint(values[3], 32, "num_sources_aggregated")
	if err != nil {
		return SpotMedian{}, err
	}
	return SpotMedian{
		Pair:        pair,
		Price:       new(big.Int).Set(values[0]),
		Decimals:    uint32(decimals),
		LastUpdated: updated,
		NumSources:  uint32(sources),
	}, nil
}

func fitUint(v *big.Int, bits int, field string) (uint64, error) {
	if v.Sign() < 0 || v.BitLen() > bits {
		return 0, fmt.Errorf("%s: %s overflows u%d: %w", fnGetDataMedian, field, bits, ErrMalformedResult)
	}
	return v.Uint64(), nil
}
