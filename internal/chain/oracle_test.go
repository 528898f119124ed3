package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestSpotMedian(t *testing.T) {
	var got []*big.Int
	reader := &fakeReader{fns: map[string]func([]*big.Int) ([]*big.Int, error){
		fnGetDataMedian: func(calldata []*big.Int) ([]*big.Int, error) {
			got = calldata
			return []*big.Int{big.NewInt(325012345678), big.NewInt(8), big.NewInt(1700000000), big.NewInt(5), big.NewInt(0)}, nil
		},
	}}
	oracle := NewOracle(reader, "0xfeed")

	median, err := oracle.SpotMedian(context.Background(), "ETH/USD", AtBlock(10))
	if err != nil {
		t.Fatalf("spot median: %v", err)
	}
	if len(got) != 2 || got[0].Sign() != 0 || got[1].Cmp(ShortString("ETH/USD")) != 0 {
		t.Fatalf("calldata mismatch: %v", got)
	}
	if median.Decimals != 8 || median.LastUpdated != 1700000000 || median.NumSources != 5 {
		t.Fatalf("decode mismatch: %+v", median)
	}
	if median.Value().String() != "3250.12345678" {
		t.Fatalf("value mismatch: %s", median.Value())
	}
}

func TestSpotMedianShortResult(t *testing.T) {
	reader := &fakeReader{fns: map[string]func([]*big.Int) ([]*big.Int, error){
		fnGetDataMedian: constFelts(1, 8, 1700000000),
	}}
	oracle := NewOracle(reader, "0xfeed")

	if _, err := oracle.SpotMedian(context.Background(), "ETH/USD", Latest); !errors.Is(err, ErrMalformedResult) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSpotMedianFieldWidth(t *testing.T) {
	tooWide := new(big.Int).Lsh(big.NewInt(1), 40)
	reader := &fakeReader{fns: map[string]func([]*big.Int) ([]*big.Int, error){
		fnGetDataMedian: func([]*big.Int) ([]*big.Int, error) {
			return []*big.Int{big.NewInt(1), tooWide, big.NewInt(1), big.NewInt(1)}, nil
		},
	}}
	oracle := NewOracle(reader, "0xfeed")

	if _, err := oracle.SpotMedian(context.Background(), "ETH/USD", Latest); !errors.Is(err, ErrMalformedResult) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}
