package model

import (
	"math/big"
	"testing"
)

func TestNewAmountFixedWidth(t *testing.T) {
	got := NewAmount(big.NewInt(255))
	want := Amount("0x00000000000000000000000000000000000000000000000000000000000000ff")
	if got != want {
		t.Fatalf("amount mismatch: %s != %s", got, want)
	}

	back, err := got.Big()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Int64() != 255 {
		t.Fatalf("decoded %s", back)
	}
}

func TestNewAmountKeepsFull256Bits(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	a := NewAmount(max)
	if len(a) != 66 {
		t.Fatalf("unexpected width %d", len(a))
	}
	back, err := a.Big()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Cmp(max) != 0 {
		t.Fatalf("precision lost: %s", back)
	}
}

func TestParseFelt(t *testing.T) {
	cases := map[string]int64{
		"0x0":   0,
		"0x01":  1,
		"0x1a":  26,
		"1A":    26,
		" 0x10": 16,
	}
	for in, want := range cases {
		got, err := ParseFelt(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got.Int64() != want {
			t.Fatalf("parse %q: got %s want %d", in, got, want)
		}
	}

	for _, bad := range []string{"", "0x", "0xzz"} {
		if _, err := ParseFelt(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestUint256(t *testing.T) {
	got := Uint256(big.NewInt(5), big.NewInt(1))
	want := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(5))
	if got.Cmp(want) != 0 {
		t.Fatalf("uint256 mismatch: %s != %s", got, want)
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x5A")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "0x000000000000000000000000000000000000000000000000000000000000005a"
	if got != want {
		t.Fatalf("address mismatch: %s != %s", got, want)
	}
}

func TestOptionActive(t *testing.T) {
	opt := Option{Maturity: 1000}
	if !opt.Active(1000 + OptionGracePeriod - 1) {
		t.Fatalf("option should be active inside grace window")
	}
	if opt.Active(1000 + OptionGracePeriod) {
		t.Fatalf("option should be expired at maturity plus grace")
	}
}
