package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Amount is an unsigned 256-bit value carried as a fixed-width hex string.
type Amount string

// NewAmount encodes v as a 0x-prefixed, 64 digit hex string.
func NewAmount(v *big.Int) Amount {
	if v == nil {
		v = new(big.Int)
	}
	return Amount(fmt.Sprintf("0x%064x", v))
}

// AmountPtr is NewAmount for optional fields.
func AmountPtr(v *big.Int) *Amount {
	if v == nil {
		return nil
	}
	a := NewAmount(v)
	return &a
}

// Big decodes the amount.
func (a Amount) Big() (*big.Int, error) {
	return ParseFelt(string(a))
}

func (a Amount) String() string {
	return string(a)
}

// ParseFelt decodes a hex felt. Leading zero digits are accepted.
func ParseFelt(input string) (*big.Int, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty felt: %q", input)
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid felt: %q", input)
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("felt overflows 256 bits: %q", input)
	}
	return v, nil
}

// Uint256 joins a (low, high) felt pair into one value.
func Uint256(low, high *big.Int) *big.Int {
	v := new(big.Int).Lsh(high, 128)
	return v.Or(v, low)
}

// NormalizeAddress returns the address left padded to 32 bytes, lower case.
func NormalizeAddress(addr string) (string, error) {
	v, err := ParseFelt(addr)
	if err != nil {
		return "", err
	}
	return common.BigToHash(v).Hex(), nil
}
