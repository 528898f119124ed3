package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"optionsMirror/internal/model"
)

// ParseAddresses normalizes felt addresses to fixed-width hex.
func ParseAddresses(inputs []string) ([]string, error) {
	addresses := make([]string, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		addr, err := model.NormalizeAddress(input)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseOptions validates configured options and normalizes their addresses.
func ParseOptions(options []model.Option) ([]model.Option, error) {
	out := make([]model.Option, 0, len(options))
	for i, opt := range options {
		addr, err := model.NormalizeAddress(opt.Address)
		if err != nil {
			return nil, fmt.Errorf("option %d: invalid address %q", i, opt.Address)
		}
		pool, err := model.NormalizeAddress(opt.PoolAddress)
		if err != nil {
			return nil, fmt.Errorf("option %d: invalid pool %q", i, opt.PoolAddress)
		}
		if _, err := model.ParseFelt(opt.StrikePrice); err != nil {
			return nil, fmt.Errorf("option %d: invalid strike %q", i, opt.StrikePrice)
		}
		if opt.Maturity == 0 {
			return nil, fmt.Errorf("option %d: maturity is required", i)
		}
		if opt.Side != model.SideLong && opt.Side != model.SideShort {
			return nil, fmt.Errorf("option %d: side must be 0 or 1", i)
		}
		opt.Address = addr
		opt.PoolAddress = pool
		out = append(out, opt)
	}
	return out, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
