package model

// OptionGracePeriod is how long after maturity an option is still queried.
const OptionGracePeriod uint64 = 2 * 24 * 60 * 60

// Option side as encoded in AMM calldata.
const (
	SideLong  uint8 = 0
	SideShort uint8 = 1
)

// Option identifies one option token and the pool it trades against.
type Option struct {
	Address     string `json:"option_address" mapstructure:"address"`
	PoolAddress string `json:"lp_address" mapstructure:"pool"`
	Maturity    uint64 `json:"maturity" mapstructure:"maturity"`
	StrikePrice string `json:"strike_price" mapstructure:"strike"`
	Side        uint8  `json:"side" mapstructure:"side"`
}

// Active reports whether the option is still inside maturity plus the grace window at ts.
func (o Option) Active(ts uint64) bool {
	return o.Maturity+OptionGracePeriod > ts
}

// OptionVolatilitySnapshot is the volatility and pool position of an option at one block.
type OptionVolatilitySnapshot struct {
	OptionAddress string  `json:"option_address"`
	BlockNumber   uint64  `json:"block_number"`
	Volatility    *Amount `json:"volatility,omitempty"`
	Position      *Amount `json:"option_position,omitempty"`
}
