package model

// PoolSnapshot is the state of one liquidity pool at one block.
// PoolPosition and LpTokenValue are nil when the AMM reports them as not
// computable at that block.
type PoolSnapshot struct {
	PoolAddress     string  `json:"lp_address"`
	BlockNumber     uint64  `json:"block_number"`
	LockedCapital   Amount  `json:"locked_cap"`
	UnlockedCapital Amount  `json:"unlocked_cap"`
	LpBalance       Amount  `json:"lp_balance"`
	PoolPosition    *Amount `json:"pool_position,omitempty"`
	LpTokenValue    *Amount `json:"lp_token_value,omitempty"`
}
