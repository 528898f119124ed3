package model

// Block is the header part the mirror keeps for every synced block.
type Block struct {
	Number    uint64 `json:"block_number"`
	Timestamp uint64 `json:"timestamp"`
}

// BlockSnapshot is everything persisted for one block, written as one unit.
type BlockSnapshot struct {
	Block   Block
	Pools   []PoolSnapshot
	Options []OptionVolatilitySnapshot
}
