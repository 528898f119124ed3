package model

// Action is one of the AMM events the mirror keeps.
type Action string

const (
	ActionTradeOpen         Action = "TradeOpen"
	ActionTradeClose        Action = "TradeClose"
	ActionTradeSettle       Action = "TradeSettle"
	ActionDepositLiquidity  Action = "DepositLiquidity"
	ActionWithdrawLiquidity Action = "WithdrawLiquidity"
)

// Actions is the allow-list of event names.
var Actions = []Action{
	ActionTradeOpen,
	ActionTradeClose,
	ActionTradeSettle,
	ActionDepositLiquidity,
	ActionWithdrawLiquidity,
}

// ParseAction returns the action for an indexer key name.
func ParseAction(name string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// RawEvent is one event as returned by the indexer API.
type RawEvent struct {
	BlockHash       *string  `json:"block_hash"`
	BlockNumber     *uint64  `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
	EventIndex      uint64   `json:"event_index"`
	FromAddress     string   `json:"from_address"`
	Keys            []string `json:"keys"`
	Data            []string `json:"data"`
	Timestamp       uint64   `json:"timestamp"`
	KeyName         *string  `json:"key_name"`
}

// Event is a normalized AMM event. (TransactionHash, EventIndex) is unique.
type Event struct {
	TransactionHash    string `json:"transaction_hash"`
	EventIndex         uint64 `json:"event_index"`
	BlockHash          string `json:"block_hash"`
	BlockNumber        uint64 `json:"block_number"`
	FromAddress        string `json:"from_address"`
	Timestamp          uint64 `json:"timestamp"`
	Action             Action `json:"action"`
	Caller             string `json:"caller"`
	TokenAddress       string `json:"token_address"`
	CapitalTransferred Amount `json:"capital_transfered"`
	TokensMinted       Amount `json:"tokens_minted"`
}
