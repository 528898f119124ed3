package crawler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"optionsMirror/internal/model"
)

// eventDataFields is the positional layout shared by all kept actions:
// caller, token, capital (low, high), minted (low, high).
const eventDataFields = 6

// Normalize converts an indexer record into an Event. It reports false for records
// outside the action allow-list, records not yet in a block, and records whose
// data does not have the expected layout.
func Normalize(raw model.RawEvent) (model.Event, bool) {
	if raw.KeyName == nil {
		return model.Event{}, false
	}
	action, ok := model.ParseAction(*raw.KeyName)
	if !ok {
		return model.Event{}, false
	}
	if raw.BlockHash == nil || raw.BlockNumber == nil {
		return model.Event{}, false
	}
	if len(raw.Data) != eventDataFields {
		return model.Event{}, false
	}

	values := make([]*big.Int, eventDataFields)
	for i, d := range raw.Data {
		v, err := model.ParseFelt(d)
		if err != nil {
			return model.Event{}, false
		}
		values[i] = v
	}
	for _, half := range values[2:] {
		if half.BitLen() > 128 {
			return model.Event{}, false
		}
	}

	from, err := model.NormalizeAddress(raw.FromAddress)
	if err != nil {
		return model.Event{}, false
	}

	return model.Event{
		TransactionHash:    raw.TransactionHash,
		EventIndex:         raw.EventIndex,
		BlockHash:          *raw.BlockHash,
		BlockNumber:        *raw.BlockNumber,
		FromAddress:        from,
		Timestamp:          raw.Timestamp,
		Action:             action,
		Caller:             common.BigToHash(values[0]).Hex(),
		TokenAddress:       common.BigToHash(values[1]).Hex(),
		CapitalTransferred: model.NewAmount(model.Uint256(values[2], values[3])),
		TokensMinted:       model.NewAmount(model.Uint256(values[4], values[5])),
	}, true
}
