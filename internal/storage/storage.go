package storage

import (
	"context"

	"optionsMirror/internal/model"
)

// BlockStore persists per-block state snapshots.
type BlockStore interface {
	// SaveBlockSnapshot writes the block, its pool rows and option rows as one unit.
	// Rows that already exist are left untouched.
	SaveBlockSnapshot(ctx context.Context, snap model.BlockSnapshot) error
	// MaxBlockNumber returns the highest persisted block.
	MaxBlockNumber(ctx context.Context) (uint64, bool, error)
	// PoolBlockNumbers returns persisted block numbers for a pool within [from, to], ascending.
	PoolBlockNumbers(ctx context.Context, pool string, from, to uint64) ([]uint64, error)
}

// EventStore persists normalized AMM events.
type EventStore interface {
	// InsertEvents ignores events whose (transaction_hash, event_index) already exists.
	InsertEvents(ctx context.Context, events []model.Event) error
	// MaxEventBlock returns the highest persisted event block emitted by address.
	MaxEventBlock(ctx context.Context, address string) (uint64, bool, error)
}

// Store is the full persistence gateway.
type Store interface {
	BlockStore
	EventStore
	Close()
}

// NullableAmount converts an optional amount to a driver value.
func NullableAmount(a *model.Amount) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}
