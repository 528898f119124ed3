package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"optionsMirror/internal/model"
	"optionsMirror/internal/storage"
)

// Store provides Postgres persistence for block snapshots and events.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveBlockSnapshot inserts the block, pool rows and option rows in one transaction.
func (s *Store) SaveBlockSnapshot(ctx context.Context, snap model.BlockSnapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO blocks (block_number, timestamp)
			VALUES ($1, $2)
			ON CONFLICT (block_number) DO NOTHING
		`, int64(snap.Block.Number), int64(snap.Block.Timestamp))

		for _, p := range snap.Pools {
			batch.Queue(`
				INSERT INTO pool_state (
					lp_address, block_number, unlocked_cap, locked_cap, lp_balance, pool_position, lp_token_value
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (lp_address, block_number) DO NOTHING
			`,
				p.PoolAddress,
				int64(p.BlockNumber),
				string(p.UnlockedCapital),
				string(p.LockedCapital),
				string(p.LpBalance),
				storage.NullableAmount(p.PoolPosition),
				storage.NullableAmount(p.LpTokenValue),
			)
		}

		for _, o := range snap.Options {
			batch.Queue(`
				INSERT INTO options_volatility (option_address, block_number, volatility, option_position)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (option_address, block_number) DO NOTHING
			`,
				o.OptionAddress,
				int64(o.BlockNumber),
				storage.NullableAmount(o.Volatility),
				storage.NullableAmount(o.Position),
			)
		}

		return execBatch(ctx, tx, batch)
	})
}

// MaxBlockNumber returns the highest block in the blocks table.
func (s *Store) MaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	return s.maxBlock(ctx, `SELECT MAX(block_number) FROM blocks`)
}

// PoolBlockNumbers returns persisted block numbers for pool within [from, to].
func (s *Store) PoolBlockNumbers(ctx context.Context, pool string, from, to uint64) ([]uint64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT block_number FROM pool_state
		WHERE lp_address = $1 AND block_number BETWEEN $2 AND $3
		ORDER BY block_number
	`, pool, int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, uint64(n))
	}
	return out, nil
}

// InsertEvents inserts events, ignoring ones already stored.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO starkscan_events (
				transaction_hash, event_index, block_hash, block_number, from_address, timestamp,
				action, caller, token_address, capital_transfered, tokens_minted
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (transaction_hash, event_index) DO NOTHING
		`,
			e.TransactionHash,
			int64(e.EventIndex),
			e.BlockHash,
			int64(e.BlockNumber),
			e.FromAddress,
			int64(e.Timestamp),
			string(e.Action),
			e.Caller,
			e.TokenAddress,
			string(e.CapitalTransferred),
			string(e.TokensMinted),
		)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return execBatch(ctx, tx, batch)
	})
}

// MaxEventBlock returns the highest event block emitted by address.
func (s *Store) MaxEventBlock(ctx context.Context, address string) (uint64, bool, error) {
	return s.maxBlock(ctx, `SELECT MAX(block_number) FROM starkscan_events WHERE from_address = $1`, address)
}

func (s *Store) maxBlock(ctx context.Context, query string, args ...interface{}) (uint64, bool, error) {
	var n *int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, false, err
	}
	if n == nil {
		return 0, false, nil
	}
	return uint64(*n), true, nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
