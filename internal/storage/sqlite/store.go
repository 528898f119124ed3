package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"optionsMirror/internal/model"
	"optionsMirror/internal/storage"
	"optionsMirror/internal/storage/migrations"
)

// Store is a single-file SQLite persistence gateway for local runs.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	schema, err := migrations.Schema()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// SaveBlockSnapshot writes the block with all its rows in one transaction.
func (s *Store) SaveBlockSnapshot(ctx context.Context, snap model.BlockSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blocks (block_number, timestamp) VALUES (?, ?) ON CONFLICT (block_number) DO NOTHING`,
		int64(snap.Block.Number), int64(snap.Block.Timestamp),
	); err != nil {
		return fmt.Errorf("insert block: %w", err)
	}

	for _, p := range snap.Pools {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pool_state (lp_address, block_number, unlocked_cap, locked_cap, lp_balance, pool_position, lp_token_value)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (lp_address, block_number) DO NOTHING`,
			p.PoolAddress,
			int64(p.BlockNumber),
			string(p.UnlockedCapital),
			string(p.LockedCapital),
			string(p.LpBalance),
			storage.NullableAmount(p.PoolPosition),
			storage.NullableAmount(p.LpTokenValue),
		); err != nil {
			return fmt.Errorf("insert pool state: %w", err)
		}
	}

	for _, o := range snap.Options {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO options_volatility (option_address, block_number, volatility, option_position)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (option_address, block_number) DO NOTHING`,
			o.OptionAddress,
			int64(o.BlockNumber),
			storage.NullableAmount(o.Volatility),
			storage.NullableAmount(o.Position),
		); err != nil {
			return fmt.Errorf("insert option volatility: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) MaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	return s.maxBlock(ctx, `SELECT MAX(block_number) FROM blocks`)
}

func (s *Store) PoolBlockNumbers(ctx context.Context, pool string, from, to uint64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_number FROM pool_state WHERE lp_address = ? AND block_number BETWEEN ? AND ? ORDER BY block_number`,
		pool, int64(from), int64(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, uint64(n))
	}
	return out, rows.Err()
}

func (s *Store) InsertEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO starkscan_events (
				transaction_hash, event_index, block_hash, block_number, from_address, timestamp,
				action, caller, token_address, capital_transfered, tokens_minted
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (transaction_hash, event_index) DO NOTHING`,
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
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) MaxEventBlock(ctx context.Context, address string) (uint64, bool, error) {
	return s.maxBlock(ctx, `SELECT MAX(block_number) FROM starkscan_events WHERE from_address = ?`, address)
}

func (s *Store) maxBlock(ctx context.Context, query string, args ...interface{}) (uint64, bool, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, false, err
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}
