package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var files embed.FS

// Up applies all pending migrations to the Postgres database at dsn.
func Up(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("pg dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(files)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Schema returns the up section of the initial migration, used by the SQLite store.
func Schema() (string, error) {
	data, err := files.ReadFile("00001_init.sql")
	if err != nil {
		return "", err
	}
	return upSection(string(data)), nil
}
