package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "mirror",
		Short:        "Off-chain mirror of the options AMM state and events",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Follow the chain and persist pool and option state per block",
		RunE:  runSync,
	}
	chainFlags(syncCmd.Flags())
	storeFlags(syncCmd.Flags())
	syncCmd.Flags().Uint64("genesis-block", 0, "first block synced on an empty store")
	syncCmd.Flags().Uint64("to", 0, "stop after this block, 0 follows the head")
	syncCmd.Flags().Duration("retry-backoff", 3*time.Second, "delay before retrying a failed block")
	syncCmd.Flags().Duration("poll-interval", 30*time.Second, "head polling interval once caught up")
	syncCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(syncCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Find and fill holes in persisted pool state",
		RunE:  runBackfill,
	}
	chainFlags(backfillCmd.Flags())
	storeFlags(backfillCmd.Flags())
	backfillCmd.Flags().Uint64("start", 0, "first block of the scanned range (inclusive)")
	backfillCmd.Flags().Uint64("end", 0, "last block of the scanned range (inclusive), 0 means persisted max")
	backfillCmd.Flags().Int("passes", 3, "maximum backfill passes")
	backfillCmd.Flags().Int("backfill-workers", 4, "holes resolved concurrently")
	backfillCmd.Flags().Int("max-retries", 2, "extra attempts per hole within a pass")
	backfillCmd.Flags().Uint64("scan-batch", 10000, "blocks loaded from the store per gap query")
	backfillCmd.Flags().Duration("retry-backoff", 3*time.Second, "initial retry backoff")
	backfillCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(backfillCmd)

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl AMM events from the indexer API",
		RunE:  runCrawl,
	}
	storeFlags(crawlCmd.Flags())
	crawlCmd.Flags().StringSlice("protocols", nil, "emitting contract addresses (comma-separated)")
	crawlCmd.Flags().String("indexer-url", "https://api.starkscan.co/api/v0/events", "indexer events endpoint")
	crawlCmd.Flags().String("indexer-api-key", "", "indexer API key")
	crawlCmd.Flags().Uint64("event-genesis-block", 0, "first block crawled for a protocol with no events")
	crawlCmd.Flags().Int("page-limit", 100, "events per page (max 100)")
	crawlCmd.Flags().Duration("page-delay", time.Second, "delay between pages")
	crawlCmd.Flags().Duration("rate-limit-delay", 10*time.Second, "delay before re-issuing a rate limited page")
	crawlCmd.Flags().Duration("http-timeout", 30*time.Second, "indexer request timeout")
	crawlCmd.Flags().String("cutoff", "", "stop at the first event at or before this time (unix seconds or RFC3339)")
	crawlCmd.Flags().Uint64("to-block", 0, "last block requested, 0 means no bound")
	crawlCmd.Flags().String("dump", "", "also append crawled events to this JSONL file")
	crawlCmd.Flags().String("redis-url", "", "publish crawl alerts to Redis (redis://...)")
	crawlCmd.Flags().String("alert-channel", "mirror:alerts", "Redis channel for alerts")
	crawlCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(crawlCmd)

	oracleCmd := &cobra.Command{
		Use:   "oracle",
		Short: "Print the oracle spot median for a pair",
		RunE:  runOracle,
	}
	oracleCmd.Flags().String("rpc", "", "Starknet RPC URL")
	oracleCmd.Flags().String("network", "mainnet", "network label")
	oracleCmd.Flags().String("oracle-address", "", "oracle contract address")
	oracleCmd.Flags().String("pair", "ETH/USD", "pair id")
	oracleCmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")
	oracleCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(oracleCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to Postgres",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func chainFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "Starknet RPC URL")
	fs.String("network", "mainnet", "network label")
	fs.String("amm-address", "", "options AMM contract address")
	fs.StringSlice("pools", nil, "liquidity pool addresses (comma-separated)")
}

func storeFlags(fs *pflag.FlagSet) {
	fs.String("pg-dsn", "", "Postgres DSN")
	fs.String("sqlite-path", "", "SQLite database path, used when pg-dsn is empty")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
