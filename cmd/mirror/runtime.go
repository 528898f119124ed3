package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"optionsMirror/internal/config"
	"optionsMirror/internal/notify"
	"optionsMirror/internal/storage"
	"optionsMirror/internal/storage/postgres"
	"optionsMirror/internal/storage/sqlite"
)

// setup loads the config and logger shared by every subcommand.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore prefers Postgres and falls back to SQLite.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch {
	case cfg.PGDSN != "":
		return postgres.NewStore(ctx, cfg.PGDSN)
	case cfg.SQLitePath != "":
		return sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("pg-dsn or sqlite-path is required")
	}
}

// openNotifier always logs alerts and also publishes them when redis-url is set.
// The returned func waits for pending publishes and closes the client.
func openNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Notifier, func(), error) {
	logNotifier := notify.NewLogNotifier(logger)
	if cfg.RedisURL == "" {
		return logNotifier, func() {}, nil
	}

	client, err := notify.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	redisNotifier := notify.NewRedisNotifier(client, cfg.AlertChannel, logger)
	closeFn := func() {
		redisNotifier.Wait()
		client.Close()
	}
	return notify.Multi{logNotifier, redisNotifier}, closeFn, nil
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
