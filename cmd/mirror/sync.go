package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"optionsMirror/internal/chain"
	"optionsMirror/internal/syncer"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.AMMAddress == "" {
		return fmt.Errorf("amm-address is required")
	}
	if len(cfg.Pools) == 0 {
		return fmt.Errorf("pool list is required")
	}

	ctx, stop := signalContext()
	defer stop()

	serveMetrics(ctx, cfg.MetricsAddr, logger)

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.Network)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	amm := chain.NewAMM(client, cfg.AMMAddress, logger)
	s := syncer.New(syncer.Config{
		Network:      cfg.Network,
		Pools:        cfg.Pools,
		Options:      cfg.Options,
		GenesisBlock: cfg.GenesisBlock,
		ToBlock:      cfg.ToBlock,
		RetryBackoff: cfg.RetryBackoff,
		PollInterval: cfg.PollInterval,
	}, client, amm, store, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("network", cfg.Network),
		zap.String("amm", cfg.AMMAddress),
		zap.Strings("pools", cfg.Pools),
		zap.Int("options", len(cfg.Options)),
	)

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
