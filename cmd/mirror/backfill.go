package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"optionsMirror/internal/chain"
	"optionsMirror/internal/syncer"
)

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	start, _ := cmd.Flags().GetUint64("start")
	end, _ := cmd.Flags().GetUint64("end")
	passes, _ := cmd.Flags().GetInt("passes")
	retries, _ := cmd.Flags().GetInt("max-retries")
	scanBatch, _ := cmd.Flags().GetUint64("scan-batch")

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.AMMAddress == "" {
		return fmt.Errorf("amm-address is required")
	}
	if len(cfg.Pools) == 0 {
		return fmt.Errorf("pool list is required")
	}
	if passes <= 0 {
		passes = 1
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if end == 0 {
		last, ok, err := store.MaxBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("load persisted max block: %w", err)
		}
		if !ok {
			logger.Info("nothing persisted, nothing to backfill")
			return nil
		}
		end = last
	}
	if end < start {
		return fmt.Errorf("end block %d is before start block %d", end, start)
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.Network)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	s := syncer.New(syncer.Config{
		Network:      cfg.Network,
		Pools:        cfg.Pools,
		Options:      cfg.Options,
		RetryBackoff: cfg.RetryBackoff,
	}, client, chain.NewAMM(client, cfg.AMMAddress, logger), store, logger)
	b := syncer.NewBackfiller(syncer.BackfillConfig{
		Workers:   cfg.BackfillWorkers,
		Retries:   retries,
		ScanBatch: scanBatch,
	}, s, store, logger)

	for pass := 1; pass <= passes; pass++ {
		res, err := b.Backfill(ctx, start, end)
		if err != nil {
			return err
		}
		logger.Info("backfill pass done",
			zap.Int("pass", pass),
			zap.Int("missing", len(res.Missing)),
			zap.Int("resolved", res.Resolved),
			zap.Int("failed", len(res.Failed)),
		)
		if len(res.Failed) == 0 {
			return nil
		}
	}

	return fmt.Errorf("holes left after %d passes", passes)
}
