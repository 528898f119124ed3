package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionsMirror/internal/config"
	"optionsMirror/internal/crawler"
	"optionsMirror/internal/storage"
)

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cutoffRaw, _ := cmd.Flags().GetString("cutoff")
	toBlock, _ := cmd.Flags().GetUint64("to-block")
	dump, _ := cmd.Flags().GetString("dump")
	timeout, _ := cmd.Flags().GetDuration("http-timeout")

	if len(cfg.Protocols) == 0 {
		return fmt.Errorf("protocol list is required")
	}

	var opts crawler.Options
	if cutoffRaw != "" {
		cutoff, err := config.ParseTimestamp(cutoffRaw)
		if err != nil {
			return fmt.Errorf("invalid cutoff: %w", err)
		}
		opts.Cutoff = &cutoff
	}
	if toBlock > 0 {
		opts.ToBlock = &toBlock
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	notifier, closeNotifier, err := openNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	client, err := crawler.NewClient(cfg.IndexerURL, cfg.IndexerAPIKey, timeout)
	if err != nil {
		return err
	}
	c := crawler.New(crawler.Config{
		GenesisBlock:   cfg.EventGenesisBlock,
		PageLimit:      cfg.PageLimit,
		PageDelay:      cfg.PageDelay,
		RateLimitDelay: cfg.RateLimitDelay,
	}, client, store, notifier, logger)
	if dump != "" {
		c.WithSink(storage.NewJsonlWriter(dump))
	}

	res, err := c.Run(ctx, cfg.Protocols, opts)
	if err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("crawl run %s: %d protocols failed", res.RunID, len(res.Failed))
	}
	return nil
}
