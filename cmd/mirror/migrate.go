package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"optionsMirror/internal/storage/migrations"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	if err := migrations.Up(ctx, cfg.PGDSN); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("dialect", "postgres"))
	return nil
}
