package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionsMirror/internal/chain"
)

func runOracle(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pair, _ := cmd.Flags().GetString("pair")
	block, _ := cmd.Flags().GetUint64("block")

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.OracleAddress == "" {
		return fmt.Errorf("oracle-address is required")
	}

	ctx, stop := signalContext()
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.Network)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	at := chain.Latest
	if block > 0 {
		at = chain.AtBlock(block)
	}

	median, err := chain.NewOracle(client, cfg.OracleAddress).SpotMedian(ctx, pair, at)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (block %s, updated %d, %d sources)\n",
		median.Pair, median.Value().String(), at, median.LastUpdated, median.NumSources)
	return nil
}
