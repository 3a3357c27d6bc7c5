package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickScope/internal/chain"
	"tickScope/internal/config"
	"tickScope/internal/dex"
	"tickScope/internal/ingest"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSync(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := ingest.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	overrides, err := ingest.ParseSpacingOverrides(cfg.SpacingOverrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	decoder, err := dex.NewLiquidityDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	resolver, err := dex.NewSpacingResolver(dex.ResolverConfig{
		Overrides:    overrides,
		Fallback:     cfg.TickSpacing,
		CacheSize:    cfg.SpacingCacheSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)
	if err != nil {
		return err
	}

	store, pg, closeStore, err := openSnapshotStore(ctx, cfg.PGDSN, cfg.Out, cfg.Migrate, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var state ingest.StateStore
	if cfg.CheckpointEnabled {
		if pg != nil {
			state = &ingest.DBStateStore{Store: pg, Name: cfg.StateName}
		} else {
			state = &ingest.FileStateStore{Path: cfg.Checkpoint}
		}
	}

	runner := ingest.NewRunner(ingest.RunConfig{
		FromBlock:     cfg.FromBlock,
		ToBlock:       cfg.ToBlock,
		Confirmations: cfg.Confirmations,
		Addresses:     addresses,
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		Strict:        cfg.Strict,
	}, chainClient, decoder, resolver, nil, store, state, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("confirmations", cfg.Confirmations),
		zap.Int("addresses", len(addresses)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("postgres", pg != nil),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("sync complete",
		zap.Int("logs", stats.Logs),
		zap.Int("applied", stats.Applied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("pools", len(runner.Registry().Pools())),
	)
	return nil
}
