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
	"tickScope/internal/replay"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	format, err := replay.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	overrides, err := ingest.ParseSpacingOverrides(cfg.SpacingOverrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := dex.NewLiquidityDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	// Without an RPC the resolver only serves overrides; the replayer then
	// applies --tick-spacing itself.
	var caller dex.ContractCaller
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	}
	resolver, err := dex.NewSpacingResolver(dex.ResolverConfig{
		Overrides:    overrides,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, caller, logger)
	if err != nil {
		return err
	}

	replayer, err := replay.New(replay.Config{
		Format:      format,
		TickSpacing: cfg.TickSpacing,
		Strict:      cfg.Strict,
	}, decoder, resolver, nil, logger)
	if err != nil {
		return err
	}

	stats, err := replayer.Run(ctx, cfg.In)
	if err != nil {
		return err
	}

	store, _, closeStore, err := openSnapshotStore(ctx, cfg.PGDSN, cfg.Out, cfg.Migrate, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	snaps := replayer.Registry().Snapshots()
	if err := store.SaveSnapshots(ctx, snaps); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}

	logger.Info("snapshots stored",
		zap.Int("pools", len(snaps)),
		zap.Int("applied", stats.Applied),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
