package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ticks",
		Short:        "V3 pool initialized-tick index",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Build tick books from on-chain Mint/Burn logs",
		RunE:  runSync,
	}

	syncCmd.Flags().String("rpc", "", "RPC URL")
	syncCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	syncCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	syncCmd.Flags().Uint64("confirmations", 0, "blocks to stay behind latest when --to is 0")
	syncCmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	syncCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	syncCmd.Flags().Bool("strict", false, "stop on an event the book rejects")
	syncCmd.Flags().String("topic0-map", "", "extra topic0->mint/burn mappings (comma-separated key=value)")
	syncCmd.Flags().String("spacing-override", "", "pool->tick spacing overrides (comma-separated key=value)")
	syncCmd.Flags().Int32("tick-spacing", 0, "tick spacing used when a pool's cannot be read")
	syncCmd.Flags().Int("spacing-cache-size", 1024, "pools kept in the tick spacing cache")
	syncCmd.Flags().String("out", "./data/ticks.jsonl", "snapshot JSONL path (ignored with --pg-dsn)")
	syncCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshots and state")
	syncCmd.Flags().Bool("migrate", false, "apply the Postgres schema before syncing")
	syncCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (ignored with --pg-dsn)")
	syncCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	syncCmd.Flags().String("state-name", "sync", "indexer_state row name (with --pg-dsn)")
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(syncCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Build tick books from a JSONL file of pool events",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input JSONL")
	replayCmd.Flags().String("format", "typed", "input format (raw, typed)")
	replayCmd.Flags().String("rpc", "", "optional RPC URL to read tick spacing")
	replayCmd.Flags().Int("max-retries", 3, "maximum retry attempts for tick spacing reads")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().Int32("tick-spacing", 0, "tick spacing used when neither the record nor the RPC provides one")
	replayCmd.Flags().String("spacing-override", "", "pool->tick spacing overrides (comma-separated key=value)")
	replayCmd.Flags().String("topic0-map", "", "extra topic0->mint/burn mappings (comma-separated key=value)")
	replayCmd.Flags().Bool("strict", false, "stop on the first rejected event")
	replayCmd.Flags().String("out", "./data/ticks.jsonl", "snapshot JSONL path (ignored with --pg-dsn)")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshots")
	replayCmd.Flags().Bool("migrate", false, "apply the Postgres schema before writing")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Find the next initialized tick of a stored pool",
		RunE:  runNext,
	}
	addQueryFlags(nextCmd)
	root.AddCommand(nextCmd)

	walkCmd := &cobra.Command{
		Use:   "walk",
		Short: "List the initialized ticks a swap would cross",
		RunE:  runWalk,
	}
	addQueryFlags(walkCmd)
	walkCmd.Flags().Int("steps", 10, "maximum ticks to cross")
	root.AddCommand(walkCmd)

	return root
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Int32("tick", 0, "current tick")
	cmd.Flags().Bool("lte", false, "search at or below the current tick")
	cmd.Flags().String("snapshots", "./data/ticks.jsonl", "snapshot JSONL path (ignored with --pg-dsn)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN to read the snapshot from")
	cmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
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
