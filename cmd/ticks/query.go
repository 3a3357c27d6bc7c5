package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickScope/internal/config"
	"tickScope/internal/liquidity"
	"tickScope/internal/model"
	"tickScope/internal/storage"
	"tickScope/internal/storage/postgres"
)

type nextResult struct {
	Pool            string `json:"pool"`
	TickSpacing     int32  `json:"tick_spacing"`
	BlockNumber     uint64 `json:"block_number"`
	Current         int32  `json:"current"`
	Lte             bool   `json:"lte"`
	Next            int32  `json:"next"`
	Initialized     bool   `json:"initialized"`
	LiquidityNet    string `json:"liquidity_net,omitempty"`
	ActiveLiquidity string `json:"active_liquidity"`
}

type walkResult struct {
	Pool            string               `json:"pool"`
	TickSpacing     int32                `json:"tick_spacing"`
	BlockNumber     uint64               `json:"block_number"`
	From            int32                `json:"from"`
	Lte             bool                 `json:"lte"`
	ActiveLiquidity string               `json:"active_liquidity"`
	Crossings       []liquidity.Crossing `json:"crossings"`
}

func runNext(cmd *cobra.Command, _ []string) error {
	cfg, book, err := loadQueryBook(cmd)
	if err != nil {
		return err
	}

	next, initialized := book.NextTick(cfg.Tick, cfg.Lte)
	result := nextResult{
		Pool:            book.Pool(),
		TickSpacing:     book.Spacing(),
		BlockNumber:     book.Block(),
		Current:         cfg.Tick,
		Lte:             cfg.Lte,
		Next:            next,
		Initialized:     initialized,
		ActiveLiquidity: book.ActiveLiquidity(cfg.Tick).String(),
	}
	if state, ok := book.Tick(next); ok {
		result.LiquidityNet = state.LiquidityNet
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runWalk(cmd *cobra.Command, _ []string) error {
	cfg, book, err := loadQueryBook(cmd)
	if err != nil {
		return err
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be greater than zero")
	}

	crossings := book.Walk(cfg.Tick, cfg.Lte, cfg.Steps)
	if crossings == nil {
		crossings = []liquidity.Crossing{}
	}
	return writeJSON(cmd.OutOrStdout(), walkResult{
		Pool:            book.Pool(),
		TickSpacing:     book.Spacing(),
		BlockNumber:     book.Block(),
		From:            cfg.Tick,
		Lte:             cfg.Lte,
		ActiveLiquidity: book.ActiveLiquidity(cfg.Tick).String(),
		Crossings:       crossings,
	})
}

func loadQueryBook(cmd *cobra.Command) (config.QueryConfig, *liquidity.Book, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return cfg, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	defer logger.Sync()

	if !common.IsHexAddress(cfg.Pool) {
		return cfg, nil, fmt.Errorf("valid pool address is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	snap, ok, err := findSnapshot(ctx, cfg)
	if err != nil {
		return cfg, nil, err
	}
	if !ok {
		return cfg, nil, fmt.Errorf("no snapshot for pool %s", cfg.Pool)
	}

	book, err := liquidity.BookFromSnapshot(snap)
	if err != nil {
		return cfg, nil, err
	}
	logger.Debug("snapshot loaded",
		zap.String("pool", snap.Pool),
		zap.Uint64("block", snap.BlockNumber),
		zap.Int("ticks", len(snap.Ticks)),
	)
	return cfg, book, nil
}

func findSnapshot(ctx context.Context, cfg config.QueryConfig) (model.PoolSnapshot, bool, error) {
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return model.PoolSnapshot{}, false, fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		return store.LoadSnapshot(ctx, cfg.Pool)
	}

	snaps, err := storage.NewJsonlStore(cfg.Snapshots).LoadSnapshots(ctx)
	if err != nil {
		return model.PoolSnapshot{}, false, err
	}
	for _, snap := range snaps {
		if strings.EqualFold(snap.Pool, cfg.Pool) {
			return snap, true, nil
		}
	}
	return model.PoolSnapshot{}, false, nil
}

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
