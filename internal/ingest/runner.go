package ingest

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"tickScope/internal/chain"
	"tickScope/internal/dex"
	"tickScope/internal/liquidity"
	"tickScope/internal/storage"
)

// LogSource is the chain access the runner needs.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// SpacingResolver resolves the tick spacing of a pool.
type SpacingResolver interface {
	Resolve(ctx context.Context, pool string) (int32, error)
}

// RunConfig holds runtime settings for a sync.
type RunConfig struct {
	FromBlock     uint64
	ToBlock       uint64
	Confirmations uint64
	Addresses     []common.Address
	BatchSize     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	// Strict stops the sync on an event the book rejects instead of skipping it.
	Strict bool
}

// Stats summarizes a sync.
type Stats struct {
	Logs    int
	Applied int
	Skipped int
	Failed  int
}

// Runner streams Mint/Burn logs from the chain into the tick books and
// persists a snapshot of every touched pool after each batch.
type Runner struct {
	cfg      RunConfig
	source   LogSource
	decoder  *dex.LiquidityDecoder
	resolver SpacingResolver
	registry *liquidity.Registry
	store    storage.SnapshotStore
	state    StateStore
	logger   *zap.Logger

	// cursor is the (block, index) of the last log taken off the stream.
	cursor    [2]uint64
	hasCursor bool
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(
	cfg RunConfig,
	source LogSource,
	decoder *dex.LiquidityDecoder,
	resolver SpacingResolver,
	registry *liquidity.Registry,
	store storage.SnapshotStore,
	state StateStore,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = liquidity.NewRegistry()
	}
	return &Runner{
		cfg:      cfg,
		source:   source,
		decoder:  decoder,
		resolver: resolver,
		registry: registry,
		store:    store,
		state:    state,
		logger:   logger,
	}
}

// Registry returns the books the runner writes into.
func (r *Runner) Registry() *liquidity.Registry {
	return r.registry
}

// Run executes the sync loop.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.source == nil {
		return stats, fmt.Errorf("log source is nil")
	}
	if r.decoder == nil {
		return stats, fmt.Errorf("decoder is nil")
	}
	if r.store == nil {
		return stats, fmt.Errorf("snapshot store is nil")
	}
	if r.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return stats, fmt.Errorf("at least one pool address is required")
	}

	var chainID *big.Int
	err := chain.Retry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		chainID, err = r.source.GetChainID(ctx)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return stats, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		var latest uint64
		err := chain.Retry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			latest, err = r.source.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
		to = SafeHead(latest, r.cfg.Confirmations)
	}

	if err := r.resume(ctx, &from); err != nil {
		return stats, err
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	topics := r.decoder.Topics()
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange, topics)
		if err != nil {
			return stats, fmt.Errorf("filter logs: %w", err)
		}
		sort.SliceStable(logs, func(i, j int) bool {
			if logs[i].BlockNumber != logs[j].BlockNumber {
				return logs[i].BlockNumber < logs[j].BlockNumber
			}
			return logs[i].Index < logs[j].Index
		})

		touched := make(map[string]struct{})
		var applied int
		for _, log := range logs {
			stats.Logs++
			if log.Removed || len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0].Hex()) || !r.advance(log) {
				stats.Skipped++
				continue
			}
			// already in the restored snapshot when the last run stopped
			// between saving snapshots and the checkpoint
			if book, ok := r.registry.Get(log.Address.Hex()); ok && book.Covers(log.BlockNumber, uint64(log.Index)) {
				stats.Skipped++
				continue
			}

			ok, err := r.apply(ctx, chainIDValue, log)
			if err != nil {
				return stats, err
			}
			if !ok {
				stats.Failed++
				continue
			}
			applied++
			touched[log.Address.Hex()] = struct{}{}
		}
		stats.Applied += applied

		if err := r.persist(ctx, touched, blockRange.To); err != nil {
			return stats, err
		}

		r.logger.Info("batch complete",
			zap.Int("logs", len(logs)),
			zap.Int("applied", applied),
			zap.Int("pools", len(touched)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return stats, nil
}

// resume advances from past the checkpoint and reloads the books the
// checkpoint refers to. Without a checkpoint the books start empty.
func (r *Runner) resume(ctx context.Context, from *uint64) error {
	if r.state == nil {
		return nil
	}
	last, ok, err := r.state.Load(ctx)
	if err != nil {
		return err
	}
	if !ok || last < *from {
		return nil
	}

	snaps, err := r.store.LoadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	if err := r.registry.Restore(snaps); err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}

	*from = last + 1
	r.logger.Info("resume from checkpoint",
		zap.Uint64("last_processed", last),
		zap.Uint64("from", *from),
		zap.Int("pools", len(snaps)),
	)
	return nil
}

// apply decodes and applies one log. It returns false for a log that was
// skipped, and an error only when the sync has to stop.
func (r *Runner) apply(ctx context.Context, chainID uint64, log types.Log) (bool, error) {
	ev, err := r.decoder.Decode(buildLogRecord(chainID, log))
	if err != nil {
		r.logger.Warn("decode log", zap.Error(err), zap.Uint64("block", log.BlockNumber), zap.Uint("log_index", log.Index))
		return false, nil
	}

	if _, ok := r.registry.Get(ev.Pool); !ok {
		if r.resolver == nil {
			return false, fmt.Errorf("no tick spacing resolver for new pool %s", ev.Pool)
		}
		spacing, err := r.resolver.Resolve(ctx, ev.Pool)
		if err != nil {
			return false, err
		}
		ev.TickSpacing = spacing
	}

	if err := r.registry.Apply(ev); err != nil {
		if r.cfg.Strict {
			return false, err
		}
		r.logger.Warn("apply liquidity event", zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := chain.Retry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, blockRange.From, blockRange.To, r.cfg.Addresses, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, err
}

// advance moves the cursor past log. It returns false for a log at or
// before the cursor, which is a duplicate in a (block, index) ordered stream.
func (r *Runner) advance(log types.Log) bool {
	pos := [2]uint64{log.BlockNumber, uint64(log.Index)}
	if r.hasCursor && (pos[0] < r.cursor[0] || (pos[0] == r.cursor[0] && pos[1] <= r.cursor[1])) {
		return false
	}
	r.cursor, r.hasCursor = pos, true
	return true
}

// persist stores the touched pools and the checkpoint, in one transaction
// when the state store supports it.
func (r *Runner) persist(ctx context.Context, touched map[string]struct{}, block uint64) error {
	pools := make([]string, 0, len(touched))
	for pool := range touched {
		pools = append(pools, pool)
	}
	sort.Strings(pools)
	snaps := r.registry.Snapshots(pools...)

	if atomic, ok := r.state.(SnapshotCheckpointer); ok {
		if err := atomic.SaveWithSnapshots(ctx, snaps, block); err != nil {
			return fmt.Errorf("store snapshots and checkpoint: %w", err)
		}
		return nil
	}

	if len(snaps) > 0 {
		if err := r.store.SaveSnapshots(ctx, snaps); err != nil {
			return fmt.Errorf("store snapshots: %w", err)
		}
	}
	if r.state != nil {
		if err := r.state.Save(ctx, block); err != nil {
			return err
		}
	}
	return nil
}
