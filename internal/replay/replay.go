package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"tickScope/internal/dex"
	"tickScope/internal/liquidity"
	"tickScope/internal/model"
)

// Format selects the JSONL record type a replay reads.
type Format string

const (
	// FormatRaw reads model.LogRecord lines and ABI-decodes them.
	FormatRaw Format = "raw"
	// FormatTyped reads model.TypedEventRecord lines.
	FormatTyped Format = "typed"
)

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatRaw:
		return FormatRaw, nil
	case FormatTyped:
		return FormatTyped, nil
	default:
		return "", fmt.Errorf("unsupported replay format: %s", value)
	}
}

// SpacingResolver resolves the tick spacing of a pool.
type SpacingResolver interface {
	Resolve(ctx context.Context, pool string) (int32, error)
}

// Config holds replay settings.
type Config struct {
	Format Format
	// TickSpacing is used for a new pool when neither the record nor the
	// resolver provides one.
	TickSpacing int32
	Strict      bool
}

// Stats summarizes a replay.
type Stats struct {
	Total   int
	Applied int
	Skipped int
	Failed  int
}

// Replayer rebuilds tick books from a JSONL file of pool events.
type Replayer struct {
	cfg      Config
	decoder  *dex.LiquidityDecoder
	resolver SpacingResolver
	registry *liquidity.Registry
	logger   *zap.Logger
}

// New builds a Replayer. resolver may be nil.
func New(cfg Config, decoder *dex.LiquidityDecoder, resolver SpacingResolver, registry *liquidity.Registry, logger *zap.Logger) (*Replayer, error) {
	format, err := ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	cfg.Format = format
	if cfg.TickSpacing < 0 {
		return nil, fmt.Errorf("tick spacing must not be negative")
	}
	if format == FormatRaw && decoder == nil {
		return nil, fmt.Errorf("raw replay requires a decoder")
	}
	if registry == nil {
		registry = liquidity.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{
		cfg:      cfg,
		decoder:  decoder,
		resolver: resolver,
		registry: registry,
		logger:   logger,
	}, nil
}

// Registry returns the books the replayer writes into.
func (r *Replayer) Registry() *liquidity.Registry {
	return r.registry
}

// Run replays the file at path.
func (r *Replayer) Run(ctx context.Context, path string) (Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	r.logger.Info("replay start", zap.String("in", path), zap.String("format", string(r.cfg.Format)))
	stats, err := r.Replay(ctx, file)
	if err != nil {
		return stats, err
	}
	r.logger.Info("replay complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("pools", len(r.registry.Pools())),
	)
	return stats, nil
}

// Replay applies every line of in, in file order.
func (r *Replayer) Replay(ctx context.Context, in io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Total++

		ev, ok, err := r.event(line)
		if err != nil {
			stats.Failed++
			r.logger.Warn("skip malformed line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if !ok {
			stats.Skipped++
			continue
		}

		if err := r.apply(ctx, ev); err != nil {
			if r.cfg.Strict {
				return stats, fmt.Errorf("line %d: %w", lineNo, err)
			}
			stats.Failed++
			r.logger.Warn("apply liquidity event", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		stats.Applied++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}

// event turns one line into a liquidity event. ok is false for lines that
// are valid but carry no Mint or Burn.
func (r *Replayer) event(line []byte) (model.LiquidityEvent, bool, error) {
	if r.cfg.Format == FormatTyped {
		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return model.LiquidityEvent{}, false, err
		}
		return dex.FromTypedEvent(record)
	}

	var record model.LogRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return model.LiquidityEvent{}, false, err
	}
	if len(record.Topics) == 0 {
		return model.LiquidityEvent{}, false, fmt.Errorf("missing topic0")
	}
	if record.Removed || !r.decoder.CanDecode(record.Topics[0]) {
		return model.LiquidityEvent{}, false, nil
	}
	ev, err := r.decoder.Decode(record)
	if err != nil {
		return model.LiquidityEvent{}, false, err
	}
	return ev, true, nil
}

func (r *Replayer) apply(ctx context.Context, ev model.LiquidityEvent) error {
	if ev.TickSpacing == 0 {
		if _, ok := r.registry.Get(ev.Pool); !ok {
			spacing, err := r.spacing(ctx, ev.Pool)
			if err != nil {
				return err
			}
			ev.TickSpacing = spacing
		}
	}
	return r.registry.Apply(ev)
}

func (r *Replayer) spacing(ctx context.Context, pool string) (int32, error) {
	if r.resolver != nil {
		spacing, err := r.resolver.Resolve(ctx, pool)
		if err == nil {
			return spacing, nil
		}
		if r.cfg.TickSpacing == 0 {
			return 0, err
		}
		r.logger.Warn("resolve tick spacing, using fallback", zap.String("pool", pool), zap.Error(err))
	}
	if r.cfg.TickSpacing == 0 {
		return 0, fmt.Errorf("unknown tick spacing for pool %s", pool)
	}
	return r.cfg.TickSpacing, nil
}
