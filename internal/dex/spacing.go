package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"tickScope/internal/chain"
)

const defaultSpacingCacheSize = 4096

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ResolverConfig configures how pool tick spacings are found.
type ResolverConfig struct {
	// Overrides pins the spacing of specific pools (address -> spacing).
	Overrides map[string]int32
	// Fallback is used when neither an override nor an RPC answer is available. Zero disables it.
	Fallback     int32
	CacheSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// SpacingResolver resolves a pool's tickSpacing, caching RPC answers.
type SpacingResolver struct {
	cfg       ResolverConfig
	caller    ContractCaller
	cache     *lru.Cache[common.Address, int32]
	overrides map[common.Address]int32
	logger    *zap.Logger
}

// NewSpacingResolver builds a resolver. caller may be nil when no RPC is configured.
func NewSpacingResolver(cfg ResolverConfig, caller ContractCaller, logger *zap.Logger) (*SpacingResolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultSpacingCacheSize
	}
	if cfg.Fallback < 0 {
		return nil, fmt.Errorf("fallback tick spacing must not be negative")
	}

	cache, err := lru.New[common.Address, int32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("spacing cache: %w", err)
	}

	overrides := make(map[common.Address]int32, len(cfg.Overrides))
	for addr, spacing := range cfg.Overrides {
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid pool address in spacing overrides: %s", addr)
		}
		if spacing <= 0 {
			return nil, fmt.Errorf("invalid tick spacing %d for pool %s", spacing, addr)
		}
		overrides[common.HexToAddress(addr)] = spacing
	}

	return &SpacingResolver{
		cfg:       cfg,
		caller:    caller,
		cache:     cache,
		overrides: overrides,
		logger:    logger,
	}, nil
}

// Resolve returns the tick spacing of pool.
func (r *SpacingResolver) Resolve(ctx context.Context, pool string) (int32, error) {
	if !common.IsHexAddress(pool) {
		return 0, fmt.Errorf("invalid pool address: %s", pool)
	}
	addr := common.HexToAddress(pool)

	if spacing, ok := r.overrides[addr]; ok {
		return spacing, nil
	}
	if spacing, ok := r.cache.Get(addr); ok {
		return spacing, nil
	}

	if r.caller != nil {
		var spacing int32
		err := chain.Retry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			spacing, err = FetchTickSpacing(ctx, r.caller, addr)
			if err != nil {
				r.logger.Warn("tick spacing fetch failed", zap.Error(err), zap.String("pool", addr.Hex()))
			}
			return err
		})
		if err == nil {
			r.cache.Add(addr, spacing)
			return spacing, nil
		}
		if r.cfg.Fallback == 0 {
			return 0, fmt.Errorf("tick spacing for %s: %w", addr.Hex(), err)
		}
	}

	if r.cfg.Fallback > 0 {
		return r.cfg.Fallback, nil
	}
	return 0, fmt.Errorf("tick spacing for %s unknown: no rpc, override or fallback", addr.Hex())
}

// FetchTickSpacing calls tickSpacing() on a V3 pool.
func FetchTickSpacing(ctx context.Context, caller ContractCaller, pool common.Address) (int32, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return 0, fmt.Errorf("parse pool abi: %w", err)
	}
	data, err := poolABI.Pack("tickSpacing")
	if err != nil {
		return 0, fmt.Errorf("pack tickSpacing: %w", err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call tickSpacing: %w", err)
	}
	values, err := poolABI.Unpack("tickSpacing", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack tickSpacing: %w", err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("tickSpacing return size %d", len(values))
	}
	raw, err := asBigInt(values[0])
	if err != nil {
		return 0, err
	}
	spacing, err := int24FromBig(raw)
	if err != nil {
		return 0, err
	}
	if spacing <= 0 {
		return 0, fmt.Errorf("pool %s reports tick spacing %d", pool.Hex(), spacing)
	}
	return spacing, nil
}
