package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"
)

type fakeCaller struct {
	spacing int64
	fails   int
	calls   int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errors.New("rpc unavailable")
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	return poolABI.Methods["tickSpacing"].Outputs.Pack(big.NewInt(f.spacing))
}

const spacingPool = "0x1111111111111111111111111111111111111111"

func TestSpacingResolverCachesRPC(t *testing.T) {
	caller := &fakeCaller{spacing: 60, fails: 1}
	resolver, err := NewSpacingResolver(ResolverConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, caller, zap.NewNop())
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	for i := 0; i < 3; i++ {
		spacing, err := resolver.Resolve(context.Background(), spacingPool)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if spacing != 60 {
			t.Fatalf("spacing mismatch: %d", spacing)
		}
	}
	if caller.calls != 2 {
		t.Fatalf("expected one failed and one cached call, got %d", caller.calls)
	}
}

func TestSpacingResolverOverridesAndFallback(t *testing.T) {
	resolver, err := NewSpacingResolver(ResolverConfig{
		Overrides: map[string]int32{spacingPool: 200},
		Fallback:  10,
	}, nil, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	spacing, err := resolver.Resolve(context.Background(), "0x1111111111111111111111111111111111111111")
	if err != nil || spacing != 200 {
		t.Fatalf("override: spacing=%d err=%v", spacing, err)
	}

	spacing, err = resolver.Resolve(context.Background(), "0x2222222222222222222222222222222222222222")
	if err != nil || spacing != 10 {
		t.Fatalf("fallback: spacing=%d err=%v", spacing, err)
	}

	if _, err := resolver.Resolve(context.Background(), "not-an-address"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestSpacingResolverUnknown(t *testing.T) {
	resolver, err := NewSpacingResolver(ResolverConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), spacingPool); err == nil {
		t.Fatalf("expected error without rpc or fallback")
	}

	failing := &fakeCaller{spacing: 60, fails: 10}
	resolver, err = NewSpacingResolver(ResolverConfig{RetryBackoff: time.Millisecond, Fallback: 1}, failing, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	spacing, err := resolver.Resolve(context.Background(), spacingPool)
	if err != nil || spacing != 1 {
		t.Fatalf("fallback after rpc failure: spacing=%d err=%v", spacing, err)
	}

	if _, err := NewSpacingResolver(ResolverConfig{Overrides: map[string]int32{spacingPool: 0}}, nil, nil); err == nil {
		t.Fatalf("expected error for zero override")
	}
}

func TestFetchTickSpacingRejectsNonPositive(t *testing.T) {
	resolver, err := NewSpacingResolver(ResolverConfig{RetryBackoff: time.Millisecond}, &fakeCaller{spacing: -5}, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), spacingPool); err == nil {
		t.Fatalf("expected error for negative spacing")
	}
}
