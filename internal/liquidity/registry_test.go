package liquidity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tickScope/internal/model"
	"tickScope/internal/tickindex"
)

func mintEvent(pool string, spacing, lower, upper int32, amount string) model.LiquidityEvent {
	return model.LiquidityEvent{
		Kind:        model.LiquidityMint,
		ChainID:     56,
		Pool:        pool,
		TickLower:   lower,
		TickUpper:   upper,
		Amount:      amount,
		TickSpacing: spacing,
	}
}

func TestRegistryKeepsOneBookPerPool(t *testing.T) {
	r := NewRegistry()
	poolA := "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	poolB := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	require.NoError(t, r.Apply(mintEvent(poolA, 60, -120, 120, "10")))
	require.NoError(t, r.Apply(mintEvent(poolB, 10, -10, 10, "1")))
	// addresses are matched case-insensitively
	require.NoError(t, r.Apply(mintEvent("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 60, 0, 60, "5")))

	require.Len(t, r.Pools(), 2)

	bookA, ok := r.Get(poolA)
	require.True(t, ok)
	require.Equal(t, 4, bookA.Len())

	var ticks []int32
	for _, state := range bookA.Snapshot().Ticks {
		ticks = append(ticks, state.Tick)
	}
	require.Equal(t, []int32{-120, 0, 60, 120}, ticks)

	bookB, ok := r.Get(poolB)
	require.True(t, ok)
	next, initialized := bookB.NextTick(10, false)
	require.False(t, initialized)
	require.Equal(t, tickindex.MaxSentinel(10), next)
}

func TestRegistrySpacingRules(t *testing.T) {
	r := NewRegistry()

	err := r.Apply(mintEvent(testPool, 0, -10, 10, "1"))
	require.ErrorIs(t, err, tickindex.ErrInvalidTickSpacing)

	require.NoError(t, r.Apply(mintEvent(testPool, 10, -10, 10, "1")))

	err = r.Apply(mintEvent(testPool, 60, -60, 60, "1"))
	require.ErrorIs(t, err, ErrSpacingMismatch)

	// zero spacing falls back to the existing book
	require.NoError(t, r.Apply(mintEvent(testPool, 0, -20, 20, "1")))
}

func TestRegistrySnapshotsRestore(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Apply(mintEvent(testPool, 1, -55, 78, "5")))
	require.NoError(t, r.Apply(mintEvent("0x2222222222222222222222222222222222222222", 1, -4, 84, "7")))

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)

	restored := NewRegistry()
	require.NoError(t, restored.Restore(snaps))
	require.Equal(t, snaps, restored.Snapshots())

	only := r.Snapshots(testPool, "0x9999999999999999999999999999999999999999")
	require.Len(t, only, 1)
	require.Equal(t, testPool, only[0].Pool)
}

func TestRegistryRejectedFirstEventLeavesNoBook(t *testing.T) {
	r := NewRegistry()

	burn := mintEvent(testPool, 60, -60, 60, "1")
	burn.Kind = model.LiquidityBurn
	require.ErrorIs(t, r.Apply(burn), ErrLiquidityUnderflow)

	require.ErrorIs(t, r.Apply(mintEvent(testPool, 60, -50, 60, "1")), tickindex.ErrInvalidTickAlignment)

	_, ok := r.Get(testPool)
	require.False(t, ok)
	require.Empty(t, r.Pools())
	require.Empty(t, r.Snapshots())

	// the spacing was never locked in by the rejected events
	require.NoError(t, r.Apply(mintEvent(testPool, 10, -50, 60, "1")))
	book, ok := r.Get(testPool)
	require.True(t, ok)
	require.Equal(t, int32(10), book.Spacing())
}
