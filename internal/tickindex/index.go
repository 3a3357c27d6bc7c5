package tickindex

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/btree"
)

var (
	// ErrInvalidTickAlignment is returned when a tick is not a multiple of the spacing.
	ErrInvalidTickAlignment = errors.New("tick not aligned to tick spacing")
	// ErrInvalidTickSpacing is returned for a non-positive tick spacing.
	ErrInvalidTickSpacing = errors.New("tick spacing must be positive")
)

// Index is a sparse ordered set of initialized ticks for a single pool.
//
// It answers the same questions as the V3 per-word tick bitmap, but without
// the 256-tick visibility window: NextTick always finds the nearest
// initialized tick, however far away.
//
// Index is not safe for concurrent use.
type Index struct {
	spacing int32
	ticks   *btree.Set[int32]
}

// New returns an empty index for the given tick spacing.
func New(tickSpacing int32) (*Index, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTickSpacing, tickSpacing)
	}
	return &Index{spacing: tickSpacing, ticks: new(btree.Set[int32])}, nil
}

// Spacing returns the tick spacing fixed at construction.
func (x *Index) Spacing() int32 {
	return x.spacing
}

// MinSentinel is the tick NextTick reports, with initialized=false, when
// nothing is initialized at or below the queried tick.
func MinSentinel(tickSpacing int32) int32 {
	return math.MinInt32 - math.MinInt32%tickSpacing
}

// MaxSentinel is the tick NextTick reports, with initialized=false, when
// nothing is initialized above the queried tick.
func MaxSentinel(tickSpacing int32) int32 {
	return math.MaxInt32 - math.MaxInt32%tickSpacing
}

// Initialize marks tick as initialized. It is a no-op if already set.
func (x *Index) Initialize(tick int32) error {
	if tick%x.spacing != 0 {
		return fmt.Errorf("%w: tick %d, spacing %d", ErrInvalidTickAlignment, tick, x.spacing)
	}
	x.ticks.Insert(tick)
	return nil
}

// Uninitialize clears tick. It is a no-op if the tick is not set.
func (x *Index) Uninitialize(tick int32) {
	x.ticks.Delete(tick)
}

// IsInitialized reports whether tick is set.
func (x *Index) IsInitialized(tick int32) bool {
	return x.ticks.Contains(tick)
}

// Len returns the number of initialized ticks.
func (x *Index) Len() int {
	return x.ticks.Len()
}

// NextTick finds the nearest initialized tick from current.
//
// With lte set it returns the largest initialized tick <= current, so an
// initialized current is returned as is. Otherwise it returns the smallest
// initialized tick strictly greater than current. When no tick qualifies the
// result is MinSentinel (lte) or MaxSentinel (!lte) with initialized=false.
func (x *Index) NextTick(current int32, lte bool) (int32, bool) {
	var (
		next  int32
		found bool
	)

	if lte {
		x.ticks.Descend(current, func(tick int32) bool {
			next, found = tick, true
			return false
		})
		if !found {
			return MinSentinel(x.spacing), false
		}
		return next, true
	}

	x.ticks.Ascend(current, func(tick int32) bool {
		if tick == current {
			return true
		}
		next, found = tick, true
		return false
	})
	if !found {
		return MaxSentinel(x.spacing), false
	}
	return next, true
}

// Ticks returns the initialized ticks in ascending order.
func (x *Index) Ticks() []int32 {
	out := make([]int32, 0, x.ticks.Len())
	x.ticks.Scan(func(tick int32) bool {
		out = append(out, tick)
		return true
	})
	return out
}

// Clone returns an independent copy of the index.
func (x *Index) Clone() *Index {
	return &Index{spacing: x.spacing, ticks: x.ticks.Copy()}
}
