package liquidity

import (
	"math"
	"math/big"
)

// Crossing is one initialized tick met while moving the price.
type Crossing struct {
	Tick         int32  `json:"tick"`
	LiquidityNet string `json:"liquidity_net"`
	// ActiveAfter is the in-range liquidity once the tick has been crossed.
	ActiveAfter string `json:"active_after"`
}

// ActiveLiquidity returns the liquidity in range at tick: the sum of
// liquidityNet over every initialized tick <= tick.
func (b *Book) ActiveLiquidity(tick int32) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activeLiquidity(tick)
}

func (b *Book) activeLiquidity(tick int32) *big.Int {
	active := new(big.Int)
	for _, t := range b.index.Ticks() {
		if t > tick {
			break
		}
		active.Add(active, b.ticks[t].net)
	}
	return active
}

// Walk lists up to maxSteps initialized ticks a swap starting at from would
// cross, moving down when lte is set and up otherwise. It follows the V3 swap
// loop: after crossing t downwards the search resumes at t-1.
func (b *Book) Walk(from int32, lte bool, maxSteps int) []Crossing {
	b.mu.RLock()
	defer b.mu.RUnlock()

	active := b.activeLiquidity(from)
	crossings := make([]Crossing, 0)
	current := from
	for len(crossings) < maxSteps {
		next, initialized := b.index.NextTick(current, lte)
		if !initialized {
			break
		}

		net := b.ticks[next].net
		if lte {
			active.Sub(active, net)
		} else {
			active.Add(active, net)
		}
		crossings = append(crossings, Crossing{
			Tick:         next,
			LiquidityNet: net.String(),
			ActiveAfter:  active.String(),
		})

		if lte {
			if next == math.MinInt32 {
				break
			}
			current = next - 1
		} else {
			current = next
		}
	}
	return crossings
}
