package liquidity

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"tickScope/internal/model"
	"tickScope/internal/tickindex"
)

var (
	ErrInvalidTickRange   = errors.New("tick lower must be below tick upper")
	ErrLiquidityUnderflow = errors.New("liquidity gross underflow")
	ErrLiquidityOverflow  = errors.New("liquidity gross overflow")
	ErrInvalidAmount      = errors.New("invalid liquidity amount")
)

// maxLiquidity is the uint128 ceiling V3 pools store liquidity in.
var maxLiquidity = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

type tickInfo struct {
	gross *uint256.Int
	net   *big.Int
}

// Book tracks the liquidity referencing each initialized tick of one pool and
// keeps its tick index in step: a tick is initialized exactly while some
// position uses it as a bound.
type Book struct {
	mu      sync.RWMutex
	chainID uint64
	pool    string
	index   *tickindex.Index
	ticks   map[int32]*tickInfo

	// block and logIndex locate the newest event applied to the book.
	block    uint64
	logIndex uint64
}

// NewBook returns an empty book for a pool.
func NewBook(chainID uint64, pool string, tickSpacing int32) (*Book, error) {
	index, err := tickindex.New(tickSpacing)
	if err != nil {
		return nil, err
	}
	return &Book{
		chainID: chainID,
		pool:    pool,
		index:   index,
		ticks:   make(map[int32]*tickInfo),
	}, nil
}

// Pool returns the pool address the book was created for.
func (b *Book) Pool() string {
	return b.pool
}

// Spacing returns the pool tick spacing.
func (b *Book) Spacing() int32 {
	return b.index.Spacing()
}

// Block returns the highest block applied to the book.
func (b *Book) Block() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.block
}

// Covers reports whether the event at (block, logIndex) is already reflected
// in the book. A book that never saw a positioned event covers nothing.
func (b *Book) Covers(block, logIndex uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.block == 0 {
		return false
	}
	return block < b.block || (block == b.block && logIndex <= b.logIndex)
}

// Apply adds (mint) or removes (burn) liquidity on [TickLower, TickUpper).
func (b *Book) Apply(ev model.LiquidityEvent) error {
	amount, ok := new(big.Int).SetString(ev.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, ev.Amount)
	}

	switch ev.Kind {
	case model.LiquidityMint:
	case model.LiquidityBurn:
		amount.Neg(amount)
	default:
		return fmt.Errorf("unsupported liquidity kind: %s", ev.Kind)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.update(ev.TickLower, ev.TickUpper, amount); err != nil {
		return err
	}
	if ev.BlockNumber > b.block || (ev.BlockNumber == b.block && ev.LogIndex > b.logIndex) {
		b.block, b.logIndex = ev.BlockNumber, ev.LogIndex
	}
	return nil
}

// ApplyMint adds amount of liquidity between lower and upper.
func (b *Book) ApplyMint(lower, upper int32, amount *big.Int) error {
	return b.Apply(model.LiquidityEvent{Kind: model.LiquidityMint, TickLower: lower, TickUpper: upper, Amount: amount.String()})
}

// ApplyBurn removes amount of liquidity between lower and upper.
func (b *Book) ApplyBurn(lower, upper int32, amount *big.Int) error {
	return b.Apply(model.LiquidityEvent{Kind: model.LiquidityBurn, TickLower: lower, TickUpper: upper, Amount: amount.String()})
}

// update validates the whole change before touching any state.
func (b *Book) update(lower, upper int32, delta *big.Int) error {
	if lower >= upper {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, lower, upper)
	}
	spacing := b.index.Spacing()
	for _, tick := range []int32{lower, upper} {
		if tick%spacing != 0 {
			return fmt.Errorf("%w: tick %d, spacing %d", tickindex.ErrInvalidTickAlignment, tick, spacing)
		}
	}
	if delta.Sign() == 0 {
		return nil
	}

	grossLower, err := b.grossAfter(lower, delta)
	if err != nil {
		return err
	}
	grossUpper, err := b.grossAfter(upper, delta)
	if err != nil {
		return err
	}

	if err := b.commit(lower, grossLower, delta); err != nil {
		return err
	}
	return b.commit(upper, grossUpper, new(big.Int).Neg(delta))
}

func (b *Book) grossAfter(tick int32, delta *big.Int) (*uint256.Int, error) {
	before := new(uint256.Int)
	if info, ok := b.ticks[tick]; ok {
		before.Set(info.gross)
	}

	abs, overflow := uint256.FromBig(new(big.Int).Abs(delta))
	if overflow || abs.Gt(maxLiquidity) {
		return nil, fmt.Errorf("%w: tick %d", ErrLiquidityOverflow, tick)
	}

	if delta.Sign() < 0 {
		if before.Lt(abs) {
			return nil, fmt.Errorf("%w: tick %d has %s, removing %s", ErrLiquidityUnderflow, tick, before.ToBig(), abs.ToBig())
		}
		return new(uint256.Int).Sub(before, abs), nil
	}

	after := new(uint256.Int).Add(before, abs)
	if after.Gt(maxLiquidity) {
		return nil, fmt.Errorf("%w: tick %d", ErrLiquidityOverflow, tick)
	}
	return after, nil
}

func (b *Book) commit(tick int32, gross *uint256.Int, netDelta *big.Int) error {
	if gross.IsZero() {
		delete(b.ticks, tick)
		b.index.Uninitialize(tick)
		return nil
	}

	info, ok := b.ticks[tick]
	if !ok {
		if err := b.index.Initialize(tick); err != nil {
			return err
		}
		info = &tickInfo{net: new(big.Int)}
		b.ticks[tick] = info
	}
	info.gross = gross
	info.net.Add(info.net, netDelta)
	return nil
}

// NextTick returns the nearest initialized tick from current; see tickindex.Index.NextTick.
func (b *Book) NextTick(current int32, lte bool) (int32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.NextTick(current, lte)
}

// Tick returns the state of an initialized tick.
func (b *Book) Tick(tick int32) (model.TickState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, ok := b.ticks[tick]
	if !ok {
		return model.TickState{}, false
	}
	return tickState(tick, info), true
}

// Len returns the number of initialized ticks.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.Len()
}

// Snapshot returns every initialized tick in ascending order.
func (b *Book) Snapshot() model.PoolSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ticks := b.index.Ticks()
	states := make([]model.TickState, 0, len(ticks))
	for _, tick := range ticks {
		states = append(states, tickState(tick, b.ticks[tick]))
	}
	return model.PoolSnapshot{
		ChainID:     b.chainID,
		Pool:        b.pool,
		TickSpacing: b.index.Spacing(),
		BlockNumber: b.block,
		LogIndex:    b.logIndex,
		Ticks:       states,
	}
}

// BookFromSnapshot rebuilds a book from a stored snapshot.
func BookFromSnapshot(snap model.PoolSnapshot) (*Book, error) {
	book, err := NewBook(snap.ChainID, snap.Pool, snap.TickSpacing)
	if err != nil {
		return nil, err
	}
	book.block, book.logIndex = snap.BlockNumber, snap.LogIndex

	for _, state := range snap.Ticks {
		grossBig, ok := new(big.Int).SetString(state.LiquidityGross, 10)
		if !ok || grossBig.Sign() < 0 {
			return nil, fmt.Errorf("%w: tick %d gross %q", ErrInvalidAmount, state.Tick, state.LiquidityGross)
		}
		gross, overflow := uint256.FromBig(grossBig)
		if overflow || gross.Gt(maxLiquidity) {
			return nil, fmt.Errorf("%w: tick %d", ErrLiquidityOverflow, state.Tick)
		}
		net, ok := new(big.Int).SetString(state.LiquidityNet, 10)
		if !ok {
			return nil, fmt.Errorf("%w: tick %d net %q", ErrInvalidAmount, state.Tick, state.LiquidityNet)
		}
		if gross.IsZero() {
			continue
		}
		if err := book.index.Initialize(state.Tick); err != nil {
			return nil, fmt.Errorf("pool %s: %w", snap.Pool, err)
		}
		book.ticks[state.Tick] = &tickInfo{gross: gross, net: net}
	}
	return book, nil
}

func tickState(tick int32, info *tickInfo) model.TickState {
	return model.TickState{
		Tick:           tick,
		LiquidityGross: info.gross.ToBig().String(),
		LiquidityNet:   info.net.String(),
	}
}
