package liquidity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tickScope/internal/model"
)

var ErrSpacingMismatch = errors.New("tick spacing does not match existing book")

// Registry owns one Book per pool.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*Book
}

func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*Book)}
}

// Get returns the book for a pool, if one exists.
func (r *Registry) Get(pool string) (*Book, bool) {
	r.mu.RLock()
	book, ok := r.books[poolKey(pool)]
	r.mu.RUnlock()
	return book, ok
}

// Apply routes a liquidity event to its pool's book. A pool whose first
// event is rejected gets no book.
func (r *Registry) Apply(ev model.LiquidityEvent) error {
	if book, ok := r.Get(ev.Pool); ok {
		return applyTo(book, ev)
	}

	key := poolKey(ev.Pool)
	r.mu.Lock()
	defer r.mu.Unlock()

	if book, ok := r.books[key]; ok {
		return applyTo(book, ev)
	}

	book, err := NewBook(ev.ChainID, ev.Pool, ev.TickSpacing)
	if err != nil {
		return fmt.Errorf("pool %s: %w", ev.Pool, err)
	}
	if err := applyTo(book, ev); err != nil {
		return err
	}
	r.books[key] = book
	return nil
}

func applyTo(book *Book, ev model.LiquidityEvent) error {
	if ev.TickSpacing != 0 && book.Spacing() != ev.TickSpacing {
		return fmt.Errorf("%w: pool %s has %d, got %d", ErrSpacingMismatch, ev.Pool, book.Spacing(), ev.TickSpacing)
	}
	if err := book.Apply(ev); err != nil {
		return fmt.Errorf("pool %s block %d log %d: %w", ev.Pool, ev.BlockNumber, ev.LogIndex, err)
	}
	return nil
}

// Restore replaces the books of the snapshotted pools.
func (r *Registry) Restore(snaps []model.PoolSnapshot) error {
	books := make(map[string]*Book, len(snaps))
	for _, snap := range snaps {
		book, err := BookFromSnapshot(snap)
		if err != nil {
			return err
		}
		books[poolKey(snap.Pool)] = book
	}

	r.mu.Lock()
	for key, book := range books {
		r.books[key] = book
	}
	r.mu.Unlock()
	return nil
}

// Pools returns the tracked pool addresses in sorted order.
func (r *Registry) Pools() []string {
	r.mu.RLock()
	pools := make([]string, 0, len(r.books))
	for _, book := range r.books {
		pools = append(pools, book.Pool())
	}
	r.mu.RUnlock()
	sort.Slice(pools, func(i, j int) bool { return poolKey(pools[i]) < poolKey(pools[j]) })
	return pools
}

// Snapshots returns snapshots for the given pools, or for all pools if none are given.
func (r *Registry) Snapshots(pools ...string) []model.PoolSnapshot {
	if len(pools) == 0 {
		pools = r.Pools()
	}
	out := make([]model.PoolSnapshot, 0, len(pools))
	for _, pool := range pools {
		if book, ok := r.Get(pool); ok {
			out = append(out, book.Snapshot())
		}
	}
	return out
}

func poolKey(address string) string {
	return strings.ToLower(address)
}
