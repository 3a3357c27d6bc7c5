package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickScope/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for tick snapshots and sync state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store uses if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveSnapshots replaces the stored ticks of each pool in a single transaction.
func (s *Store) SaveSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return s.saveSnapshots(ctx, snaps, "", 0)
}

// SaveSnapshotsAndState replaces the stored ticks of each pool and moves
// the named state to block in one transaction, so a restart never sees
// snapshots newer than the state that describes them.
func (s *Store) SaveSnapshotsAndState(ctx context.Context, snaps []model.PoolSnapshot, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	return s.saveSnapshots(ctx, snaps, name, block)
}

func (s *Store) saveSnapshots(ctx context.Context, snaps []model.PoolSnapshot, state string, block uint64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		pool := strings.ToLower(snap.Pool)
		batch.Queue(`
			INSERT INTO pools (chain_id, pool_address, tick_spacing, last_block, last_log_index, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				tick_spacing = EXCLUDED.tick_spacing,
				last_block = EXCLUDED.last_block,
				last_log_index = EXCLUDED.last_log_index,
				updated_at = now()
		`, int64(snap.ChainID), pool, snap.TickSpacing, int64(snap.BlockNumber), int64(snap.LogIndex))
		batch.Queue(`DELETE FROM pool_ticks WHERE chain_id = $1 AND pool_address = $2`, int64(snap.ChainID), pool)

		for _, tick := range snap.Ticks {
			batch.Queue(`
				INSERT INTO pool_ticks (chain_id, pool_address, tick, liquidity_gross, liquidity_net, updated_at)
				VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, now())
			`, int64(snap.ChainID), pool, tick.Tick, tick.LiquidityGross, tick.LiquidityNet)
		}
	}
	if state != "" {
		batch.Queue(saveStateSQL, state, int64(block))
	}

	queued := batch.Len()
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("save snapshots: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadSnapshots returns every stored pool with its ticks in ascending order.
func (s *Store) LoadSnapshots(ctx context.Context) ([]model.PoolSnapshot, error) {
	return s.loadSnapshots(ctx, "")
}

// LoadSnapshot returns the stored snapshot of a single pool.
func (s *Store) LoadSnapshot(ctx context.Context, pool string) (model.PoolSnapshot, bool, error) {
	snaps, err := s.loadSnapshots(ctx, strings.ToLower(pool))
	if err != nil {
		return model.PoolSnapshot{}, false, err
	}
	if len(snaps) == 0 {
		return model.PoolSnapshot{}, false, nil
	}
	return snaps[0], true, nil
}

func (s *Store) loadSnapshots(ctx context.Context, pool string) ([]model.PoolSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, pool_address, tick_spacing, last_block, last_log_index
		FROM pools
		WHERE $1 = '' OR pool_address = $1
		ORDER BY chain_id, pool_address
	`, pool)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}

	var snaps []model.PoolSnapshot
	index := make(map[string]int)
	for rows.Next() {
		var (
			chainID, block, logIndex int64
			snap                     model.PoolSnapshot
		)
		if err := rows.Scan(&chainID, &snap.Pool, &snap.TickSpacing, &block, &logIndex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		snap.ChainID = uint64(chainID)
		snap.BlockNumber = uint64(block)
		snap.LogIndex = uint64(logIndex)
		snap.Ticks = []model.TickState{}
		index[snapshotKey(snap.ChainID, snap.Pool)] = len(snaps)
		snaps = append(snaps, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pools: %w", err)
	}

	tickRows, err := s.pool.Query(ctx, `
		SELECT chain_id, pool_address, tick, liquidity_gross::text, liquidity_net::text
		FROM pool_ticks
		WHERE $1 = '' OR pool_address = $1
		ORDER BY chain_id, pool_address, tick
	`, pool)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer tickRows.Close()

	for tickRows.Next() {
		var (
			chainID int64
			address string
			tick    model.TickState
		)
		if err := tickRows.Scan(&chainID, &address, &tick.Tick, &tick.LiquidityGross, &tick.LiquidityNet); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		pos, ok := index[snapshotKey(uint64(chainID), address)]
		if !ok {
			continue
		}
		snaps[pos].Ticks = append(snaps[pos].Ticks, tick)
	}
	if err := tickRows.Err(); err != nil {
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	return snaps, nil
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, saveStateSQL, name, int64(block))
	return err
}

const saveStateSQL = `
	INSERT INTO indexer_state (name, last_processed, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (name) DO UPDATE
	SET last_processed = EXCLUDED.last_processed, updated_at = now()
`

func snapshotKey(chainID uint64, pool string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(pool))
}
