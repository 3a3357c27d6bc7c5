package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tickScope/internal/storage"
	"tickScope/internal/storage/postgres"
)

// openSnapshotStore returns the Postgres store when a DSN is set and the
// JSONL store otherwise. pg is nil for the JSONL case.
func openSnapshotStore(ctx context.Context, dsn, path string, migrate bool, logger *zap.Logger) (store storage.SnapshotStore, pg *postgres.Store, closeFn func(), err error) {
	if dsn == "" {
		if path == "" {
			return nil, nil, nil, fmt.Errorf("snapshot path is required")
		}
		return storage.NewJsonlStore(path), nil, func() {}, nil
	}

	pg, err = postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		logger.Info("schema applied")
	}
	return pg, pg, pg.Close, nil
}
