package storage

import (
	"context"

	"tickScope/internal/model"
)

// SnapshotStore persists pool tick snapshots. Saving a snapshot replaces
// whatever was stored for that pool.
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error
	LoadSnapshots(ctx context.Context) ([]model.PoolSnapshot, error)
}
