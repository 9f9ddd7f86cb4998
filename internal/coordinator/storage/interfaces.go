package storage

import (
	"context"

	"ComputeMesh/internal/coordinator/models"
)

// EventStore persists the append-only worker lifecycle audit trail.
type EventStore interface {
	Record(ctx context.Context, event *models.WorkerEvent) error
	ListByWorker(ctx context.Context, workerID string, limit int) ([]*models.WorkerEvent, error)
	Close()
}

// SnapshotStore persists worker records across coordinator restarts and
// publishes lifecycle events for external dashboards. The in-memory registry
// stays authoritative; the snapshot is recovery state only.
type SnapshotStore interface {
	Save(ctx context.Context, worker *models.Worker) error
	Delete(ctx context.Context, workerID string) error
	LoadAll(ctx context.Context) ([]*models.Worker, error)
	PublishEvent(ctx context.Context, event *models.WorkerEvent) error
	Close() error
}
