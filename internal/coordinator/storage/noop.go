package storage

import (
	"context"

	"ComputeMesh/internal/coordinator/models"
)

// No-op implementations used when postgres/redis are disabled. The
// coordinator runs fully in-memory in that mode.

type noopEventStore struct{}

func NewNoopEventStore() EventStore { return noopEventStore{} }

func (noopEventStore) Record(context.Context, *models.WorkerEvent) error { return nil }

func (noopEventStore) ListByWorker(context.Context, string, int) ([]*models.WorkerEvent, error) {
	return nil, nil
}

func (noopEventStore) Close() {}

type noopSnapshotStore struct{}

func NewNoopSnapshotStore() SnapshotStore { return noopSnapshotStore{} }

func (noopSnapshotStore) Save(context.Context, *models.Worker) error { return nil }

func (noopSnapshotStore) Delete(context.Context, string) error { return nil }

func (noopSnapshotStore) LoadAll(context.Context) ([]*models.Worker, error) { return nil, nil }

func (noopSnapshotStore) PublishEvent(context.Context, *models.WorkerEvent) error { return nil }

func (noopSnapshotStore) Close() error { return nil }
