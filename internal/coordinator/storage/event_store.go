package storage

import (
	"context"
	"fmt"
	"time"

	"ComputeMesh/internal/coordinator/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type eventStore struct {
	pool *pgxpool.Pool
}

const eventSchema = `
	CREATE TABLE IF NOT EXISTS worker_events (
		id         BIGSERIAL PRIMARY KEY,
		worker_id  TEXT        NOT NULL,
		kind       TEXT        NOT NULL,
		detail     TEXT        NOT NULL DEFAULT '',
		tier       INT         NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS worker_events_worker_id_idx
		ON worker_events (worker_id, created_at DESC);
`

func NewEventStore(ctx context.Context, pool *pgxpool.Pool) (EventStore, error) {
	if _, err := pool.Exec(ctx, eventSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure worker_events schema: %w", err)
	}
	return &eventStore{pool: pool}, nil
}

func (s *eventStore) Record(ctx context.Context, event *models.WorkerEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO worker_events (worker_id, kind, detail, tier, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		event.WorkerID,
		event.Kind,
		event.Detail,
		event.Tier,
		event.CreatedAt,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to record worker event: %w", err)
	}

	return nil
}

func (s *eventStore) ListByWorker(ctx context.Context, workerID string, limit int) ([]*models.WorkerEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, worker_id, kind, detail, tier, created_at
		FROM worker_events
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query worker events: %w", err)
	}
	defer rows.Close()

	var events []*models.WorkerEvent
	for rows.Next() {
		var event models.WorkerEvent
		if err := rows.Scan(
			&event.ID,
			&event.WorkerID,
			&event.Kind,
			&event.Detail,
			&event.Tier,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan worker event row: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worker event rows: %w", err)
	}

	return events, nil
}

func (s *eventStore) Close() {
	s.pool.Close()
}
