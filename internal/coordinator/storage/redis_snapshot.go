package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ComputeMesh/internal/config"
	"ComputeMesh/internal/coordinator/models"

	"github.com/redis/go-redis/v9"
)

const (
	workersHashKey = "computemesh:workers"
	eventsChannel  = "computemesh:events"
)

type redisSnapshotStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisSnapshotStore(cfg *config.RedisConfig, log *slog.Logger) (SnapshotStore, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis")
	return &redisSnapshotStore{client: client, logger: log}, nil
}

func (s *redisSnapshotStore) Save(ctx context.Context, worker *models.Worker) error {
	data, err := json.Marshal(worker)
	if err != nil {
		return fmt.Errorf("failed to marshal worker snapshot: %w", err)
	}

	if err := s.client.HSet(ctx, workersHashKey, worker.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save worker snapshot: %w", err)
	}

	return nil
}

func (s *redisSnapshotStore) Delete(ctx context.Context, workerID string) error {
	if err := s.client.HDel(ctx, workersHashKey, workerID).Err(); err != nil {
		return fmt.Errorf("failed to delete worker snapshot: %w", err)
	}
	return nil
}

func (s *redisSnapshotStore) LoadAll(ctx context.Context) ([]*models.Worker, error) {
	entries, err := s.client.HGetAll(ctx, workersHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load worker snapshots: %w", err)
	}

	workers := make([]*models.Worker, 0, len(entries))
	for id, raw := range entries {
		var worker models.Worker
		if err := json.Unmarshal([]byte(raw), &worker); err != nil {
			// one corrupt entry must not block recovery of the rest
			s.logger.Warn("skipping corrupt worker snapshot",
				"worker_id", id,
				"error", err,
			)
			continue
		}
		workers = append(workers, &worker)
	}

	return workers, nil
}

func (s *redisSnapshotStore) PublishEvent(ctx context.Context, event *models.WorkerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal worker event: %w", err)
	}
	return s.client.Publish(ctx, eventsChannel, data).Err()
}

func (s *redisSnapshotStore) Close() error {
	return s.client.Close()
}
