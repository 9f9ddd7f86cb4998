package storage

import (
	"context"
	"fmt"
	"log/slog"

	"ComputeMesh/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDSN())
	if err != nil {
		log.Error("failed to open connection to postgres", "error", err)
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	log.Info("successfully connected to postgres database")
	return pool, nil
}
