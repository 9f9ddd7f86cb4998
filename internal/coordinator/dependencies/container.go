package dependencies

import (
	"context"
	"fmt"
	"log/slog"

	"ComputeMesh/internal/config"
	"ComputeMesh/internal/coordinator/health"
	"ComputeMesh/internal/coordinator/metrics"
	"ComputeMesh/internal/coordinator/registry"
	"ComputeMesh/internal/coordinator/router"
	"ComputeMesh/internal/coordinator/services"
	"ComputeMesh/internal/coordinator/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Container wires the coordinator's dependency graph.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	DB *pgxpool.Pool

	EventStore    storage.EventStore
	SnapshotStore storage.SnapshotStore

	Registry *registry.Registry
	Metrics  *metrics.Metrics

	WorkerService *services.WorkerService
	Router        *router.Router
	Monitor       *health.Monitor
}

func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	container := &Container{
		Config: cfg,
		Logger: log,
	}

	if err := container.initStores(ctx); err != nil {
		return nil, err
	}

	container.initCore()

	log.Info("dependency container initialized",
		"database_enabled", cfg.Database.Enabled,
		"redis_enabled", cfg.Redis.Enabled,
	)
	return container, nil
}

func (c *Container) initStores(ctx context.Context) error {
	if c.Config.Database.Enabled {
		pool, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = pool

		store, err := storage.NewEventStore(ctx, pool)
		if err != nil {
			return fmt.Errorf("failed to initialize event store: %w", err)
		}
		c.EventStore = store
	} else {
		c.EventStore = storage.NewNoopEventStore()
	}

	if c.Config.Redis.Enabled {
		store, err := storage.NewRedisSnapshotStore(&c.Config.Redis, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.SnapshotStore = store
	} else {
		c.SnapshotStore = storage.NewNoopSnapshotStore()
	}

	return nil
}

func (c *Container) initCore() {
	c.Registry = registry.New(c.Logger.With("component", "registry"))
	c.Metrics = metrics.New()

	c.WorkerService = services.NewWorkerService(
		c.Registry,
		c.EventStore,
		c.SnapshotStore,
		c.Metrics,
		services.WorkerServiceConfig{
			HeartbeatTimeout:  c.Config.Cluster.HeartbeatTimeout(),
			HeartbeatInterval: c.Config.Cluster.HeartbeatInterval(),
		},
		c.Logger.With("service", "worker"),
	)

	c.Router = router.New(
		c.Registry,
		c.Config.Cluster.HeartbeatTimeout(),
		c.Logger.With("component", "router"),
	)

	c.Monitor = health.NewMonitor(
		c.WorkerService,
		health.MonitorConfig{
			Tick:      c.Config.Cluster.MonitorTick(),
			Retention: c.Config.Cluster.GCRetention(),
		},
		c.Logger.With("component", "health_monitor"),
	)
}

// Restore reloads persisted worker records into the registry at startup.
func (c *Container) Restore(ctx context.Context) error {
	return c.WorkerService.Restore(ctx)
}

// Close closes all external connections.
func (c *Container) Close() error {
	var errs []error

	if c.EventStore != nil {
		c.EventStore.Close()
	}

	if c.SnapshotStore != nil {
		if err := c.SnapshotStore.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
