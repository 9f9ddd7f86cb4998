package health

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"ComputeMesh/internal/coordinator/services"
)

// Monitor is the background loop that keeps registry status honest: expire
// stale workers on every tick and garbage-collect records offline past the
// retention window.
type Monitor struct {
	service   *services.WorkerService
	tick      time.Duration
	retention time.Duration
	logger    *slog.Logger

	// guards against overlapping scans when a tick overruns
	inFlight atomic.Bool
}

type MonitorConfig struct {
	Tick      time.Duration
	Retention time.Duration
}

func NewMonitor(service *services.WorkerService, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	tick := cfg.Tick
	if tick == 0 {
		tick = 15 * time.Second
	}

	retention := cfg.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		service:   service,
		tick:      tick,
		retention: retention,
		logger:    logger,
	}
}

// Run blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("health monitor started",
		"tick", m.tick,
		"retention", m.retention,
	)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan runs one expiry-and-sweep pass. Idempotent; concurrent invocations
// beyond the first are dropped.
func (m *Monitor) Scan(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.Debug("skipping overlapping health scan")
		return
	}
	defer m.inFlight.Store(false)

	expired := m.service.ExpireStale(ctx)
	removed := m.service.SweepOffline(ctx, m.retention)

	if len(expired) > 0 || len(removed) > 0 {
		m.logger.Info("health scan completed",
			"expired", expired,
			"garbage_collected", removed,
		)
	}
}
