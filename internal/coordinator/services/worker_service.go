package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ComputeMesh/internal/coordinator/metrics"
	"ComputeMesh/internal/coordinator/models"
	"ComputeMesh/internal/coordinator/registry"
	"ComputeMesh/internal/coordinator/storage"
	"ComputeMesh/internal/coordinator/tier"
	"ComputeMesh/pkg/uuidutil"
)

// WorkerService orchestrates the classifier, the registry and the optional
// persistence stores. Handlers never touch the registry directly.
type WorkerService struct {
	registry  *registry.Registry
	events    storage.EventStore
	snapshots storage.SnapshotStore
	metrics   *metrics.Metrics
	logger    *slog.Logger

	heartbeatTimeout  time.Duration
	heartbeatInterval time.Duration

	now func() time.Time
}

type WorkerServiceConfig struct {
	HeartbeatTimeout  time.Duration
	HeartbeatInterval time.Duration
}

func NewWorkerService(
	reg *registry.Registry,
	events storage.EventStore,
	snapshots storage.SnapshotStore,
	m *metrics.Metrics,
	cfg WorkerServiceConfig,
	logger *slog.Logger,
) *WorkerService {

	timeout := cfg.HeartbeatTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	interval := cfg.HeartbeatInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = storage.NewNoopEventStore()
	}
	if snapshots == nil {
		snapshots = storage.NewNoopSnapshotStore()
	}
	if m == nil {
		m = metrics.New()
	}

	return &WorkerService{
		registry:          reg,
		events:            events,
		snapshots:         snapshots,
		metrics:           m,
		logger:            logger,
		heartbeatTimeout:  timeout,
		heartbeatInterval: interval,
		now:               time.Now,
	}
}

// Register performs the idempotent upsert of a worker: validate, classify,
// trim out-of-tier services, store, persist. Re-registration replaces the
// previous record wholesale.
func (s *WorkerService) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := req.Capability.Validate(); err != nil {
		s.logger.Warn("registration failed: malformed capability",
			"worker_id", req.WorkerID,
			"error", err,
		)
		return nil, fmt.Errorf("invalid capability: %w", err)
	}
	req.Capability.Normalize()

	workerID := req.WorkerID
	if workerID == "" {
		workerID = uuidutil.NewWorkerID()
	}

	workerTier, _ := tier.Classify(req.Capability)
	kept, trimmed := tier.Trim(req.DeclaredServices, workerTier)

	now := s.now()
	worker := &models.Worker{
		ID:           workerID,
		Capability:   req.Capability,
		Tier:         int(workerTier),
		AdvertiseURL: req.AdvertiseURL,
		Services:     buildEndpoints(kept, req.Services, req.AdvertiseURL),
	}

	stored, replaced := s.registry.Upsert(worker, now)

	kind := models.EventRegistered
	if replaced {
		kind = models.EventReRegistered
	}
	s.recordEvent(ctx, &models.WorkerEvent{
		WorkerID:  workerID,
		Kind:      kind,
		Tier:      stored.Tier,
		Detail:    fmt.Sprintf("services=%s", strings.Join(kept, ",")),
		CreatedAt: now,
	})

	if len(trimmed) > 0 {
		// stale capability mismatch: non-fatal, the worker just loses the
		// services its tier cannot carry
		s.logger.Warn("trimmed services outside worker tier eligibility",
			"worker_id", workerID,
			"tier", stored.Tier,
			"trimmed", trimmed,
		)
		s.recordEvent(ctx, &models.WorkerEvent{
			WorkerID:  workerID,
			Kind:      models.EventTrimmed,
			Tier:      stored.Tier,
			Detail:    strings.Join(trimmed, ","),
			CreatedAt: now,
		})
	}

	s.saveSnapshot(ctx, stored)
	s.metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	s.updateWorkerGauges()

	s.logger.Info("worker registered",
		"worker_id", workerID,
		"tier", stored.Tier,
		"services", kept,
		"replaced", replaced,
	)

	return &models.RegisterResponse{
		WorkerID:                 workerID,
		Tier:                     stored.Tier,
		AssignedServices:         kept,
		TrimmedServices:          trimmed,
		HeartbeatIntervalSeconds: int(s.heartbeatInterval.Seconds()),
	}, nil
}

// Heartbeat applies a liveness update. Liveness is stamped with the
// coordinator clock at receipt; agent clocks are never trusted for expiry.
// An unknown worker id is acknowledged and logged, never treated as a caller
// error: it can legitimately arrive around a coordinator restart.
func (s *WorkerService) Heartbeat(ctx context.Context, req *models.HeartbeatRequest) {
	ts := s.now()

	status := models.WorkerStatusOnline
	if req.Status == "degraded" {
		status = models.WorkerStatusDegraded
	}

	worker, recovered, known := s.registry.Touch(req.WorkerID, status, req.CurrentLoad, ts)
	if !known {
		s.logger.Warn("heartbeat for unknown worker",
			"worker_id", req.WorkerID,
		)
		s.metrics.HeartbeatsTotal.WithLabelValues("unknown").Inc()
		return
	}

	s.metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()

	if recovered {
		s.logger.Info("worker recovered",
			"worker_id", req.WorkerID,
			"tier", worker.Tier,
		)
		s.recordEvent(ctx, &models.WorkerEvent{
			WorkerID:  req.WorkerID,
			Kind:      models.EventRecovered,
			Tier:      worker.Tier,
			CreatedAt: ts,
		})
	}

	if status == models.WorkerStatusDegraded {
		s.recordEvent(ctx, &models.WorkerEvent{
			WorkerID:  req.WorkerID,
			Kind:      models.EventDegraded,
			Tier:      worker.Tier,
			CreatedAt: ts,
		})
	}

	s.saveSnapshot(ctx, worker)
	s.updateWorkerGauges()
}

// Unregister removes the worker record outright. Unknown ids are benign.
func (s *WorkerService) Unregister(ctx context.Context, workerID string) {
	if !s.registry.Remove(workerID) {
		s.logger.Warn("unregister for unknown worker", "worker_id", workerID)
		return
	}

	now := s.now()
	s.recordEvent(ctx, &models.WorkerEvent{
		WorkerID:  workerID,
		Kind:      models.EventRemoved,
		Detail:    "explicit unregister",
		CreatedAt: now,
	})

	if err := s.snapshots.Delete(ctx, workerID); err != nil {
		s.logger.Error("failed to delete worker snapshot",
			"worker_id", workerID,
			"error", err,
		)
	}

	s.updateWorkerGauges()
	s.logger.Info("worker unregistered", "worker_id", workerID)
}

// ListWorkers returns a consistent snapshot of every known worker.
func (s *WorkerService) ListWorkers() []*models.Worker {
	return s.registry.List()
}

// ServiceGaps lists catalog services with zero eligible healthy workers.
func (s *WorkerService) ServiceGaps() []string {
	now := s.now()
	var gaps []string
	for _, service := range tier.AllServices() {
		if len(s.registry.FindByService(service, now, s.heartbeatTimeout)) == 0 {
			gaps = append(gaps, service)
		}
	}
	return gaps
}

// ExpireStale flips workers with lapsed heartbeats to offline.
func (s *WorkerService) ExpireStale(ctx context.Context) []string {
	now := s.now()
	expired := s.registry.MarkExpired(now, s.heartbeatTimeout)

	for _, id := range expired {
		s.logger.Info("worker expired",
			"worker_id", id,
			"heartbeat_timeout", s.heartbeatTimeout,
		)
		s.metrics.ExpiredTotal.Inc()
		s.recordEvent(ctx, &models.WorkerEvent{
			WorkerID:  id,
			Kind:      models.EventExpired,
			Detail:    fmt.Sprintf("no heartbeat within %s", s.heartbeatTimeout),
			CreatedAt: now,
		})
		if worker, ok := s.registry.Get(id); ok {
			s.saveSnapshot(ctx, worker)
		}
	}

	if len(expired) > 0 {
		s.updateWorkerGauges()
	}
	return expired
}

// SweepOffline garbage-collects workers offline past the retention window.
func (s *WorkerService) SweepOffline(ctx context.Context, retention time.Duration) []string {
	now := s.now()
	removed := s.registry.Sweep(now, retention)

	for _, id := range removed {
		s.logger.Info("worker record garbage collected",
			"worker_id", id,
			"retention", retention,
		)
		s.recordEvent(ctx, &models.WorkerEvent{
			WorkerID:  id,
			Kind:      models.EventRemoved,
			Detail:    "retention sweep",
			CreatedAt: now,
		})
		if err := s.snapshots.Delete(ctx, id); err != nil {
			s.logger.Error("failed to delete worker snapshot",
				"worker_id", id,
				"error", err,
			)
		}
	}

	if len(removed) > 0 {
		s.updateWorkerGauges()
	}
	return removed
}

// Restore reloads persisted worker records at startup. The classifier is
// re-run over restored capabilities so tier mappings never go stale across
// coordinator upgrades.
func (s *WorkerService) Restore(ctx context.Context) error {
	workers, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load worker snapshots: %w", err)
	}

	for _, w := range workers {
		workerTier, _ := tier.Classify(w.Capability)
		w.Tier = int(workerTier)
	}
	s.registry.Restore(workers)
	s.updateWorkerGauges()

	if len(workers) > 0 {
		s.logger.Info("restored worker records from snapshot", "count", len(workers))
	}
	return nil
}

// Events returns the audit history of a worker, newest first.
func (s *WorkerService) Events(ctx context.Context, workerID string, limit int) ([]*models.WorkerEvent, error) {
	return s.events.ListByWorker(ctx, workerID, limit)
}

func (s *WorkerService) HeartbeatTimeout() time.Duration  { return s.heartbeatTimeout }
func (s *WorkerService) HeartbeatInterval() time.Duration { return s.heartbeatInterval }

// recordEvent writes to the audit store and publishes to the event channel;
// both are best-effort and never fail the request path.
func (s *WorkerService) recordEvent(ctx context.Context, event *models.WorkerEvent) {
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.Error("failed to record worker event",
			"worker_id", event.WorkerID,
			"kind", event.Kind,
			"error", err,
		)
	}
	if err := s.snapshots.PublishEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish worker event",
			"worker_id", event.WorkerID,
			"kind", event.Kind,
			"error", err,
		)
	}
}

func (s *WorkerService) saveSnapshot(ctx context.Context, worker *models.Worker) {
	if err := s.snapshots.Save(ctx, worker); err != nil {
		s.logger.Error("failed to save worker snapshot",
			"worker_id", worker.ID,
			"error", err,
		)
	}
}

func (s *WorkerService) updateWorkerGauges() {
	s.metrics.ResetWorkerGauge()
	for status, byTier := range s.registry.CountByStatus() {
		for tierNum, count := range byTier {
			s.metrics.SetWorkerGauge(string(status), tierNum, count)
		}
	}
}

// buildEndpoints assembles the stored endpoint list for the kept services.
// Explicit endpoint entries win; services declared without one get a
// synthetic endpoint on the worker's advertise URL.
func buildEndpoints(kept []string, declared []models.ServiceEndpoint, advertiseURL string) []models.ServiceEndpoint {
	keptSet := make(map[string]struct{}, len(kept))
	for _, name := range kept {
		keptSet[name] = struct{}{}
	}

	var endpoints []models.ServiceEndpoint
	covered := make(map[string]struct{})
	for _, ep := range declared {
		if _, ok := keptSet[ep.Name]; !ok {
			continue
		}
		endpoints = append(endpoints, ep)
		covered[ep.Name] = struct{}{}
	}

	for _, name := range kept {
		if _, ok := covered[name]; ok {
			continue
		}
		endpoints = append(endpoints, models.ServiceEndpoint{
			Name: name,
			URL:  advertiseURL,
		})
	}

	return endpoints
}
