package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ComputeMesh/internal/coordinator/models"
	"ComputeMesh/internal/coordinator/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEventStore captures audit events in memory for assertions.
type recordingEventStore struct {
	mu     sync.Mutex
	events []*models.WorkerEvent
}

func (s *recordingEventStore) Record(_ context.Context, event *models.WorkerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingEventStore) ListByWorker(_ context.Context, workerID string, limit int) ([]*models.WorkerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WorkerEvent
	for _, e := range s.events {
		if e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *recordingEventStore) Close() {}

func (s *recordingEventStore) kinds(workerID string) []models.WorkerEventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkerEventKind
	for _, e := range s.events {
		if e.WorkerID == workerID {
			out = append(out, e.Kind)
		}
	}
	return out
}

func newTestService(events *recordingEventStore) *WorkerService {
	return NewWorkerService(
		registry.New(nil),
		events,
		nil,
		nil,
		WorkerServiceConfig{
			HeartbeatTimeout:  90 * time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		nil,
	)
}

func gpuRequest(workerID string) *models.RegisterRequest {
	return &models.RegisterRequest{
		WorkerID:         workerID,
		Capability:       models.CapabilityDescriptor{HasGPU: true, GPUMemoryMB: 24000, CPUCores: 16, RAMGB: 64},
		AdvertiseURL:     "http://gpu-host:9000",
		DeclaredServices: []string{"rag"},
	}
}

func TestRegisterAssignsTierAndInterval(t *testing.T) {
	svc := newTestService(&recordingEventStore{})

	resp, err := svc.Register(context.Background(), gpuRequest("worker-a"))
	require.NoError(t, err)

	assert.Equal(t, "worker-a", resp.WorkerID)
	assert.Equal(t, 1, resp.Tier)
	assert.Equal(t, []string{"rag"}, resp.AssignedServices)
	assert.Empty(t, resp.TrimmedServices)
	assert.Equal(t, 30, resp.HeartbeatIntervalSeconds)
}

func TestRegisterGeneratesWorkerID(t *testing.T) {
	svc := newTestService(&recordingEventStore{})

	req := gpuRequest("")
	resp, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.WorkerID)
	assert.Contains(t, resp.WorkerID, "worker-")
}

func TestRegisterRejectsMalformedCapability(t *testing.T) {
	svc := newTestService(&recordingEventStore{})

	_, err := svc.Register(context.Background(), &models.RegisterRequest{
		Capability: models.CapabilityDescriptor{CPUCores: -1, RAMGB: 8},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidCPUCores)
}

func TestRegisterTrimsOutOfTierServices(t *testing.T) {
	events := &recordingEventStore{}
	svc := newTestService(events)

	// a CPU-tier host declaring a GPU-only service
	resp, err := svc.Register(context.Background(), &models.RegisterRequest{
		WorkerID:         "worker-b",
		Capability:       models.CapabilityDescriptor{CPUCores: 4, RAMGB: 8},
		DeclaredServices: []string{"rag", "llm"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Tier)
	assert.Equal(t, []string{"rag"}, resp.AssignedServices)
	assert.Equal(t, []string{"llm"}, resp.TrimmedServices)
	assert.Contains(t, events.kinds("worker-b"), models.EventTrimmed)
}

func TestReRegistrationReplacesWholesale(t *testing.T) {
	events := &recordingEventStore{}
	svc := newTestService(events)
	ctx := context.Background()

	_, err := svc.Register(ctx, gpuRequest("worker-a"))
	require.NoError(t, err)

	// host loses GPU visibility; classifier must be re-invoked
	resp, err := svc.Register(ctx, &models.RegisterRequest{
		WorkerID:         "worker-a",
		Capability:       models.CapabilityDescriptor{CPUCores: 16, RAMGB: 64},
		DeclaredServices: []string{"rag"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Tier)

	kinds := events.kinds("worker-a")
	assert.Contains(t, kinds, models.EventRegistered)
	assert.Contains(t, kinds, models.EventReRegistered)
}

func TestHeartbeatUnknownWorkerIsAcknowledgedNoOp(t *testing.T) {
	svc := newTestService(&recordingEventStore{})

	// must not panic, must not create a record
	svc.Heartbeat(context.Background(), &models.HeartbeatRequest{WorkerID: "ghost"})
	assert.Empty(t, svc.ListWorkers())
}

func TestHeartbeatRecoveryEvent(t *testing.T) {
	events := &recordingEventStore{}
	svc := newTestService(events)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	_, err := svc.Register(ctx, gpuRequest("worker-a"))
	require.NoError(t, err)

	// heartbeat lapses, monitor expires the worker
	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	expired := svc.ExpireStale(ctx)
	assert.Equal(t, []string{"worker-a"}, expired)

	// the next heartbeat flips it back online and records recovery
	svc.now = func() time.Time { return base.Add(3 * time.Minute) }
	svc.Heartbeat(ctx, &models.HeartbeatRequest{WorkerID: "worker-a"})
	assert.Contains(t, events.kinds("worker-a"), models.EventExpired)
	assert.Contains(t, events.kinds("worker-a"), models.EventRecovered)

	workers := svc.ListWorkers()
	require.Len(t, workers, 1)
	assert.Equal(t, models.WorkerStatusOnline, workers[0].Status)
}

// Liveness must follow the coordinator clock at receipt, never anything the
// agent claims: a worker whose host clock runs behind still stays fresh as
// long as its heartbeats keep arriving, and nothing an agent sends can push
// lastHeartbeatAt into the future past the expiry scan.
func TestHeartbeatLivenessUsesReceiptTime(t *testing.T) {
	svc := newTestService(&recordingEventStore{})
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	_, err := svc.Register(ctx, gpuRequest("worker-a"))
	require.NoError(t, err)

	// the heartbeat arrives late, but it is stamped on receipt, so the
	// expiry pass running at the same instant sees a fresh worker
	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	svc.Heartbeat(ctx, &models.HeartbeatRequest{WorkerID: "worker-a"})
	assert.Empty(t, svc.ExpireStale(ctx))

	workers := svc.ListWorkers()
	require.Len(t, workers, 1)
	assert.Equal(t, models.WorkerStatusOnline, workers[0].Status)
	assert.Equal(t, base.Add(2*time.Minute), workers[0].LastHeartbeatAt)

	// and once heartbeats stop, expiry is governed by the same clock
	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	assert.Equal(t, []string{"worker-a"}, svc.ExpireStale(ctx))
}

func TestUnregisterRemovesWorker(t *testing.T) {
	events := &recordingEventStore{}
	svc := newTestService(events)
	ctx := context.Background()

	_, err := svc.Register(ctx, gpuRequest("worker-a"))
	require.NoError(t, err)

	svc.Unregister(ctx, "worker-a")
	assert.Empty(t, svc.ListWorkers())
	assert.Contains(t, events.kinds("worker-a"), models.EventRemoved)

	// unknown unregister is benign
	svc.Unregister(ctx, "worker-a")
}

func TestSweepOfflinePastRetention(t *testing.T) {
	svc := newTestService(&recordingEventStore{})
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	_, err := svc.Register(ctx, gpuRequest("worker-a"))
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(3 * time.Minute) }
	svc.ExpireStale(ctx)
	require.Len(t, svc.ListWorkers(), 1, "offline record survives inside retention")

	svc.now = func() time.Time { return base.Add(25 * time.Hour) }
	removed := svc.SweepOffline(ctx, 24*time.Hour)
	assert.Equal(t, []string{"worker-a"}, removed)
	assert.Empty(t, svc.ListWorkers())
}

func TestServiceGaps(t *testing.T) {
	svc := newTestService(&recordingEventStore{})
	ctx := context.Background()

	gaps := svc.ServiceGaps()
	assert.Contains(t, gaps, "llm")
	assert.Contains(t, gaps, "chromadb")

	// a tier-1 worker covers everything down to the storage tier
	_, err := svc.Register(ctx, gpuRequest("worker-a"))
	require.NoError(t, err)

	gaps = svc.ServiceGaps()
	assert.NotContains(t, gaps, "llm")
	assert.NotContains(t, gaps, "chromadb")
	assert.Contains(t, gaps, "edge-proxy")
}
