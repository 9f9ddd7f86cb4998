package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ComputeMesh/internal/config"
	"ComputeMesh/internal/coordinator/dependencies"
	"ComputeMesh/internal/coordinator/models"
	"ComputeMesh/internal/coordinator/tier"
	"ComputeMesh/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, heartbeatTimeoutSeconds int) *Server {
	t.Helper()

	cfg := &config.Config{
		App:    config.AppConfig{Name: "computemesh", Version: "test"},
		Server: config.ServerConfig{Port: 8080, Mode: "release"},
		Cluster: config.ClusterConfig{
			HeartbeatTimeoutSeconds:  heartbeatTimeoutSeconds,
			HeartbeatIntervalSeconds: 30,
			GCRetentionSeconds:       86400,
			MonitorTickSeconds:       15,
		},
	}

	log := logger.Setup(logger.Config{Level: "error", Format: "text"})
	container, err := dependencies.NewContainer(context.Background(), cfg, log)
	require.NoError(t, err)

	return New(&Config{Port: cfg.Server.Port, Mode: cfg.Server.Mode}, container)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegisterRoundTrip(t *testing.T) {
	srv := newTestServer(t, 90)

	capability := models.CapabilityDescriptor{HasGPU: true, GPUMemoryMB: 24000, CPUCores: 16, RAMGB: 64}
	rec := doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		WorkerID:         "worker-a",
		Capability:       capability,
		AdvertiseURL:     "http://gpu-host:9000",
		DeclaredServices: []string{"rag"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.RegisterResponse](t, rec)
	assert.Equal(t, "worker-a", resp.WorkerID)
	assert.Equal(t, 30, resp.HeartbeatIntervalSeconds)

	// the returned tier must match an independent classification
	wantTier, _ := tier.Classify(capability)
	assert.Equal(t, int(wantTier), resp.Tier)

	// and the admin dump must agree
	rec = doJSON(t, srv, http.MethodGet, "/admin/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	admin := decode[models.AdminWorkersResponse](t, rec)
	require.Len(t, admin.Workers, 1)
	assert.Equal(t, "worker-a", admin.Workers[0].WorkerID)
	assert.Equal(t, int(wantTier), admin.Workers[0].Tier)
	assert.Equal(t, models.WorkerStatusOnline, admin.Workers[0].Status)
}

func TestRegisterMalformedCapability(t *testing.T) {
	srv := newTestServer(t, 90)

	rec := doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		Capability: models.CapabilityDescriptor{CPUCores: -2, RAMGB: 4},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeartbeatUnknownWorkerReturns200(t *testing.T) {
	srv := newTestServer(t, 90)

	rec := doJSON(t, srv, http.MethodPost, "/worker/heartbeat", models.HeartbeatRequest{
		WorkerID: "ghost",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.HeartbeatResponse](t, rec)
	assert.True(t, resp.Acknowledged)
}

func TestUnregister(t *testing.T) {
	srv := newTestServer(t, 90)

	doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		WorkerID:         "worker-a",
		Capability:       models.CapabilityDescriptor{CPUCores: 4, RAMGB: 8},
		DeclaredServices: []string{"rag"},
	})

	rec := doJSON(t, srv, http.MethodDelete, "/worker/worker-a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	admin := decode[models.AdminWorkersResponse](t, doJSON(t, srv, http.MethodGet, "/admin/workers", nil))
	assert.Empty(t, admin.Workers)
}

// The documented scenario: GPU worker A and CPU worker B both declare
// "rag"; routing prefers A, then fails over to B once A's heartbeat lapses.
func TestRoutingScenario(t *testing.T) {
	srv := newTestServer(t, 1) // one-second heartbeat timeout

	regA := decode[models.RegisterResponse](t, doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		WorkerID:         "worker-a",
		Capability:       models.CapabilityDescriptor{HasGPU: true, GPUMemoryMB: 24000, CPUCores: 16, RAMGB: 64},
		AdvertiseURL:     "http://worker-a:9000",
		DeclaredServices: []string{"rag"},
	}))
	require.Equal(t, 1, regA.Tier)

	regB := decode[models.RegisterResponse](t, doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		WorkerID:         "worker-b",
		Capability:       models.CapabilityDescriptor{CPUCores: 4, RAMGB: 8},
		AdvertiseURL:     "http://worker-b:9000",
		DeclaredServices: []string{"rag"},
	}))
	require.Equal(t, 2, regB.Tier)
	assert.Equal(t, []string{"rag"}, regB.AssignedServices)

	rec := doJSON(t, srv, http.MethodGet, "/route/rag", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	route := decode[models.RouteResponse](t, rec)
	assert.Equal(t, "worker-a", route.WorkerID)
	assert.Equal(t, 1, route.Tier)

	// A goes quiet past the timeout while B keeps heartbeating
	time.Sleep(1200 * time.Millisecond)
	doJSON(t, srv, http.MethodPost, "/worker/heartbeat", models.HeartbeatRequest{WorkerID: "worker-b"})

	rec = doJSON(t, srv, http.MethodGet, "/route/rag", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	route = decode[models.RouteResponse](t, rec)
	assert.Equal(t, "worker-b", route.WorkerID)
	assert.Equal(t, 2, route.Tier)
}

func TestRouteUnavailableListsAvailableServices(t *testing.T) {
	srv := newTestServer(t, 90)

	doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		WorkerID:         "worker-b",
		Capability:       models.CapabilityDescriptor{CPUCores: 1, RAMGB: 2},
		DeclaredServices: []string{"chromadb"},
	})

	rec := doJSON(t, srv, http.MethodGet, "/route/llm", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decode[models.RouteUnavailableResponse](t, rec)
	assert.Equal(t, "no_worker_available", resp.Error)
	assert.Equal(t, []string{"chromadb"}, resp.AvailableServices)
}

func TestAdminGapsListUncoveredServices(t *testing.T) {
	srv := newTestServer(t, 90)

	admin := decode[models.AdminWorkersResponse](t, doJSON(t, srv, http.MethodGet, "/admin/workers", nil))
	assert.Contains(t, admin.Gaps, "llm")
	assert.Contains(t, admin.Gaps, "rag")

	doJSON(t, srv, http.MethodPost, "/worker/register", models.RegisterRequest{
		WorkerID:         "worker-a",
		Capability:       models.CapabilityDescriptor{HasGPU: true, GPUMemoryMB: 24000, CPUCores: 16, RAMGB: 64},
		DeclaredServices: []string{"llm"},
	})

	admin = decode[models.AdminWorkersResponse](t, doJSON(t, srv, http.MethodGet, "/admin/workers", nil))
	assert.NotContains(t, admin.Gaps, "llm")
	assert.NotContains(t, admin.Gaps, "rag")
	assert.Contains(t, admin.Gaps, "edge-proxy")
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, 90)

	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/ready", nil).Code)

	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "computemesh_")
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, 90)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-fixed")
	rec = httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(rec, req)
	assert.Equal(t, "req-fixed", rec.Header().Get("X-Request-ID"))
}

func TestWorkerEventsNotFound(t *testing.T) {
	srv := newTestServer(t, 90)

	// no stores configured, no worker registered: 404
	rec := doJSON(t, srv, http.MethodGet, "/admin/workers/ghost/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
