package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ComputeMesh/internal/agent/client"
	"ComputeMesh/internal/agent/probe"
	"ComputeMesh/internal/agent/runnersvc"
	"ComputeMesh/internal/config"
	"ComputeMesh/internal/coordinator/models"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second

	defaultHeartbeatInterval = 30 * time.Second
	unregisterTimeout        = 5 * time.Second
	stopGrace                = 10 * time.Second
)

// Agent is the long-lived daemon representing one host's compute
// contribution: probe hardware, register, heartbeat until shutdown.
type Agent struct {
	cfg     *config.AgentConfig
	client  *client.Client
	manager *runnersvc.Manager
	logger  *slog.Logger

	workerID          string
	heartbeatInterval time.Duration
}

func New(cfg *config.AgentConfig, apiClient *client.Client, manager *runnersvc.Manager, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:               cfg,
		client:            apiClient,
		manager:           manager,
		logger:            logger,
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

// Run blocks until the context is cancelled, then deregisters best-effort.
// The agent never terminates on coordinator unavailability: compute donors
// expect a fire-and-forget daemon.
func (a *Agent) Run(ctx context.Context) error {
	capability := probe.Probe(ctx, a.logger)

	resp, err := a.registerLoop(ctx, capability)
	if err != nil {
		return err
	}
	a.applyRegistration(resp)

	a.heartbeatLoop(ctx)

	a.shutdown()
	return nil
}

// registerLoop retries registration forever with capped exponential backoff.
// Only context cancellation or a rejected payload stops it: a rejection
// means re-sending the same descriptor can never succeed.
func (a *Agent) registerLoop(ctx context.Context, capability models.CapabilityDescriptor) (*models.RegisterResponse, error) {
	req := &models.RegisterRequest{
		WorkerID:         a.cfg.WorkerID,
		Capability:       capability,
		AdvertiseURL:     a.cfg.AdvertiseURL,
		DeclaredServices: a.cfg.DeclaredServices,
	}

	backoff := initialBackoff
	for {
		resp, err := a.client.Register(ctx, req)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, client.ErrRegistrationRejected) {
			a.logger.Error("registration rejected by coordinator", "error", err)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		a.logger.Warn("registration failed, will retry",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (a *Agent) applyRegistration(resp *models.RegisterResponse) {
	a.workerID = resp.WorkerID
	if resp.HeartbeatIntervalSeconds > 0 {
		a.heartbeatInterval = time.Duration(resp.HeartbeatIntervalSeconds) * time.Second
	}

	if len(resp.TrimmedServices) > 0 {
		a.logger.Warn("coordinator trimmed declared services",
			"trimmed", resp.TrimmedServices,
			"tier", resp.Tier,
		)
	}

	a.logger.Info("registered with coordinator",
		"worker_id", a.workerID,
		"tier", resp.Tier,
		"assigned_services", resp.AssignedServices,
		"heartbeat_interval", a.heartbeatInterval,
	)

	a.manager.StartAssigned(resp.AssignedServices)
}

// heartbeatLoop sends liveness on a fixed interval until cancellation. A
// failed heartbeat is logged and the next tick tries again; running services
// are never interrupted by coordinator trouble.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sendHeartbeat(ctx)
		}
	}
}

func (a *Agent) sendHeartbeat(ctx context.Context) {
	status := "healthy"
	if a.manager.Degraded() {
		status = "degraded"
	}

	err := a.client.Heartbeat(ctx, &models.HeartbeatRequest{
		WorkerID:    a.workerID,
		Status:      status,
		CurrentLoad: probe.CurrentLoad(),
	})
	if err != nil {
		a.logger.Warn("heartbeat failed",
			"worker_id", a.workerID,
			"error", err,
		)
		return
	}

	if status == "degraded" {
		a.logger.Warn("reported degraded status",
			"failed_services", a.manager.FailedServices(),
		)
	}
}

// shutdown stops managed services and deregisters with a short deadline.
// Failure is tolerable: the health monitor expires the worker regardless.
func (a *Agent) shutdown() {
	a.manager.StopAll(stopGrace)

	ctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
	defer cancel()

	if err := a.client.Unregister(ctx, a.workerID); err != nil {
		a.logger.Warn("graceful unregister failed, coordinator will expire us",
			"worker_id", a.workerID,
			"error", err,
		)
		return
	}

	a.logger.Info("unregistered from coordinator", "worker_id", a.workerID)
}
