package handlers

import (
	"log/slog"

	"ComputeMesh/internal/coordinator/metrics"
	"ComputeMesh/internal/coordinator/router"
	"ComputeMesh/internal/coordinator/services"
)

type Handlers struct {
	workerService *services.WorkerService
	router        *router.Router
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewHandlers(workerService *services.WorkerService, rt *router.Router, m *metrics.Metrics, logger *slog.Logger) *Handlers {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		workerService: workerService,
		router:        rt,
		metrics:       m,
		logger:        logger,
	}
}
