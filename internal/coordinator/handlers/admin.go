package handlers

import (
	"net/http"

	"ComputeMesh/internal/coordinator/models"

	"github.com/gin-gonic/gin"
)

// ListWorkers handles GET /admin/workers: a read-only projection of the
// registry plus the list of services with no eligible healthy worker.
func (h *Handlers) ListWorkers(c *gin.Context) {
	workers := h.workerService.ListWorkers()

	views := make([]models.AdminWorkerView, 0, len(workers))
	for _, w := range workers {
		views = append(views, models.AdminWorkerView{
			WorkerID:        w.ID,
			Tier:            w.Tier,
			Status:          w.Status,
			Services:        w.ServiceNames(),
			CurrentLoad:     w.CurrentLoad,
			LastHeartbeatAt: w.LastHeartbeatAt,
			RegisteredAt:    w.RegisteredAt,
		})
	}

	gaps := h.workerService.ServiceGaps()
	if gaps == nil {
		gaps = []string{}
	}

	c.JSON(http.StatusOK, models.AdminWorkersResponse{
		Workers: views,
		Gaps:    gaps,
	})
}

// WorkerEvents handles GET /admin/workers/{workerId}/events.
func (h *Handlers) WorkerEvents(c *gin.Context) {
	workerID := c.Param("workerId")

	events, err := h.workerService.Events(c.Request.Context(), workerID, 100)
	if err != nil {
		h.logger.Error("failed to list worker events", "error", err, "worker_id", workerID)
		c.JSON(http.StatusInternalServerError, ErrorResponse("events_failed", "Failed to list worker events"))
		return
	}

	if len(events) == 0 {
		if _, known := h.findWorker(workerID); !known {
			c.JSON(http.StatusNotFound, ErrorResponse("not_found", "Worker not found"))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"workerId": workerID,
		"events":   events,
	})
}

func (h *Handlers) findWorker(workerID string) (*models.Worker, bool) {
	for _, w := range h.workerService.ListWorkers() {
		if w.ID == workerID {
			return w, true
		}
	}
	return nil, false
}
