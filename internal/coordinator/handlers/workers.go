package handlers

import (
	"net/http"

	"ComputeMesh/internal/coordinator/models"

	"github.com/gin-gonic/gin"
)

// RegisterWorker handles POST /worker/register.
func (h *Handlers) RegisterWorker(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
		return
	}

	resp, err := h.workerService.Register(c.Request.Context(), &req)
	if err != nil {
		// the only register failure mode is a malformed capability
		h.logger.Warn("registration rejected", "error", err, "worker_id", req.WorkerID)
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_capability", err.Error()))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Heartbeat handles POST /worker/heartbeat. Unknown worker ids are
// acknowledged as a logged no-op.
func (h *Handlers) Heartbeat(c *gin.Context) {
	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "workerId is required"))
		return
	}

	h.workerService.Heartbeat(c.Request.Context(), &req)
	c.JSON(http.StatusOK, models.HeartbeatResponse{Acknowledged: true})
}

// UnregisterWorker handles DELETE /worker/{workerId}.
func (h *Handlers) UnregisterWorker(c *gin.Context) {
	workerID := c.Param("workerId")
	h.workerService.Unregister(c.Request.Context(), workerID)
	c.Status(http.StatusNoContent)
}
