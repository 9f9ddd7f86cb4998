package handlers

import (
	"errors"
	"net/http"
	"time"

	"ComputeMesh/internal/coordinator/models"
	"ComputeMesh/internal/coordinator/router"

	"github.com/gin-gonic/gin"
)

// RouteService handles GET /route/{serviceName}: returns the endpoint the
// caller should forward the request to. The coordinator stays off the data
// path; it hands out addresses, it never proxies.
func (h *Handlers) RouteService(c *gin.Context) {
	serviceName := c.Param("serviceName")

	decision, err := h.router.Route(serviceName, time.Now())
	if err != nil {
		var unavailable *router.NoWorkerAvailableError
		if errors.As(err, &unavailable) {
			h.metrics.RoutingTotal.WithLabelValues("no_worker").Inc()
			c.JSON(http.StatusServiceUnavailable, models.RouteUnavailableResponse{
				Error:             "no_worker_available",
				AvailableServices: unavailable.AvailableServices,
			})
			return
		}

		h.metrics.RoutingTotal.WithLabelValues("error").Inc()
		h.logger.Error("routing failed", "error", err, "service", serviceName)
		c.JSON(http.StatusInternalServerError, ErrorResponse("routing_failed", "Failed to route request"))
		return
	}

	h.metrics.RoutingTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, models.RouteResponse{
		EndpointURL: decision.EndpointURL,
		WorkerID:    decision.Worker.ID,
		Tier:        decision.Worker.Tier,
	})
}
