package router

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ComputeMesh/internal/coordinator/models"
	"ComputeMesh/internal/coordinator/registry"
)

// NoWorkerAvailableError is the first-class "nothing can serve this" answer.
// It carries the services that are reachable right now so the caller can
// tell the user what still works.
type NoWorkerAvailableError struct {
	Service           string
	AvailableServices []string
}

func (e *NoWorkerAvailableError) Error() string {
	return fmt.Sprintf("no worker available for service %q", e.Service)
}

// Decision is the ephemeral result of one routing query. Not persisted.
type Decision struct {
	ServiceName string
	Worker      *models.Worker
	Endpoint    models.ServiceEndpoint
	EndpointURL string
}

// Router answers "where should a request for service X go". It is stateless
// with respect to the registry: candidates come from a snapshot, and the
// only state it keeps is its own round-robin cursors.
type Router struct {
	registry         *registry.Registry
	heartbeatTimeout time.Duration
	logger           *slog.Logger

	mu      sync.Mutex
	cursors map[string]int
}

func New(reg *registry.Registry, heartbeatTimeout time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:         reg,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger,
		cursors:          make(map[string]int),
	}
}

// Route selects a target endpoint for the named service: online fresh
// candidates, sorted by tier ascending (more capable first), round-robin
// among the best tier so later-registered but equally-capable workers are
// never starved.
func (r *Router) Route(serviceName string, now time.Time) (*Decision, error) {
	candidates := r.registry.FindByService(serviceName, now, r.heartbeatTimeout)
	if len(candidates) == 0 {
		return nil, &NoWorkerAvailableError{
			Service:           serviceName,
			AvailableServices: r.registry.AvailableServices(now, r.heartbeatTimeout),
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Tier != candidates[j].Tier {
			return candidates[i].Tier < candidates[j].Tier
		}
		return candidates[i].ID < candidates[j].ID
	})

	bestTier := candidates[0].Tier
	group := candidates[:1]
	for _, w := range candidates[1:] {
		if w.Tier != bestTier {
			break
		}
		group = append(group, w)
	}

	selected := group[r.nextCursor(serviceName)%len(group)]
	endpoint := resolveEndpoint(selected, serviceName)

	r.logger.Debug("routing decision",
		"service", serviceName,
		"worker_id", selected.ID,
		"tier", selected.Tier,
		"endpoint_url", endpoint.URL,
		"candidates", len(candidates),
	)

	return &Decision{
		ServiceName: serviceName,
		Worker:      selected,
		Endpoint:    endpoint,
		EndpointURL: endpoint.URL,
	}, nil
}

func (r *Router) nextCursor(serviceName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor := r.cursors[serviceName]
	r.cursors[serviceName] = cursor + 1
	return cursor
}

// resolveEndpoint prefers the worker's endpoint matching the service name
// exactly and falls back to a synthetic endpoint on the advertise URL.
func resolveEndpoint(w *models.Worker, serviceName string) models.ServiceEndpoint {
	for _, ep := range w.Services {
		if ep.Name == serviceName && ep.URL != "" {
			return ep
		}
	}
	return models.ServiceEndpoint{
		Name: serviceName,
		URL:  w.AdvertiseURL,
	}
}
