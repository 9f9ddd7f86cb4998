package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the coordinator's prometheus collectors. Each instance
// carries its own registry so tests can spin up several coordinators
// without collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	RegistrationsTotal *prometheus.CounterVec
	HeartbeatsTotal    *prometheus.CounterVec
	RoutingTotal       *prometheus.CounterVec
	ExpiredTotal       prometheus.Counter
	WorkersByTier      *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RegistrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "computemesh_registrations_total",
			Help: "Worker registration requests by result.",
		}, []string{"result"}),
		HeartbeatsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "computemesh_heartbeats_total",
			Help: "Heartbeats received by result.",
		}, []string{"result"}),
		RoutingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "computemesh_routing_requests_total",
			Help: "Routing queries by outcome.",
		}, []string{"outcome"}),
		ExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "computemesh_workers_expired_total",
			Help: "Workers expired by the health monitor.",
		}),
		WorkersByTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "computemesh_workers",
			Help: "Known workers by status and tier.",
		}, []string{"status", "tier"}),
	}

	reg.MustRegister(
		m.RegistrationsTotal,
		m.HeartbeatsTotal,
		m.RoutingTotal,
		m.ExpiredTotal,
		m.WorkersByTier,
	)

	return m
}

// SetWorkerGauge updates one (status, tier) cell of the worker gauge.
func (m *Metrics) SetWorkerGauge(status string, tierNum, count int) {
	m.WorkersByTier.WithLabelValues(status, strconv.Itoa(tierNum)).Set(float64(count))
}

// ResetWorkerGauge clears all cells before a full recount.
func (m *Metrics) ResetWorkerGauge() {
	m.WorkersByTier.Reset()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
