package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/gokernel/internal/runtime"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes kernel activity as Prometheus collectors.
type Metrics struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gokernel_events_total",
				Help: "Total number of kernel events by type",
			},
			[]string{"type"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gokernel_executions_total",
				Help: "Total number of executions by language and status",
			},
			[]string{"language", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gokernel_execution_duration_seconds",
				Help:    "Duration of unit executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"language"},
		),
	}
	m.registry.MustRegister(m.events, m.executions, m.duration)
	return m
}

// ObserveEvent counts e. It is meant to be passed to Channel.Observe.
func (m *Metrics) ObserveEvent(e domain.Event) {
	m.events.WithLabelValues(string(e.Base().Type)).Inc()
}

// ObserveExecution records an engine outcome. It satisfies runtime.Observer.
func (m *Metrics) ObserveExecution(_ context.Context, language string, o runtime.Outcome) {
	status := string(o.Status)
	if domain.IsCancellation(o.Err) {
		status = "cancelled"
	}
	m.executions.WithLabelValues(language, status).Inc()
	m.duration.WithLabelValues(language).Observe(o.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests or extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var _ runtime.Observer = (&Metrics{}).ObserveExecution
