package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the workflow engine collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	notifications      *prometheus.CounterVec
	expiredCampaigns   prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Workflow actions executed, by entity, action and outcome",
			},
			[]string{"entity", "action", "outcome"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_transition_duration_seconds",
				Help:      "Time spent inside the transition transaction",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"entity"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification recipients processed by the fan-out dispatcher",
			},
			[]string{"outcome"},
		),
		expiredCampaigns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "campaigns_expired_total",
				Help:      "Campaigns closed by the expiry worker",
			},
		),
	}

	registry.MustRegister(
		m.transitions,
		m.transitionDuration,
		m.notifications,
		m.expiredCampaigns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordTransition counts one orchestrator execution. outcome is "ok" or an
// error kind.
func (m *Metrics) RecordTransition(entity, action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, action, outcome).Inc()
	m.transitionDuration.WithLabelValues(entity).Observe(d.Seconds())
}

// RecordNotifications adds n recipients with the given outcome ("sent" or "failed").
func (m *Metrics) RecordNotifications(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifications.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) RecordExpiredCampaign() {
	if m == nil {
		return
	}
	m.expiredCampaigns.Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
