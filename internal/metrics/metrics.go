// Package metrics exposes Prometheus collectors for tracker activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vthunder/techpm/internal/tracker"
)

const namespace = "techpm"

// Metrics owns a private registry so tests can build as many as they need
type Metrics struct {
	Registry *prometheus.Registry

	mutations     *prometheus.CounterVec
	saves         prometheus.Counter
	saveFailures  prometheus.Counter
	notifications *prometheus.CounterVec
	tasks         *prometheus.GaugeVec
	projects      prometheus.Gauge
	version       prometheus.Gauge
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Committed store mutations by operation.",
		}, []string{"op"}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Snapshots written to the storage medium.",
		}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_failures_total",
			Help:      "Snapshot saves that failed and were dropped.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by capability and result.",
		}, []string{"kind", "result"}),
		tasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Tasks in the store by status.",
		}, []string{"status"}),
		projects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "projects",
			Help:      "Projects in the store.",
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_version",
			Help:      "Version of the in-memory store.",
		}),
	}
	m.Registry.MustRegister(m.mutations, m.saves, m.saveFailures, m.notifications, m.tasks, m.projects, m.version)
	return m
}

// Observe is a tracker change hook
func (m *Metrics) Observe(c tracker.Change) {
	m.mutations.WithLabelValues(c.Op).Inc()
	m.version.Set(float64(c.Version))
	m.SetStore(c.Store)
}

// SetStore refreshes the store gauges
func (m *Metrics) SetStore(s tracker.Store) {
	counts := make(map[tracker.Status]int, len(tracker.Statuses))
	for _, t := range s.Tasks {
		counts[t.Status]++
	}
	for _, st := range tracker.Statuses {
		m.tasks.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	m.projects.Set(float64(len(s.Projects)))
}

// SaveResult counts one save attempt
func (m *Metrics) SaveResult(err error) {
	if err != nil {
		m.saveFailures.Inc()
		return
	}
	m.saves.Inc()
}

// NotificationResult counts one notification attempt
func (m *Metrics) NotificationResult(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
