// Package metrics exposes Prometheus metrics for backend I/O and inventory mutations.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/popis/internal/backend"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	backendOps      *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	mutations       *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "popis",
			Name:      "backend_operations_total",
			Help:      "Backend reads and writes by key and result.",
		}, []string{"op", "key", "result"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "popis",
			Name:      "backend_operation_duration_seconds",
			Help:      "Latency of backend reads and writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "popis",
			Name:      "mutations_total",
			Help:      "Inventory mutations by operation and outcome.",
		}, []string{"operation", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.backendOps,
		m.backendDuration,
		m.mutations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMutation counts one inventory mutation with the given outcome.
func (m *Metrics) ObserveMutation(operation, result string) {
	m.mutations.WithLabelValues(operation, result).Inc()
}

// Backend wraps b so that every Get and Set is counted and timed.
func (m *Metrics) Backend(b backend.Backend) backend.Backend {
	return &instrumented{next: b, m: m}
}

type instrumented struct {
	next backend.Backend
	m    *Metrics
}

func (i *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	value, ok, err := i.next.Get(ctx, key)
	i.observe("get", key, start, err)
	return value, ok, err
}

func (i *instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := i.next.Set(ctx, key, value)
	i.observe("set", key, start, err)
	return err
}

func (i *instrumented) observe(op, key string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.m.backendOps.WithLabelValues(op, key, result).Inc()
	i.m.backendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
