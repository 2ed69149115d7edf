package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry so
// tests can create servers without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	ChatRequests       *prometheus.CounterVec
	ChatDuration       prometheus.Histogram
	GenerationAttempts prometheus.Counter
	FallbacksServed    *prometheus.CounterVec
}

// NewMetrics creates and registers the server collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysprint_chat_requests_total",
			Help: "Chat requests by outcome.",
		}, []string{"outcome"}),
		ChatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studysprint_chat_duration_seconds",
			Help:    "End to end chat request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		GenerationAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studysprint_generation_attempts_total",
			Help: "Provider generation attempts, including retries.",
		}),
		FallbacksServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studysprint_fallbacks_served_total",
			Help: "Deterministic fallbacks served after exhausted attempts, by output shape.",
		}, []string{"shape"}),
	}
	registry.MustRegister(m.ChatRequests, m.ChatDuration, m.GenerationAttempts, m.FallbacksServed)
	return m
}

// ObserveGeneration records one validated-generation outcome. It matches
// the agent's attempt-observer hook.
func (m *Metrics) ObserveGeneration(shape string, attempts int, fellBack bool) {
	m.GenerationAttempts.Add(float64(attempts))
	if fellBack {
		m.FallbacksServed.WithLabelValues(shape).Inc()
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
