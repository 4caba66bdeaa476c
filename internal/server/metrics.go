package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the editor API.
type Metrics struct {
	mutations *prometheus.CounterVec
	dirty     prometheus.Gauge
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	watchers  prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration conflict. Tests pass a fresh registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "society",
				Subsystem: "editor",
				Name:      "mutations_total",
				Help:      "Graph store changes by kind.",
			},
			[]string{"kind"},
		),
		dirty: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "society",
				Subsystem: "editor",
				Name:      "dirty",
				Help:      "1 while the session has unsaved changes.",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "society",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "society",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		watchers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "society",
				Subsystem: "events",
				Name:      "watchers",
				Help:      "Open change-stream connections.",
			},
		),
	}
	reg.MustRegister(m.mutations, m.dirty, m.requests, m.latency, m.watchers)
	return m
}

func (m *Metrics) setDirty(dirty bool) {
	if dirty {
		m.dirty.Set(1)
		return
	}
	m.dirty.Set(0)
}
