// Package metrics exposes Prometheus metrics for the API client, the JSON
// server and the total-spend ledger.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vendorsync/internal/events"
)

const namespace = "vendorsync"

// Metrics owns a private registry so tests and multiple servers never clash
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	totalSpend       prometheus.Gauge
	refreshes        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests made to the vendor API, by operation and status code.",
		}, []string{"op", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Vendor API request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the JSON server, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "JSON server request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		totalSpend: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_spend",
			Help:      "Running total of paid invoice amounts.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_refreshes_total",
			Help:      "Number of times the dashboard data was (re)loaded.",
		}),
	}

	m.registry.MustRegister(
		m.upstreamRequests,
		m.upstreamDuration,
		m.httpRequests,
		m.httpDuration,
		m.totalSpend,
		m.refreshes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one vendor API exchange. Status 0 means no response.
func (m *Metrics) ObserveRequest(op string, status int, elapsed time.Duration) {
	m.upstreamRequests.WithLabelValues(op, statusLabel(status)).Inc()
	m.upstreamDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveHTTP records one request served by the JSON server.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SetTotalSpend sets the total-spend gauge.
func (m *Metrics) SetTotalSpend(total float64) {
	m.totalSpend.Set(total)
}

// Subscribe keeps the gauge and refresh counter in step with bus events.
// The returned func removes both subscriptions.
func (m *Metrics) Subscribe(bus *events.Bus) func() {
	unsubSpend := bus.Subscribe(events.TotalSpendUpdate, func(_ context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.TotalSpendPayload); ok {
			m.SetTotalSpend(p.Total)
		}
		return nil
	})
	unsubRefresh := bus.Subscribe(events.DashboardRefresh, func(context.Context, events.Event) error {
		m.refreshes.Inc()
		return nil
	})
	return func() {
		unsubSpend()
		unsubRefresh()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
