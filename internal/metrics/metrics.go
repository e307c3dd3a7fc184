// Package metrics exports reminder and HTTP telemetry to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mindfolk"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	remindersShown  prometheus.Histogram
	derivations     prometheus.Counter
	dismissals      prometheus.Counter
	activeStreams   prometheus.Gauge
	gatherer        prometheus.Gatherer
}

// MustNewMetrics registers the collectors with reg and panics on conflict.
// A nil reg uses a fresh registry that also carries the Go and process
// collectors.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg, gatherer = registry, registry
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		remindersShown: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "visible",
			Help:      "Number of reminders in each derivation.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		derivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "derivations_total",
			Help:      "Reminder derivations served to views.",
		}),
		dismissals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "dismissals_total",
			Help:      "Reminders dismissed by viewers.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "active_streams",
			Help:      "Reminder streams currently connected.",
		}),
		gatherer: gatherer,
	}
	reg.MustRegister(m.requestDuration, m.remindersShown, m.derivations, m.dismissals, m.activeStreams)
	return m
}

// RemindersDerived records one derivation that produced count reminders.
func (m *Metrics) RemindersDerived(count int) {
	if m == nil {
		return
	}
	m.derivations.Inc()
	m.remindersShown.Observe(float64(count))
}

// ReminderDismissed counts a new dismissal.
func (m *Metrics) ReminderDismissed() {
	if m == nil {
		return
	}
	m.dismissals.Inc()
}

// StreamOpened increments the active stream gauge.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

// StreamClosed decrements the active stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

// ObserveRequest records the duration of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler serves the registered collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
