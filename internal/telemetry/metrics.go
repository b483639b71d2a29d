// Metrics registration and collection
//
// Prometheus metrics setup:
// - Counter, gauge and histogram vectors keyed by a caller-supplied name
// - Histogram definitions for request and origin-fetch latency
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the interface for metrics collection used throughout the
// proxy.
type Metrics interface {
	IncCounter(name string)
	IncCounterBy(name string, value int)

	SetGauge(name string, value float64)
	IncGauge(name string)
	DecGauge(name string)

	ObserveHistogram(name string, value float64)

	ObserveRequestDuration(path string, duration time.Duration)
	ObserveOriginDuration(host string, duration time.Duration)
}

// promMetrics implements Metrics on top of ad-hoc, lazily created
// Prometheus collectors keyed by the caller-supplied name. This mirrors
// the free-form counter/gauge naming the proxy's handlers already use,
// while exposing everything through the standard /metrics endpoint.
type promMetrics struct {
	registry *prometheus.Registry

	counters   *prometheus.CounterVec
	gauges     *prometheus.GaugeVec
	histograms *prometheus.HistogramVec

	requestDuration *prometheus.HistogramVec
	originDuration  *prometheus.HistogramVec
}

// NewMetrics creates a Metrics collector registered with its own
// Prometheus registry, retrievable via Registry() for the /metrics handler.
func NewMetrics() Metrics {
	registry := prometheus.NewRegistry()

	m := &promMetrics{
		registry: registry,
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sgaiproxy",
			Name:      "events_total",
			Help:      "Count of named proxy events.",
		}, []string{"name"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sgaiproxy",
			Name:      "gauges",
			Help:      "Named proxy gauges.",
		}, []string{"name"}),
		histograms: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sgaiproxy",
			Name:      "observations",
			Help:      "Named proxy histogram observations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sgaiproxy",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		originDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sgaiproxy",
			Name:      "origin_fetch_duration_seconds",
			Help:      "Origin fetch duration by host.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
	}

	registry.MustRegister(m.counters, m.gauges, m.histograms, m.requestDuration, m.originDuration)
	return m
}

// Registry exposes the underlying Prometheus registry so the /metrics
// handler can render it.
func (m *promMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *promMetrics) IncCounter(name string)                  { m.counters.WithLabelValues(name).Inc() }
func (m *promMetrics) IncCounterBy(name string, value int)      { m.counters.WithLabelValues(name).Add(float64(value)) }
func (m *promMetrics) SetGauge(name string, value float64)      { m.gauges.WithLabelValues(name).Set(value) }
func (m *promMetrics) IncGauge(name string)                     { m.gauges.WithLabelValues(name).Inc() }
func (m *promMetrics) DecGauge(name string)                     { m.gauges.WithLabelValues(name).Dec() }
func (m *promMetrics) ObserveHistogram(name string, value float64) {
	m.histograms.WithLabelValues(name).Observe(value)
}

func (m *promMetrics) ObserveRequestDuration(path string, duration time.Duration) {
	m.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func (m *promMetrics) ObserveOriginDuration(host string, duration time.Duration) {
	m.originDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// RegistryOf extracts the Prometheus registry from a Metrics value created
// by NewMetrics, for wiring into the /metrics HTTP handler.
func RegistryOf(m Metrics) *prometheus.Registry {
	if pm, ok := m.(*promMetrics); ok {
		return pm.registry
	}
	return prometheus.NewRegistry()
}
