// Package metrics exposes prometheus collectors for the transport layer.
//
// # Basic Usage
//
//	m := metrics.Default()
//	start := time.Now()
//	m.ConnectionOpened()
//	defer m.ConnectionClosed()
//	...
//	m.ObserveRequest("GET", 200, time.Since(start))
//
// Tests and embedders that need isolation build their own set with
// NewTransportMetrics(prometheus.NewRegistry()).
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "datahub"

// TransportMetrics groups the collectors recorded by transport connections.
type TransportMetrics struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections prometheus.Gauge
	errors            *prometheus.CounterVec
	bytesWritten      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *TransportMetrics
)

// Default returns the transport metrics registered on the default prometheus registerer.
func Default() *TransportMetrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewTransportMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewTransportMetrics creates and registers transport collectors on reg.
func NewTransportMetrics(reg prometheus.Registerer) *TransportMetrics {
	factory := promauto.With(reg)

	return &TransportMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "requests_total",
				Help:      "Requests completed by transport connections",
			},
			[]string{"method", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "request_duration_seconds",
				Help:      "Time from connect to response headers",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "connections_active",
				Help:      "Connections between connect and disconnect",
			},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "errors_total",
				Help:      "Transport failures by kind",
			},
			[]string{"kind"},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "request_bytes_total",
				Help:      "Request body bytes written to connections",
			},
		),
	}
}

// ObserveRequest records a completed exchange.
func (m *TransportMetrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveError records a failure of the given kind (connect, request, stream, ...).
func (m *TransportMetrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// AddBytesWritten records request body bytes.
func (m *TransportMetrics) AddBytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

// ConnectionOpened increments the active connection gauge.
func (m *TransportMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

// ConnectionClosed decrements the active connection gauge.
func (m *TransportMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}
