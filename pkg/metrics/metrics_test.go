package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTransportMetrics(reg)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ObserveRequest("POST", 201, 20*time.Millisecond)
	m.ObserveRequest("POST", 201, 30*time.Millisecond)
	m.ObserveRequest("GET", 404, time.Millisecond)
	m.ObserveError("connect")
	m.AddBytesWritten(1496)
	m.AddBytesWritten(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("connect")))
	assert.Equal(t, 1496.0, testutil.ToFloat64(m.bytesWritten))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *TransportMetrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.ObserveRequest("GET", 200, time.Second)
		m.ObserveError("x")
		m.AddBytesWritten(10)
	})
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
