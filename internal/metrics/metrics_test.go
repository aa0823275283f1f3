package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun("simulate", true, 20*time.Millisecond)
	m.ObserveRun("simulate", false, time.Millisecond)
	m.CacheHit("simulate")
	m.AddDays(30)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("simulate", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("simulate", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("simulate", ResultCached)))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.daysSimulated))

	n, err := testutil.GatherAndCount(reg, "bess_engine_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStreamGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.StreamConnected()
	m.StreamConnected()
	m.StreamDisconnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamClients))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("dimension", true, time.Second)
	m.CacheHit("dimension")
	m.AddDays(1)
	m.ObserveUpload(10, 1)
	m.StreamConnected()
	m.StreamDisconnected()
	m.ObserveHTTP("/health", "GET", "200", time.Millisecond)
}
