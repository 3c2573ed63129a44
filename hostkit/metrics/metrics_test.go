package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountersIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	mx := NewWithRegistry(registry)

	mx.RunsStarted.Inc()
	mx.RunsSucceeded.Inc()
	mx.RunsFailed.WithLabelValues("timeout").Inc()
	mx.ActiveChannels.Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(mx.RunsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.RunsSucceeded))
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.RunsFailed.WithLabelValues("timeout")))
	assert.Equal(t, float64(3), testutil.ToFloat64(mx.ActiveChannels))
}

func TestNewWithRegistry_IsolatesRegistries(t *testing.T) {
	regA := prometheus.NewRegistry()
	regB := prometheus.NewRegistry()

	mxA := NewWithRegistry(regA)
	mxA.RunsStarted.Inc()

	mxB := NewWithRegistry(regB)
	assert.Equal(t, float64(0), testutil.ToFloat64(mxB.RunsStarted))
}
