package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()

	m, err := New(registry)
	require.NoError(t, err)

	m.ObserveStage("classify", OutcomeSuccess, 250*time.Millisecond)
	m.ObserveStage("classify", OutcomeError, time.Second)
	m.ObserveStage("describe", OutcomeSuccess, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageTotal.WithLabelValues("classify", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageTotal.WithLabelValues("classify", OutcomeError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StageTotal.WithLabelValues("describe", OutcomeEmpty)))

	m.ObserveHTTP("GET", "/", 200, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/", "200")))

	t.Run("double registration fails", func(t *testing.T) {
		_, err := New(registry)
		assert.Error(t, err)
	})
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("classify", OutcomeSuccess, time.Second)
		m.ObserveConfidence(0.9)
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
}
