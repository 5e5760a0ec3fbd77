package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberingMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewNumberingMetrics(reg)

	m.NumberGenerated(7)
	m.NumberGenerated(7)
	m.NumberGenerated(8)
	m.GenerationFailed("NO_APPLICABLE_RULE")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generated.WithLabelValues("7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generated.WithLabelValues("8")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed.WithLabelValues("NO_APPLICABLE_RULE")))

	expected := `
# HELP docnum_generation_failures_total Failed generation requests, by error code
# TYPE docnum_generation_failures_total counter
docnum_generation_failures_total{code="NO_APPLICABLE_RULE"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "docnum_generation_failures_total"))
}

func TestNumberingMetrics_Histogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewNumberingMetrics(reg)

	m.ObserveGeneration(3 * time.Millisecond)
	m.ObserveGeneration(40 * time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "docnum_generation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewNumberingMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewNumberingMetrics(reg)
	second := NewNumberingMetrics(reg)

	first.NumberGenerated(1)
	second.NumberGenerated(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.generated.WithLabelValues("1")))
}
