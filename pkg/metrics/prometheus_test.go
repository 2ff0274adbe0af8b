package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollectorCounter(t *testing.T) {
	c := NewPrometheusCollector("quackbench")

	c.IncrementCounter("batches_total", "table", "contoso_sales_24b_scaled")
	c.IncrementCounter("batches_total", "table", "contoso_sales_24b_scaled")

	expected := `
# HELP quackbench_batches_total Counter metric: batches_total
# TYPE quackbench_batches_total counter
quackbench_batches_total{table="contoso_sales_24b_scaled"} 2
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "quackbench_batches_total")
	require.NoError(t, err)
}

func TestPrometheusCollectorGauge(t *testing.T) {
	c := NewPrometheusCollector("quackbench")

	c.RecordGauge("rows_current", 9.6e9)
	c.RecordGauge("rows_current", 1.06e10)

	expected := `
# HELP quackbench_rows_current Gauge metric: rows_current
# TYPE quackbench_rows_current gauge
quackbench_rows_current 1.06e+10
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "quackbench_rows_current")
	require.NoError(t, err)
}

func TestPrometheusCollectorTimer(t *testing.T) {
	c := NewPrometheusCollector("quackbench")

	timer := c.StartTimer("batch")
	elapsed := timer.Stop()
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))

	count := testutil.CollectAndCount(c.histograms["batch_duration_seconds"])
	assert.Equal(t, 1, count)
}

func TestSeparateCollectorsDoNotCollide(t *testing.T) {
	a := NewPrometheusCollector("quackbench")
	b := NewPrometheusCollector("quackbench")

	// Same metric name on two collectors must not panic.
	a.IncrementCounter("queries_total")
	b.IncrementCounter("queries_total")
}

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()
	c.IncrementCounter("x")
	c.RecordGauge("y", 1)
	c.RecordHistogram("z", 2)
	assert.GreaterOrEqual(t, c.StartTimer("t").Stop(), time.Duration(0))
}

func TestLabelSplitting(t *testing.T) {
	labels := []string{"table", "contoso_sales_240k", "phase", "replicate"}
	assert.Equal(t, []string{"table", "phase"}, labelNames(labels))
	assert.Equal(t, []string{"contoso_sales_240k", "replicate"}, labelValues(labels))
}
