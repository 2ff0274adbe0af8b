package benchmark

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []ExecutionResult {
	return []ExecutionResult{
		{Label: "Query 01", Duration: 2 * time.Second, RowsReturned: 10},
		{Label: "Query 02", Duration: 4 * time.Second, RowsReturned: 1,
			Resources: ResourceSnapshot{TempOk: true, TempFilesCount: 2, TempFilesMB: 100}},
		{Label: "Query 03", Duration: 6 * time.Second, RowsReturned: 5},
	}
}

func TestReportSummary(t *testing.T) {
	r := NewReport(time.Now(), sampleResults())

	assert.Equal(t, 12*time.Second, r.TotalTime)
	assert.Equal(t, 4*time.Second, r.AverageTime)
	assert.Equal(t, 2*time.Second, r.MinTime)
	assert.Equal(t, 6*time.Second, r.MaxTime)
	assert.Equal(t, 1, r.Spilled)
	assert.NotEmpty(t, r.RunID)
}

func TestReportEmpty(t *testing.T) {
	r := NewReport(time.Now(), nil)
	assert.Zero(t, r.TotalTime)
	assert.Zero(t, r.AverageTime)
}

func TestReportServerTimePreferred(t *testing.T) {
	results := []ExecutionResult{
		{Label: "Query 01", Duration: 10 * time.Second,
			ServerTime: 3 * time.Second, ServerTimeOk: true},
	}
	r := NewReport(time.Now(), results)
	assert.Equal(t, 3*time.Second, r.TotalTime)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(time.Now(), sampleResults())
	require.NoError(t, r.WriteTable(&buf))

	out := buf.String()
	assert.Contains(t, out, "Query 01")
	assert.Contains(t, out, "100.0MB")
	assert.Contains(t, out, "1 statement(s) spilled to disk")
}

func TestWriteTableScanEfficiency(t *testing.T) {
	results := []ExecutionResult{
		{
			Label:        "Query 01",
			Duration:     time.Second,
			RowsReturned: 50,
			Resources:    ResourceSnapshot{RowsScanned: 1000, RowsScannedOk: true},
		},
		{
			Label:        "Query 02",
			Duration:     time.Second,
			RowsReturned: 900,
			Resources:    ResourceSnapshot{RowsScanned: 1000, RowsScannedOk: true},
		},
		{Label: "Query 03", Duration: time.Second},
	}

	var buf bytes.Buffer
	require.NoError(t, NewReport(time.Now(), results).WriteTable(&buf))

	out := buf.String()
	assert.Contains(t, out, "Scan efficiency")
	// Best ratio listed first, statements without figures omitted.
	assert.Less(t, strings.Index(out, "Query 02: 90.00%"), strings.Index(out, "Query 01: 5.00%"))
	assert.NotContains(t, out, "Query 03:")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(time.Now(), sampleResults())
	require.NoError(t, r.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.RunID, decoded["run_id"])
}

func TestWriteArrow(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(time.Now(), sampleResults())
	require.NoError(t, r.WriteArrow(&buf))

	reader, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer reader.Release()

	require.True(t, reader.Next())
	record := reader.Record()
	assert.Equal(t, int64(3), record.NumRows())
	assert.Equal(t, int64(5), record.NumCols())
}
