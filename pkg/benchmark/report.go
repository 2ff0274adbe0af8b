package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
)

// Report summarizes one benchmark run.
type Report struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	Results     []ExecutionResult `json:"results"`
	TotalTime   time.Duration     `json:"total_time"`
	AverageTime time.Duration     `json:"average_time"`
	MinTime     time.Duration     `json:"min_time"`
	MaxTime     time.Duration     `json:"max_time"`
	Spilled     int               `json:"spilled_statements"`
}

// NewReport builds a summary over completed results.
func NewReport(startedAt time.Time, results []ExecutionResult) *Report {
	r := &Report{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
		Results:   results,
	}
	for i, res := range results {
		d := res.EffectiveDuration()
		r.TotalTime += d
		if i == 0 || d < r.MinTime {
			r.MinTime = d
		}
		if d > r.MaxTime {
			r.MaxTime = d
		}
		if res.Resources.SpilledToDisk() {
			r.Spilled++
		}
	}
	if len(results) > 0 {
		r.AverageTime = r.TotalTime / time.Duration(len(results))
	}
	return r
}

// WriteTable renders a human-readable summary table.
func (r *Report) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Run %s (%d statements)\n\n", r.RunID, len(r.Results))
	fmt.Fprintf(w, "%-24s %12s %10s %8s\n", "LABEL", "TIME", "ROWS", "SPILL")
	fmt.Fprintln(w, strings.Repeat("-", 58))
	for _, res := range r.Results {
		spill := ""
		if res.Resources.SpilledToDisk() {
			spill = fmt.Sprintf("%.1fMB", res.Resources.TempFilesMB)
		}
		fmt.Fprintf(w, "%-24s %12s %10d %8s\n",
			res.Label, formatDuration(res.EffectiveDuration()), res.RowsReturned, spill)
	}
	fmt.Fprintln(w, strings.Repeat("-", 58))
	fmt.Fprintf(w, "total %s  avg %s  min %s  max %s\n",
		formatDuration(r.TotalTime), formatDuration(r.AverageTime),
		formatDuration(r.MinTime), formatDuration(r.MaxTime))
	if r.Spilled > 0 {
		fmt.Fprintf(w, "%d statement(s) spilled to disk\n", r.Spilled)
	}
	if lines := r.efficiencyLines(); len(lines) > 0 {
		fmt.Fprintln(w, "\nScan efficiency (returned/scanned):")
		for _, line := range lines {
			fmt.Fprintln(w, "  "+line)
		}
	}
	return nil
}

// efficiencyLines lists statements with a known scan ratio, best first.
func (r *Report) efficiencyLines() []string {
	type entry struct {
		label string
		pct   float64
	}
	var entries []entry
	for _, res := range r.Results {
		if pct, ok := res.ScanEfficiency(); ok {
			entries = append(entries, entry{res.Label, pct})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pct > entries[j].pct })
	if len(entries) > 5 {
		entries = entries[:5]
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s: %.2f%%", e.label, e.pct)
	}
	return lines
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteArrow renders per-statement timings as an Arrow IPC stream,
// suitable for loading straight back into DuckDB.
func (r *Report) WriteArrow(w io.Writer) error {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "run_id", Type: arrow.BinaryTypes.String},
		{Name: "label", Type: arrow.BinaryTypes.String},
		{Name: "duration_seconds", Type: arrow.PrimitiveTypes.Float64},
		{Name: "rows_returned", Type: arrow.PrimitiveTypes.Int64},
		{Name: "spilled", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for _, res := range r.Results {
		builder.Field(0).(*array.StringBuilder).Append(r.RunID)
		builder.Field(1).(*array.StringBuilder).Append(res.Label)
		builder.Field(2).(*array.Float64Builder).Append(res.EffectiveDuration().Seconds())
		builder.Field(3).(*array.Int64Builder).Append(res.RowsReturned)
		builder.Field(4).(*array.BooleanBuilder).Append(res.Resources.SpilledToDisk())
	}

	record := builder.NewRecord()
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	if d >= time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
