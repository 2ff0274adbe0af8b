// Package benchmark executes labeled SQL statements against MotherDuck
// and captures timing and resource usage for each one.
package benchmark

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/metrics"
	"github.com/quackbench/quackbench/pkg/sqlscript"
)

// serverTimePattern extracts the server-reported total time from an
// EXPLAIN ANALYZE plan.
var serverTimePattern = regexp.MustCompile(`Total Time:\s*([\d.]+)s`)

const currentMemoryQuery = "SELECT current_memory() / 1024.0 / 1024.0"

// Row figures appear as "N Rows" in analyzed plans and "rows=N" in
// plain EXPLAIN estimates.
var (
	analyzedRowsPattern  = regexp.MustCompile(`(\d+)\s+Rows`)
	estimatedRowsPattern = regexp.MustCompile(`rows=(\d+)`)
)

// Options controls how the runner executes statements.
type Options struct {
	// Explain wraps each statement in EXPLAIN ANALYZE and reports the
	// server-side execution time instead of wall-clock time.
	Explain bool

	// Verbose prints the full analyzed plan for each statement.
	Verbose bool

	// Profile captures database resource metrics after each statement.
	Profile bool

	// PreviewRows is the number of result rows to fetch and display
	// per statement. Zero fetches a single row without previewing it.
	PreviewRows int
}

// ResourceSnapshot holds database resource metrics captured after a
// statement completes. The Ok fields report whether each probe
// succeeded; a false Ok means the value is meaningless, not zero.
type ResourceSnapshot struct {
	MemoryUsedMB   float64
	MemoryOk       bool
	PeakMemoryMB   float64
	PeakOk         bool
	TempFilesCount int64
	TempFilesMB    float64
	TempOk         bool
	// RowsScanned is the largest row figure in the statement's plan,
	// actual under EXPLAIN ANALYZE and estimated otherwise.
	RowsScanned   int64
	RowsScannedOk bool
}

// SpilledToDisk reports whether the statement wrote temporary files.
func (r ResourceSnapshot) SpilledToDisk() bool {
	return r.TempOk && r.TempFilesCount > 0
}

// ExecutionResult holds the outcome of one executed statement.
type ExecutionResult struct {
	Label    string
	SQL      string
	Duration time.Duration
	// ServerTime is the EXPLAIN ANALYZE reported time; valid only
	// when ServerTimeOk is true.
	ServerTime   time.Duration
	ServerTimeOk bool
	Preview      [][]string
	Columns      []string
	RowsReturned int64
	Resources    ResourceSnapshot
}

// ScanEfficiency is the percentage of scanned rows the statement
// returned. Valid only when both figures are known and nonzero.
func (r ExecutionResult) ScanEfficiency() (float64, bool) {
	if !r.Resources.RowsScannedOk || r.Resources.RowsScanned == 0 || r.RowsReturned == 0 {
		return 0, false
	}
	return float64(r.RowsReturned) / float64(r.Resources.RowsScanned) * 100, true
}

// EffectiveDuration prefers the server-reported time when available.
func (r ExecutionResult) EffectiveDuration() time.Duration {
	if r.ServerTimeOk {
		return r.ServerTime
	}
	return r.Duration
}

// Runner executes extracted statements in order, failing fast on the
// first error.
type Runner struct {
	db        *sql.DB
	logger    zerolog.Logger
	collector metrics.Collector
	opts      Options
}

// NewRunner creates a statement runner.
func NewRunner(db *sql.DB, logger zerolog.Logger, collector metrics.Collector, opts Options) *Runner {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &Runner{
		db:        db,
		logger:    logger.With().Str("component", "runner").Logger(),
		collector: collector,
		opts:      opts,
	}
}

// Run executes the statements in order and returns one result per
// statement. On failure it returns the results so far plus the error.
func (r *Runner) Run(ctx context.Context, statements []sqlscript.Statement) ([]ExecutionResult, error) {
	results := make([]ExecutionResult, 0, len(statements))
	for i, stmt := range statements {
		r.logger.Info().
			Str("label", stmt.Label).
			Int("position", i+1).
			Int("total", len(statements)).
			Msg("Executing statement")

		result, err := r.runOne(ctx, stmt)
		if err != nil {
			return results, errors.Wrapf(err, errors.CodeQueryFailed, "statement %q failed", stmt.Label)
		}
		results = append(results, result)

		r.collector.IncrementCounter("statements_total", "label", stmt.Label)
		r.collector.RecordHistogram("statement_seconds", result.EffectiveDuration().Seconds(), "label", stmt.Label)

		r.logger.Info().
			Str("label", stmt.Label).
			Dur("duration", result.EffectiveDuration()).
			Int64("rows", result.RowsReturned).
			Msg("Statement complete")
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, stmt sqlscript.Statement) (ExecutionResult, error) {
	result := ExecutionResult{Label: stmt.Label, SQL: stmt.Text}

	var memoryBefore float64
	var memoryBeforeOk bool
	if r.opts.Profile {
		memoryBefore, memoryBeforeOk = r.probeFloat(ctx, currentMemoryQuery)
	}

	var rowsScanned int64
	var rowsScannedOk bool

	if r.opts.Explain {
		plan, duration, err := r.explainAnalyze(ctx, stmt.Text)
		if err != nil {
			return result, err
		}
		result.Duration = duration
		if serverTime, ok := parseServerTime(plan); ok {
			result.ServerTime = serverTime
			result.ServerTimeOk = true
		}
		if r.opts.Profile {
			rowsScanned, rowsScannedOk = parseRowsScanned(plan, analyzedRowsPattern)
		}
		if r.opts.Verbose {
			fmt.Println(plan)
		}
	} else {
		start := time.Now()
		columns, preview, rows, err := r.fetch(ctx, stmt.Text)
		if err != nil {
			return result, err
		}
		result.Duration = time.Since(start)
		result.Columns = columns
		result.Preview = preview
		result.RowsReturned = rows
		if r.opts.Profile {
			rowsScanned, rowsScannedOk = r.estimateRowsScanned(ctx, stmt.Text)
		}
	}

	if r.opts.Profile {
		snap := r.snapshotResources(ctx)
		// Memory used is the growth across the statement; peak and
		// temp file figures are absolute readings.
		if snap.MemoryOk && memoryBeforeOk {
			snap.MemoryUsedMB -= memoryBefore
		}
		snap.RowsScanned = rowsScanned
		snap.RowsScannedOk = rowsScannedOk
		result.Resources = snap
	}
	return result, nil
}

// estimateRowsScanned runs a plain EXPLAIN after the statement and
// takes the largest estimated row figure in the plan. Failures are
// swallowed; estimates are advisory.
func (r *Runner) estimateRowsScanned(ctx context.Context, query string) (int64, bool) {
	plan, _, err := r.planText(ctx, "EXPLAIN "+query)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Row estimate unavailable")
		return 0, false
	}
	return parseRowsScanned(strings.ToLower(plan), estimatedRowsPattern)
}

// parseRowsScanned returns the largest row count the pattern finds in
// the plan text. Smaller figures belong to downstream operators.
func parseRowsScanned(plan string, pattern *regexp.Regexp) (int64, bool) {
	var max int64
	for _, m := range pattern.FindAllStringSubmatch(plan, -1) {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, max > 0
}

// explainAnalyze runs the statement under EXPLAIN ANALYZE and returns
// the concatenated plan text.
func (r *Runner) explainAnalyze(ctx context.Context, query string) (string, time.Duration, error) {
	return r.planText(ctx, "EXPLAIN ANALYZE "+query)
}

func (r *Runner) planText(ctx context.Context, query string) (string, time.Duration, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return "", 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", 0, err
	}

	var plan string
	values := make([]sql.NullString, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return "", 0, err
		}
		// The plan text is in the last column; the first carries the
		// explain type.
		if last := values[len(values)-1]; last.Valid {
			plan += last.String + "\n"
		}
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}
	return plan, time.Since(start), nil
}

// fetch executes the statement and pulls at most PreviewRows rows of
// rendered values, or a single row when previewing is off. Large
// result sets are never transferred in full; the reported count is
// the number of rows actually fetched.
func (r *Runner) fetch(ctx context.Context, query string) ([]string, [][]string, int64, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, 0, err
	}

	// One row confirms execution completed without holding the
	// result set.
	limit := r.opts.PreviewRows
	if limit <= 0 {
		limit = 1
	}

	var (
		preview [][]string
		fetched int64
	)
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for fetched < int64(limit) && rows.Next() {
		fetched++
		if err := rows.Scan(scanArgs...); err != nil {
			return columns, preview, fetched, err
		}
		if r.opts.PreviewRows > 0 {
			rendered := make([]string, len(values))
			for i, v := range values {
				rendered[i] = renderValue(v)
			}
			preview = append(preview, rendered)
		}
	}
	if err := rows.Err(); err != nil {
		return columns, preview, fetched, err
	}
	return columns, preview, fetched, nil
}

// snapshotResources probes resource metrics, tolerating individual
// probe failures. Failed probes leave their Ok flag false.
func (r *Runner) snapshotResources(ctx context.Context) ResourceSnapshot {
	var snap ResourceSnapshot

	if v, ok := r.probeFloat(ctx, currentMemoryQuery); ok {
		snap.MemoryUsedMB = v
		snap.MemoryOk = true
	}
	if v, ok := r.probeFloat(ctx, "SELECT peak_memory() / 1024.0 / 1024.0"); ok {
		snap.PeakMemoryMB = v
		snap.PeakOk = true
	}

	row := r.db.QueryRowContext(ctx,
		"SELECT count(*), coalesce(sum(size), 0) / 1024.0 / 1024.0 FROM duckdb_temporary_files()")
	var count int64
	var sizeMB float64
	if err := row.Scan(&count, &sizeMB); err != nil {
		r.logger.Debug().Err(err).Msg("Temporary file probe unavailable")
	} else {
		snap.TempFilesCount = count
		snap.TempFilesMB = sizeMB
		snap.TempOk = true
	}
	return snap
}

func (r *Runner) probeFloat(ctx context.Context, query string) (float64, bool) {
	var v float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		r.logger.Debug().Err(err).Str("probe", query).Msg("Resource probe unavailable")
		return 0, false
	}
	return v, true
}

// parseServerTime extracts the server-reported duration from a plan.
func parseServerTime(plan string) (time.Duration, bool) {
	match := serverTimePattern.FindStringSubmatch(plan)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
