package scale

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/infrastructure"
)

// Strategy selects how a direct multiplier scale materializes rows.
type Strategy string

const (
	// StrategyCrossJoin replicates via a cross join against a
	// generated series. One statement, fastest, heaviest on memory.
	StrategyCrossJoin Strategy = "cross-join"

	// StrategyUnion replicates via unions of the current table,
	// bounded to ten copies per statement.
	StrategyUnion Strategy = "union"
)

// confirmThreshold is the expected row count above which a direct
// scale requires operator confirmation.
const confirmThreshold = 1_000_000_000

// Multiplier scales an existing table in place by an integer factor,
// swapping a rebuilt copy over the original.
type Multiplier struct {
	db      *sql.DB
	schema  string
	table   string
	view    string
	logger  zerolog.Logger
	Confirm func(prompt string) bool
	Yes     bool
}

// NewMultiplier creates a direct table multiplier.
func NewMultiplier(db *sql.DB, schema, table, view string, logger zerolog.Logger) *Multiplier {
	return &Multiplier{
		db:      db,
		schema:  schema,
		table:   table,
		view:    view,
		logger:  logger.With().Str("component", "multiplier").Logger(),
		Confirm: func(string) bool { return false },
	}
}

// ScaleBy multiplies the table's rows by factor using the given
// strategy and returns the final row count.
func (m *Multiplier) ScaleBy(ctx context.Context, factor int64, strategy Strategy) (int64, error) {
	if err := infrastructure.ValidatePositive("multiplier", factor); err != nil {
		return 0, err
	}

	table := infrastructure.QualifyTable(m.schema, m.table)
	current, err := m.count(ctx, table)
	if err != nil {
		return 0, err
	}
	expected := current * factor

	m.logger.Info().
		Int64("current_rows", current).
		Int64("expected_rows", expected).
		Int64("factor", factor).
		Str("strategy", string(strategy)).
		Msg("Scaling table")

	if expected > confirmThreshold && !m.Yes {
		prompt := fmt.Sprintf("Creating %d rows will take significant time. Continue?", expected)
		if !m.Confirm(prompt) {
			m.logger.Warn().Msg("Scaling cancelled")
			return current, errors.ErrScaleCanceled
		}
	}

	replacement := m.table + "_new"
	qualified := infrastructure.QualifyTable(m.schema, replacement)

	start := time.Now()
	switch strategy {
	case StrategyCrossJoin:
		err = m.buildCrossJoin(ctx, qualified, table, factor)
	case StrategyUnion:
		err = m.buildUnion(ctx, qualified, table, factor)
	default:
		return current, errors.Newf(errors.CodeConfigInvalid, "unknown scale strategy %q", strategy)
	}
	if err != nil {
		return current, err
	}

	built, err := m.count(ctx, qualified)
	if err != nil {
		return current, err
	}
	if built != expected {
		m.logger.Warn().
			Int64("rows", built).
			Int64("expected", expected).
			Msg("Replacement table count differs from expectation")
	}

	if _, err := m.db.ExecContext(ctx, "DROP TABLE "+table); err != nil {
		return current, errors.Wrap(err, errors.CodeScaleFailed, "failed to drop original table")
	}
	rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qualified, infrastructure.QuoteIdent(m.table))
	if _, err := m.db.ExecContext(ctx, rename); err != nil {
		return current, errors.Wrap(err, errors.CodeScaleFailed, "failed to rename replacement table")
	}

	if m.view != "" {
		viewQuery := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s",
			infrastructure.QualifyTable(m.schema, m.view), table)
		if _, err := m.db.ExecContext(ctx, viewQuery); err != nil {
			return built, errors.Wrap(err, errors.CodeScaleFailed, "failed to update view")
		}
	}

	m.logger.Info().
		Int64("rows", built).
		Dur("elapsed", time.Since(start)).
		Msg("Scaling complete")
	return built, nil
}

func (m *Multiplier) buildCrossJoin(ctx context.Context, dest, src string, factor int64) error {
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT original.* FROM %s AS original CROSS JOIN (SELECT generate_series AS replicate_id FROM generate_series(1, %d)) AS replicator",
		dest, src, factor)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, errors.CodeScaleFailed, "cross join replication failed")
	}
	return nil
}

func (m *Multiplier) buildUnion(ctx context.Context, dest, src string, factor int64) error {
	initial := factor
	if initial > 10 {
		initial = 10
	}
	if _, err := m.db.ExecContext(ctx, createAs(dest, unionSelect(src, initial))); err != nil {
		return errors.Wrap(err, errors.CodeScaleFailed, "union replication failed")
	}
	for i := initial; i < factor; i++ {
		query := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", dest, src)
		if _, err := m.db.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, errors.CodeScaleFailed, "union replication failed")
		}
	}
	return nil
}

func (m *Multiplier) count(ctx context.Context, qualified string) (int64, error) {
	var n int64
	if err := m.db.QueryRowContext(ctx, infrastructure.CountQuery(qualified)).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, errors.CodeQueryFailed, "failed to count %s", qualified)
	}
	return n, nil
}
