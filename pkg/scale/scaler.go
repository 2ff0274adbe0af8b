package scale

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quackbench/quackbench/pkg/config"
	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/infrastructure"
	"github.com/quackbench/quackbench/pkg/metrics"
)

// Table names used for transient work during a scaling run. The
// multiplier table is deliberately not listed; it survives failures
// so a rerun can reuse it.
var stagingTables = []string{stage1000x, stage100x, stage10x, "temp_round", "temp_batch"}

// Scaler grows a table to an exact row count in unit-sized batches
// with cooldown pauses between inserts.
type Scaler struct {
	db        *sql.DB
	schema    string
	cfg       config.ScaleConfig
	logger    zerolog.Logger
	collector metrics.Collector

	// Confirm gates long-running work when cfg.Yes is unset. Sleep
	// implements the inter-batch cooldown. Both are injectable so the
	// state machine is testable without a terminal or real pauses.
	Confirm func(prompt string) bool
	Sleep   func(d time.Duration)
}

// NewScaler creates a scaler for the configured tables.
func NewScaler(db *sql.DB, schema string, cfg config.ScaleConfig, logger zerolog.Logger, collector metrics.Collector) *Scaler {
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &Scaler{
		db:        db,
		schema:    schema,
		cfg:       cfg,
		logger:    logger.With().Str("component", "scaler").Logger(),
		collector: collector,
		Confirm:   func(string) bool { return false },
		Sleep:     time.Sleep,
	}
}

// Run executes the full scaling state machine: round to a unit
// boundary, bulk-insert unit chunks, adjust the final remainder,
// verify, and repoint the view. On failure the staging tables are
// cleaned up best-effort and the error is returned; committed batches
// stay committed.
func (s *Scaler) Run(ctx context.Context) error {
	err := s.run(ctx)
	if err != nil && !errors.IsCanceled(err) {
		s.cleanup(context.WithoutCancel(ctx))
	}
	return err
}

func (s *Scaler) run(ctx context.Context) error {
	baseCount, err := s.count(ctx, s.cfg.BaseTable)
	if err != nil {
		return err
	}
	current, err := s.count(ctx, s.cfg.TargetTable)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("base_rows", baseCount).
		Int64("current_rows", current).
		Int64("target_rows", s.cfg.TargetRows).
		Msg("Checked table sizes")

	if current >= s.cfg.TargetRows {
		s.logger.Info().Msg("Already at or above target size")
		return nil
	}

	plan := BuildPlan(current, s.cfg.TargetRows, s.cfg.Unit, baseCount)
	s.logger.Info().
		Int64("correction_rows", plan.Correction).
		Int64("unit_chunks", plan.Chunks).
		Int64("remainder_copies", plan.FullCopies).
		Int64("remainder_partial", plan.Partial).
		Dur("cooldown", s.cfg.Cooldown).
		Msg("Computed scaling plan")

	if !s.cfg.Yes {
		prompt := fmt.Sprintf("Add %d rows to %s in %d batches?",
			plan.TotalRows(), s.cfg.TargetTable, plan.Chunks)
		if !s.Confirm(prompt) {
			s.logger.Warn().Msg("Operation cancelled")
			return errors.ErrScaleCanceled
		}
	}

	replicator := NewReplicator(s.db, s.schema, s.cfg.BaseTable, baseCount, s.logger)

	current, err = s.roundToBoundary(ctx, replicator, current, baseCount)
	if err != nil {
		return err
	}
	current, err = s.bulkPhase(ctx, replicator, current)
	if err != nil {
		return err
	}
	current, err = s.remainderPhase(ctx, replicator, current, baseCount)
	if err != nil {
		return err
	}

	s.verify(current)

	if err := s.repointView(ctx); err != nil {
		return err
	}
	return s.finishMultiplierTable(ctx)
}

// roundToBoundary inserts a correction batch so the count lands on a
// whole multiple of the unit, truncated to whole base table copies.
func (s *Scaler) roundToBoundary(ctx context.Context, replicator *Replicator, current, baseCount int64) (int64, error) {
	correction := RoundingCorrection(current, s.cfg.Unit, baseCount)
	if current%s.cfg.Unit == 0 || correction == 0 {
		return current, nil
	}
	if current+correction > s.cfg.TargetRows {
		return current, nil
	}

	s.logger.Info().Int64("rows", correction).Msg("Rounding up to unit boundary")

	multiplier := correction / baseCount
	if err := replicator.BuildMultiple(ctx, "temp_round", multiplier); err != nil {
		return current, err
	}
	if err := s.insertFrom(ctx, "temp_round"); err != nil {
		return current, err
	}
	if err := s.drop(ctx, "temp_round"); err != nil {
		return current, err
	}
	return s.count(ctx, s.cfg.TargetTable)
}

// bulkPhase inserts the reusable multiplier table once per remaining
// unit chunk, cooling down between inserts but never after the last.
// A failed insert is logged, followed by a doubled cooldown, and the
// loop continues with the next chunk.
func (s *Scaler) bulkPhase(ctx context.Context, replicator *Replicator, current int64) (int64, error) {
	plan := Plan{Unit: s.cfg.Unit, Chunks: ChunksNeeded(current, s.cfg.TargetRows, s.cfg.Unit)}
	batches := plan.Batches()
	if len(batches) == 0 {
		return current, nil
	}

	if err := s.ensureMultiplierTable(ctx, replicator); err != nil {
		return current, err
	}

	for i, batch := range batches {
		s.logger.Info().
			Str("batch", batch.Label).
			Int("batches", len(batches)).
			Int64("rows", batch.Rows).
			Int64("current_rows", current).
			Msg("Inserting unit chunk")

		timer := s.collector.StartTimer("scale_batch")
		err := s.insertFrom(ctx, s.cfg.MultiplierTable)
		timer.Stop()

		if err != nil {
			if ctx.Err() != nil {
				return current, errors.Wrap(ctx.Err(), errors.CodeCanceled, "scaling interrupted")
			}
			s.logger.Error().Err(err).Str("batch", batch.Label).Msg("Batch failed, continuing")
			s.collector.IncrementCounter("scale_batch_failures_total")
			s.Sleep(2 * s.cfg.Cooldown)
			continue
		}

		current, err = s.count(ctx, s.cfg.TargetTable)
		if err != nil {
			return current, err
		}
		s.collector.IncrementCounter("scale_batches_total")
		s.collector.RecordGauge("scale_rows_current", float64(current))
		s.logger.Info().
			Int64("current_rows", current).
			Str("progress", fmt.Sprintf("%.1f%%", float64(current)/float64(s.cfg.TargetRows)*100)).
			Msg("Batch complete")

		if i < len(batches)-1 {
			s.logger.Debug().Dur("cooldown", s.cfg.Cooldown).Msg("Cooling down")
			s.Sleep(s.cfg.Cooldown)
		}
	}
	return current, nil
}

// ensureMultiplierTable reuses an existing unit-sized table when its
// row count matches, rebuilding it otherwise.
func (s *Scaler) ensureMultiplierTable(ctx context.Context, replicator *Replicator) error {
	existing, err := s.count(ctx, s.cfg.MultiplierTable)
	if err == nil && existing == s.cfg.Unit {
		s.logger.Info().Int64("rows", existing).Msg("Reusing existing multiplier table")
		return nil
	}
	if err == nil {
		s.logger.Warn().
			Int64("rows", existing).
			Int64("expected", s.cfg.Unit).
			Msg("Multiplier table size mismatch, rebuilding")
		if err := s.drop(ctx, s.cfg.MultiplierTable); err != nil {
			return err
		}
	}

	s.logger.Info().Int64("rows", s.cfg.Unit).Msg("Building reusable multiplier table")
	if err := replicator.BuildExact(ctx, s.cfg.MultiplierTable, s.cfg.Unit); err != nil {
		return err
	}

	built, err := s.count(ctx, s.cfg.MultiplierTable)
	if err != nil {
		return err
	}
	if built != s.cfg.Unit {
		return errors.Newf(errors.CodeScaleFailed,
			"multiplier table has %d rows, expected %d", built, s.cfg.Unit)
	}
	return nil
}

// remainderPhase closes the residual gap with whole base copies plus
// a row-limited slice so the final count is exact.
func (s *Scaler) remainderPhase(ctx context.Context, replicator *Replicator, current, baseCount int64) (int64, error) {
	gap := s.cfg.TargetRows - current
	if gap <= 0 {
		return current, nil
	}

	fullCopies, partial := Remainder(gap, baseCount)
	s.logger.Info().
		Int64("gap", gap).
		Int64("full_copies", fullCopies).
		Int64("partial", partial).
		Msg("Adjusting final remainder")

	if err := replicator.BuildExact(ctx, "temp_batch", gap); err != nil {
		return current, err
	}
	if err := s.insertFrom(ctx, "temp_batch"); err != nil {
		return current, err
	}
	if err := s.drop(ctx, "temp_batch"); err != nil {
		return current, err
	}
	return s.count(ctx, s.cfg.TargetTable)
}

func (s *Scaler) verify(final int64) {
	switch {
	case final == s.cfg.TargetRows:
		s.logger.Info().Int64("rows", final).Msg("Exact target achieved")
	case final > s.cfg.TargetRows:
		s.logger.Warn().
			Int64("rows", final).
			Int64("over", final-s.cfg.TargetRows).
			Msg("Final count exceeds target")
	default:
		s.logger.Warn().
			Int64("rows", final).
			Int64("short", s.cfg.TargetRows-final).
			Msg("Final count short of target, rerun to close the gap")
	}
	s.collector.RecordGauge("scale_rows_current", float64(final))
}

// repointView recreates the reader-facing view over the scaled table.
func (s *Scaler) repointView(ctx context.Context) error {
	view := infrastructure.QualifyTable(s.schema, s.cfg.View)
	table := infrastructure.QualifyTable(s.schema, s.cfg.TargetTable)
	query := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s", view, table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, errors.CodeScaleFailed, "failed to update view")
	}
	s.logger.Info().Str("view", s.cfg.View).Msg("View updated")
	return nil
}

// finishMultiplierTable asks whether to keep the unit table for later
// runs. Non-interactive runs keep it.
func (s *Scaler) finishMultiplierTable(ctx context.Context) error {
	if s.cfg.Yes || s.Confirm(fmt.Sprintf("Keep %s for future runs?", s.cfg.MultiplierTable)) {
		s.logger.Info().Str("table", s.cfg.MultiplierTable).Msg("Multiplier table kept")
		return nil
	}
	if err := s.drop(ctx, s.cfg.MultiplierTable); err != nil {
		return err
	}
	s.logger.Info().Str("table", s.cfg.MultiplierTable).Msg("Multiplier table dropped")
	return nil
}

// cleanup drops known staging tables, swallowing individual failures.
// The multiplier table is kept for reuse.
func (s *Scaler) cleanup(ctx context.Context) {
	s.logger.Info().Msg("Cleaning up staging tables")
	for _, name := range stagingTables {
		if err := s.drop(ctx, name); err != nil {
			s.logger.Debug().Err(err).Str("table", name).Msg("Cleanup drop failed")
		}
	}
}

func (s *Scaler) count(ctx context.Context, table string) (int64, error) {
	qualified := infrastructure.QualifyTable(s.schema, table)
	var n int64
	if err := s.db.QueryRowContext(ctx, infrastructure.CountQuery(qualified)).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, errors.CodeQueryFailed, "failed to count %s", table)
	}
	return n, nil
}

func (s *Scaler) insertFrom(ctx context.Context, src string) error {
	dest := infrastructure.QualifyTable(s.schema, s.cfg.TargetTable)
	source := infrastructure.QualifyTable(s.schema, src)
	query := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", dest, source)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, errors.CodeScaleFailed, "insert batch failed")
	}
	return nil
}

func (s *Scaler) drop(ctx context.Context, table string) error {
	qualified := infrastructure.QualifyTable(s.schema, table)
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return errors.Wrap(err, errors.CodeScaleFailed, "failed to drop "+table)
	}
	return nil
}
