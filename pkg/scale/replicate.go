package scale

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/infrastructure"
)

// Staging table names used during progressive replication.
const (
	stage10x   = "temp_10x"
	stage100x  = "temp_100x"
	stage1000x = "temp_1000x"
)

// Replicator builds N-times replicas of a base table without ever
// issuing a statement whose output exceeds ten copies of its input.
// It unions by powers of ten (10x, 100x, 1000x staging tables) and
// tops up lower digits with insert loops.
type Replicator struct {
	db        *sql.DB
	schema    string
	base      string
	baseCount int64
	logger    zerolog.Logger
}

// NewReplicator creates a replicator over the given base table.
func NewReplicator(db *sql.DB, schema, base string, baseCount int64, logger zerolog.Logger) *Replicator {
	return &Replicator{
		db:        db,
		schema:    schema,
		base:      base,
		baseCount: baseCount,
		logger:    logger.With().Str("component", "replicator").Logger(),
	}
}

// BuildMultiple creates table holding exactly multiplier copies of
// the base table. Staging tables are dropped before returning.
func (r *Replicator) BuildMultiple(ctx context.Context, table string, multiplier int64) error {
	if err := infrastructure.ValidatePositive("multiplier", multiplier); err != nil {
		return err
	}

	base := infrastructure.QualifyTable(r.schema, r.base)
	dest := infrastructure.QualifyTable(r.schema, table)

	if multiplier <= 10 {
		return r.exec(ctx, createAs(dest, unionSelect(base, multiplier)))
	}

	tenX := infrastructure.QualifyTable(r.schema, stage10x)
	hundredX := infrastructure.QualifyTable(r.schema, stage100x)
	thousandX := infrastructure.QualifyTable(r.schema, stage1000x)

	r.logger.Debug().Int64("multiplier", multiplier).Str("table", table).Msg("Building staged replica")

	if err := r.exec(ctx, createAs(tenX, unionSelect(base, 10))); err != nil {
		return err
	}

	switch {
	case multiplier <= 100:
		if err := r.assemble(ctx, dest, tenX, multiplier/10); err != nil {
			return err
		}
	case multiplier <= 1000:
		if err := r.exec(ctx, createAs(hundredX, unionSelect(tenX, 10))); err != nil {
			return err
		}
		if err := r.assemble(ctx, dest, hundredX, multiplier/100); err != nil {
			return err
		}
		if err := r.insertCopies(ctx, dest, tenX, (multiplier%100)/10); err != nil {
			return err
		}
	default:
		if err := r.exec(ctx, createAs(hundredX, unionSelect(tenX, 10))); err != nil {
			return err
		}
		if err := r.exec(ctx, createAs(thousandX, unionSelect(hundredX, 10))); err != nil {
			return err
		}
		if err := r.assemble(ctx, dest, thousandX, multiplier/1000); err != nil {
			return err
		}
		if err := r.insertCopies(ctx, dest, hundredX, (multiplier%1000)/100); err != nil {
			return err
		}
		if err := r.insertCopies(ctx, dest, tenX, (multiplier%100)/10); err != nil {
			return err
		}
	}

	if err := r.insertCopies(ctx, dest, base, multiplier%10); err != nil {
		return err
	}
	return r.DropStaging(ctx)
}

// BuildExact creates table holding exactly rows rows: whole base
// copies plus a row-limited slice for the fraction.
func (r *Replicator) BuildExact(ctx context.Context, table string, rows int64) error {
	if err := infrastructure.ValidatePositive("rows", rows); err != nil {
		return err
	}

	base := infrastructure.QualifyTable(r.schema, r.base)
	dest := infrastructure.QualifyTable(r.schema, table)
	fullCopies, partial := Remainder(rows, r.baseCount)

	if fullCopies == 0 {
		return r.exec(ctx, createAs(dest, fmt.Sprintf("SELECT * FROM %s LIMIT %d", base, partial)))
	}
	if err := r.BuildMultiple(ctx, table, fullCopies); err != nil {
		return err
	}
	if partial > 0 {
		return r.exec(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s LIMIT %d", dest, base, partial))
	}
	return nil
}

// DropStaging removes intermediate staging tables, tolerating absence.
func (r *Replicator) DropStaging(ctx context.Context) error {
	for _, name := range []string{stage1000x, stage100x, stage10x} {
		qualified := infrastructure.QualifyTable(r.schema, name)
		if err := r.exec(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
			return err
		}
	}
	return nil
}

// assemble creates dest from copies of a staging table. At most ten
// copies go into the create statement; the rest are appended by
// insert so no single statement exceeds ten unions.
func (r *Replicator) assemble(ctx context.Context, dest, src string, copies int64) error {
	initial := copies
	if initial > 10 {
		initial = 10
	}
	if err := r.exec(ctx, createAs(dest, unionSelect(src, initial))); err != nil {
		return err
	}
	return r.insertCopies(ctx, dest, src, copies-initial)
}

func (r *Replicator) insertCopies(ctx context.Context, dest, src string, n int64) error {
	for i := int64(0); i < n; i++ {
		if err := r.exec(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", dest, src)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replicator) exec(ctx context.Context, query string) error {
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, errors.CodeScaleFailed, "replication statement failed")
	}
	return nil
}

// unionSelect builds a single statement selecting n copies of src.
func unionSelect(src string, n int64) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM " + src)
	for i := int64(1); i < n; i++ {
		b.WriteString(" UNION ALL SELECT * FROM " + src)
	}
	return b.String()
}

func createAs(dest, query string) string {
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", dest, query)
}
