// Package loader initializes the benchmark database from local
// parquet sample files.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/infrastructure"
)

// SampleTable maps a destination table to its sample file.
type SampleTable struct {
	Table string
	File  string
}

// DefaultSampleTables is the fixed manifest of benchmark inputs.
var DefaultSampleTables = []SampleTable{
	{Table: "contoso_stores", File: "contoso_stores.parquet_0_0_0.snappy.parquet"},
	{Table: "contoso_products", File: "contoso_products.parquet_0_0_0.snappy.parquet"},
	{Table: "contoso_sales_240k", File: "contoso_sales_240k.parquet_0_0_0.snappy.parquet"},
}

const (
	salesView      = "contoso_sales_24b"
	salesViewTable = "contoso_sales_240k"
)

// Loader creates the benchmark tables from sample files.
type Loader struct {
	db         *sql.DB
	schema     string
	samplesDir string
	logger     zerolog.Logger

	// Tables is the load manifest, defaulting to DefaultSampleTables.
	Tables []SampleTable
}

// New creates a loader reading sample files from samplesDir.
func New(db *sql.DB, schema, samplesDir string, logger zerolog.Logger) *Loader {
	return &Loader{
		db:         db,
		schema:     schema,
		samplesDir: samplesDir,
		logger:     logger.With().Str("component", "loader").Logger(),
		Tables:     DefaultSampleTables,
	}
}

// Load creates every manifest table from its parquet file and points
// the sales view at the base table. A missing or unreadable sample
// file aborts before any statement touches that table.
func (l *Loader) Load(ctx context.Context) error {
	for _, sample := range l.Tables {
		path := filepath.Join(l.samplesDir, sample.File)

		expected, err := preflight(path)
		if err != nil {
			return err
		}

		qualified := infrastructure.QualifyTable(l.schema, sample.Table)
		query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
			qualified, infrastructure.SQLStringLiteral(filepath.ToSlash(path)))
		if _, err := l.db.ExecContext(ctx, query); err != nil {
			return errors.Wrapf(err, errors.CodeQueryFailed, "failed to load %s", sample.Table)
		}

		var count int64
		if err := l.db.QueryRowContext(ctx, infrastructure.CountQuery(qualified)).Scan(&count); err != nil {
			return errors.Wrapf(err, errors.CodeQueryFailed, "failed to verify %s", sample.Table)
		}
		if count != expected {
			l.logger.Warn().
				Str("table", sample.Table).
				Int64("rows", count).
				Int64("expected", expected).
				Msg("Loaded row count differs from parquet metadata")
		}
		l.logger.Info().Str("table", sample.Table).Int64("rows", count).Msg("Loaded sample table")
	}
	return l.createView(ctx)
}

// preflight validates the sample file locally and returns its row
// count from the parquet footer.
func preflight(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Newf(errors.CodeConfigInvalid, "expected sample file missing: %s", path)
		}
		return 0, errors.Wrapf(err, errors.CodeConfigInvalid, "cannot read sample file %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, errors.CodeConfigInvalid, "cannot stat sample file %s", path)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return 0, errors.Wrapf(err, errors.CodeConfigInvalid, "invalid parquet file %s", path)
	}
	return pf.NumRows(), nil
}

func (l *Loader) createView(ctx context.Context) error {
	view := infrastructure.QualifyTable(l.schema, salesView)
	source := infrastructure.QualifyTable(l.schema, salesViewTable)
	query := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s", view, source)
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, errors.CodeQueryFailed, "failed to create sales view")
	}
	l.logger.Info().Str("view", salesView).Str("source", salesViewTable).Msg("Created pointer view")
	return nil
}
