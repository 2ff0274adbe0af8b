// Package catalog reports on tables and storage usage of the
// connected MotherDuck database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/infrastructure"
)

// MotherDuck system views surfaced through information_schema that
// are not part of the benchmark dataset.
var systemViews = []string{
	"database_snapshots", "databases", "owned_shares",
	"query_history", "shared_with_me", "storage_info",
	"storage_info_history",
}

// TableInfo describes one table or view with its row count.
type TableInfo struct {
	Name     string
	Type     string
	RowCount int64
	// Err holds the count failure message for tables that exist in
	// the catalog but could not be counted.
	Err string
}

// TableListing is the result of listing a schema's tables.
type TableListing struct {
	Schema    string
	Tables    []TableInfo
	TotalRows int64
}

// Catalog queries table and storage metadata.
type Catalog struct {
	db     *sql.DB
	schema string
	logger zerolog.Logger
}

// New creates a catalog reader for the given schema.
func New(db *sql.DB, schema string, logger zerolog.Logger) *Catalog {
	return &Catalog{
		db:     db,
		schema: schema,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// ListTables returns all user tables and views in the schema with
// their row counts. Views that are listed but not accessible from
// this schema are skipped; other count failures are reported per
// table without aborting the listing.
func (c *Catalog) ListTables(ctx context.Context) (*TableListing, error) {
	quoted := make([]string, len(systemViews))
	for i, name := range systemViews {
		quoted[i] = infrastructure.SQLStringLiteral(name)
	}
	query := fmt.Sprintf(
		"SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = ? AND table_name NOT IN (%s) ORDER BY table_type, table_name",
		strings.Join(quoted, ", "))

	rows, err := c.db.QueryContext(ctx, query, c.schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "failed to list tables")
	}
	defer rows.Close()

	listing := &TableListing{Schema: c.schema}
	var names []TableInfo
	for rows.Next() {
		var info TableInfo
		if err := rows.Scan(&info.Name, &info.Type); err != nil {
			return nil, errors.Wrap(err, errors.CodeQueryFailed, "failed to scan table row")
		}
		names = append(names, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "failed to list tables")
	}

	for _, info := range names {
		qualified := infrastructure.QualifyTable(c.schema, info.Name)

		if info.Type == "VIEW" {
			if err := c.probeView(ctx, qualified); err != nil {
				// Views over other databases show up in the catalog
				// but cannot always be read from here.
				c.logger.Debug().Str("view", info.Name).Err(err).Msg("Skipping inaccessible view")
				continue
			}
		}

		var count int64
		if err := c.db.QueryRowContext(ctx, infrastructure.CountQuery(qualified)).Scan(&count); err != nil {
			info.Err = err.Error()
			listing.Tables = append(listing.Tables, info)
			continue
		}
		info.RowCount = count
		listing.TotalRows += count
		listing.Tables = append(listing.Tables, info)
	}
	return listing, nil
}

func (c *Catalog) probeView(ctx context.Context, qualified string) error {
	var one int
	return c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", qualified)).Scan(&one)
}

// WriteTables renders a table listing for the console.
func (l *TableListing) WriteTables(w io.Writer) {
	if len(l.Tables) == 0 {
		fmt.Fprintf(w, "No tables found in schema %q.\n", l.Schema)
		return
	}
	fmt.Fprintf(w, "%-30s %-12s %15s\n", "TABLE", "TYPE", "ROWS")
	fmt.Fprintln(w, strings.Repeat("-", 59))
	for _, t := range l.Tables {
		if t.Err != "" {
			fmt.Fprintf(w, "%-30s %-12s %15s\n", t.Name, t.Type, "error: "+truncate(t.Err, 20))
			continue
		}
		fmt.Fprintf(w, "%-30s %-12s %15s\n", t.Name, t.Type, formatCount(t.RowCount))
	}
	fmt.Fprintln(w, strings.Repeat("-", 59))
	fmt.Fprintf(w, "Total rows: %s\n", formatCount(l.TotalRows))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// formatCount renders a row count with thousands separators.
func formatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
