package infrastructure

import (
	"fmt"
	"strings"

	"github.com/quackbench/quackbench/pkg/errors"
)

// QuoteIdent returns a SQL identifier quoted for DuckDB/MotherDuck.
// Embedded double quotes are doubled.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifyTable returns the schema-qualified, quoted form of a table name.
func QualifyTable(schema, table string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(table)
}

// ValidatePositive guards integers interpolated into SQL text. The
// engine's dialect has no bind parameters for DDL, so strict
// validation substitutes for parameterization.
func ValidatePositive(name string, value int64) error {
	if value <= 0 {
		return errors.Newf(errors.CodeConfigInvalid, "%s must be a positive integer, got %d", name, value)
	}
	return nil
}

// SQLStringLiteral quotes a string value for inclusion in SQL text,
// doubling embedded single quotes.
func SQLStringLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// CountQuery returns the canonical row-count statement for a qualified table.
func CountQuery(qualified string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", qualified)
}
