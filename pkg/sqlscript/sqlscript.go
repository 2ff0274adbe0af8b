// Package sqlscript extracts labeled, semicolon-terminated statements
// from flat SQL benchmark scripts.
package sqlscript

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Statement is one executable statement with its display label.
type Statement struct {
	Label string
	Text  string
}

var titleCaser = cases.Title(language.English)

// Extract scans script text line by line and returns the statements in
// source order. Comment lines matching a case-insensitive "--query"
// prefix label the following statement; other comments are ignored.
// ALTER SESSION statements are dropped entirely: the line-level skip
// catches the common single-line case and the joined-statement check
// catches multi-line forms.
func Extract(text string) []Statement {
	var (
		statements []Statement
		buffer     []string
		label      string
	)

	for _, rawLine := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(rawLine)
		if stripped == "" {
			continue
		}
		if strings.HasPrefix(stripped, "--") {
			if strings.HasPrefix(strings.ToLower(stripped), "--query") {
				label = titleCaser.String(strings.TrimSpace(strings.TrimLeft(stripped, "-")))
			}
			continue
		}
		if strings.HasPrefix(strings.ToUpper(stripped), "ALTER SESSION") {
			continue
		}

		buffer = append(buffer, rawLine)
		if !strings.HasSuffix(stripped, ";") {
			continue
		}

		statement := strings.Join(buffer, "\n")
		buffer = nil
		if strings.Contains(strings.ToLower(statement), "alter session") {
			label = ""
			continue
		}
		if label == "" {
			label = fmt.Sprintf("Statement %02d", len(statements)+1)
		}
		statements = append(statements, Statement{Label: label, Text: statement})
		label = ""
	}

	return statements
}

// Filter retains only statements whose label is "Query <n>" with n in
// numbers, compared as strings ("01" and "1" are distinct). A nil or
// empty number list passes everything through unchanged.
func Filter(statements []Statement, numbers []string) []Statement {
	if len(numbers) == 0 {
		return statements
	}

	wanted := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		wanted[n] = struct{}{}
	}

	var filtered []Statement
	for _, stmt := range statements {
		if !strings.HasPrefix(stmt.Label, "Query") {
			continue
		}
		fields := strings.Fields(stmt.Label)
		if len(fields) < 2 {
			continue
		}
		if _, ok := wanted[fields[1]]; ok {
			filtered = append(filtered, stmt)
		}
	}
	return filtered
}
