package sqlscript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLabeledStatements(t *testing.T) {
	script := "--query 01\nSELECT 1;\n--query 02\nSELECT 2;\n"

	statements := Extract(script)
	require.Len(t, statements, 2)
	assert.Equal(t, "Query 01", statements[0].Label)
	assert.Equal(t, "SELECT 1;", statements[0].Text)
	assert.Equal(t, "Query 02", statements[1].Label)
	assert.Equal(t, "SELECT 2;", statements[1].Text)
}

func TestExtractSyntheticLabels(t *testing.T) {
	script := "SELECT 1;\nSELECT 2;\n"

	statements := Extract(script)
	require.Len(t, statements, 2)
	assert.Equal(t, "Statement 01", statements[0].Label)
	assert.Equal(t, "Statement 02", statements[1].Label)
}

func TestExtractMultilineStatement(t *testing.T) {
	script := "--query 05\nSELECT a\nFROM t\nWHERE a > 1;\n"

	statements := Extract(script)
	require.Len(t, statements, 1)
	assert.Equal(t, "Query 05", statements[0].Label)
	assert.Equal(t, "SELECT a\nFROM t\nWHERE a > 1;", statements[0].Text)
}

func TestExtractSkipsAlterSessionLine(t *testing.T) {
	script := "ALTER SESSION SET timezone = 'UTC';\nSELECT 1;\n"

	statements := Extract(script)
	require.Len(t, statements, 1)
	assert.Equal(t, "SELECT 1;", statements[0].Text)
}

func TestExtractDropsJoinedAlterSession(t *testing.T) {
	// The belt-and-suspenders check: ALTER SESSION split across lines
	// survives the line-level skip but is dropped once joined.
	script := "alter\nsession set x = 1;\nSELECT 1;\n"

	statements := Extract(script)
	require.Len(t, statements, 1)
	assert.Equal(t, "SELECT 1;", statements[0].Text)
}

func TestExtractCaseInsensitiveAlterSession(t *testing.T) {
	script := "Alter Session SET x = 1;\nSELECT 9;\n"

	statements := Extract(script)
	require.Len(t, statements, 1)
	assert.Equal(t, "SELECT 9;", statements[0].Text)
}

func TestExtractEmptyScript(t *testing.T) {
	assert.Empty(t, Extract(""))
	assert.Empty(t, Extract("-- only a comment\n"))
	assert.Empty(t, Extract("SELECT 1\nFROM t\n")) // never terminated
}

func TestExtractOrderAndSubsequence(t *testing.T) {
	script := strings.Join([]string{
		"--query 01",
		"SELECT 1;",
		"-- a stray comment",
		"ALTER SESSION SET x = 1;",
		"SELECT 2",
		"FROM t;",
		"--query 03",
		"SELECT 3;",
	}, "\n")

	statements := Extract(script)
	require.Len(t, statements, 3)

	// Statements come back in source order, and their concatenated
	// text is a subsequence of the original non-comment lines.
	var got []string
	for _, stmt := range statements {
		got = append(got, strings.Split(stmt.Text, "\n")...)
	}
	original := []string{"SELECT 1;", "SELECT 2", "FROM t;", "SELECT 3;"}
	assert.Equal(t, original, got)
}

func TestExtractLabelOnlyAppliesToNextStatement(t *testing.T) {
	script := "--query 01\nSELECT 1;\nSELECT 2;\n"

	statements := Extract(script)
	require.Len(t, statements, 2)
	assert.Equal(t, "Query 01", statements[0].Label)
	assert.Equal(t, "Statement 02", statements[1].Label)
}

func TestFilter(t *testing.T) {
	statements := []Statement{
		{Label: "Query 01", Text: "SELECT 1;"},
		{Label: "Query 02", Text: "SELECT 2;"},
		{Label: "Query 05", Text: "SELECT 5;"},
	}

	filtered := Filter(statements, []string{"01", "05"})
	require.Len(t, filtered, 2)
	assert.Equal(t, "Query 01", filtered[0].Label)
	assert.Equal(t, "Query 05", filtered[1].Label)
}

func TestFilterStringComparison(t *testing.T) {
	statements := []Statement{{Label: "Query 01", Text: "SELECT 1;"}}

	// "1" does not match "01": comparison is by string, not value.
	assert.Empty(t, Filter(statements, []string{"1"}))
}

func TestFilterNoNumbersPassesThrough(t *testing.T) {
	statements := []Statement{
		{Label: "Statement 01", Text: "SELECT 1;"},
		{Label: "Query 02", Text: "SELECT 2;"},
	}

	assert.Equal(t, statements, Filter(statements, nil))
}

func TestFilterDropsUnlabeledStatements(t *testing.T) {
	statements := []Statement{
		{Label: "Statement 01", Text: "SELECT 1;"},
		{Label: "Query", Text: "SELECT 2;"},
		{Label: "Query 02", Text: "SELECT 3;"},
	}

	filtered := Filter(statements, []string{"02"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "Query 02", filtered[0].Label)
}
