package catalog

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quackbench/quackbench/pkg/errors"
)

func newTestCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, "main", zerolog.Nop()), mock
}

func TestListTables(t *testing.T) {
	c, mock := newTestCatalog(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("contoso_sales_240k", "BASE TABLE").
			AddRow("contoso_stores", "BASE TABLE").
			AddRow("contoso_sales_24b", "VIEW"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "main"."contoso_sales_240k"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(240000))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "main"."contoso_stores"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(67))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM "main"."contoso_sales_24b" LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "main"."contoso_sales_24b"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(24000000000))

	listing, err := c.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, listing.Tables, 3)
	assert.Equal(t, int64(24000240067), listing.TotalRows)
}

func TestListTablesSkipsInaccessibleView(t *testing.T) {
	c, mock := newTestCatalog(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("contoso_stores", "BASE TABLE").
			AddRow("foreign_share", "VIEW"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "main"."contoso_stores"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(67))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM "main"."foreign_share" LIMIT 1`)).
		WillReturnError(errors.New("Catalog Error: view not found"))

	listing, err := c.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, listing.Tables, 1)
	assert.Equal(t, "contoso_stores", listing.Tables[0].Name)
	assert.Equal(t, int64(67), listing.TotalRows)
}

func TestListTablesRecordsCountFailure(t *testing.T) {
	c, mock := newTestCatalog(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("broken_tbl", "BASE TABLE"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "main"."broken_tbl"`)).
		WillReturnError(errors.New("IO Error: corrupt block"))

	listing, err := c.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, listing.Tables, 1)
	assert.Contains(t, listing.Tables[0].Err, "corrupt block")
	assert.Zero(t, listing.TotalRows)
}

func TestStorageUsage(t *testing.T) {
	c, mock := newTestCatalog(t)

	mock.ExpectQuery("FROM MD_INFORMATION_SCHEMA.STORAGE_INFO ").
		WillReturnRows(sqlmock.NewRows([]string{"database_name", "active_gb", "cloned_gb", "failsafe_gb"}).
			AddRow("contoso_benchmark", 120.5, 0.0, 12.25).
			AddRow(nil, 1.0, 0.5, 0.0))

	mock.ExpectQuery("FROM MD_INFORMATION_SCHEMA.STORAGE_INFO_HISTORY").
		WillReturnRows(sqlmock.NewRows([]string{"date", "total_gb"}).
			AddRow(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), 132.75))

	report, err := c.StorageUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Databases, 2)
	assert.Equal(t, "(unknown)", report.Databases[1].Name)
	assert.InDelta(t, 134.25, report.Totals.TotalGB, 0.001)
	assert.InDelta(t, 134.25*30, report.GBDays(), 0.001)
	assert.InDelta(t, 134.25*30*0.0025685, report.MonthlyCostUSD(), 0.0001)
	assert.True(t, report.HistoryAvailable)
	require.Len(t, report.History, 1)
}

func TestStorageUsageHistoryFailureSwallowed(t *testing.T) {
	c, mock := newTestCatalog(t)

	mock.ExpectQuery("FROM MD_INFORMATION_SCHEMA.STORAGE_INFO ").
		WillReturnRows(sqlmock.NewRows([]string{"database_name", "active_gb", "cloned_gb", "failsafe_gb"}).
			AddRow("contoso_benchmark", 10.0, 0.0, 0.0))
	mock.ExpectQuery("FROM MD_INFORMATION_SCHEMA.STORAGE_INFO_HISTORY").
		WillReturnError(errors.New("permission denied"))

	report, err := c.StorageUsage(context.Background())
	require.NoError(t, err)
	assert.False(t, report.HistoryAvailable)
	assert.Nil(t, report.History)
}

func TestStorageUsageUnavailable(t *testing.T) {
	c, mock := newTestCatalog(t)

	mock.ExpectQuery("FROM MD_INFORMATION_SCHEMA.STORAGE_INFO ").
		WillReturnError(errors.New("Catalog Error: Table with name STORAGE_INFO does not exist"))

	_, err := c.StorageUsage(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerrors.ErrNoStorageInfo))
	assert.Equal(t, qerrors.CodeStorageUnavailable, qerrors.GetCode(err))
}

func TestWriteTablesOutput(t *testing.T) {
	listing := &TableListing{
		Schema: "main",
		Tables: []TableInfo{
			{Name: "contoso_stores", Type: "BASE TABLE", RowCount: 67},
			{Name: "contoso_sales_240k", Type: "BASE TABLE", RowCount: 240000},
		},
		TotalRows: 240067,
	}

	var buf bytes.Buffer
	listing.WriteTables(&buf)
	out := buf.String()
	assert.Contains(t, out, "240,000")
	assert.Contains(t, out, "Total rows: 240,067")
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "999", formatCount(999))
	assert.Equal(t, "1,000", formatCount(1000))
	assert.Equal(t, "24,000,000,000", formatCount(24000000000))
}
