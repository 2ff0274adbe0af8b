package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quackbench/quackbench/pkg/errors"
)

// storageRatePerGBDay is MotherDuck's published storage price.
const storageRatePerGBDay = 0.0025685

// DatabaseStorage is one database's storage breakdown in gigabytes.
type DatabaseStorage struct {
	Name       string
	ActiveGB   float64
	ClonedGB   float64
	FailsafeGB float64
	TotalGB    float64
}

// StorageDay is one day of aggregate storage history.
type StorageDay struct {
	Date    time.Time
	TotalGB float64
}

// StorageReport aggregates storage usage across all databases.
type StorageReport struct {
	Databases []DatabaseStorage
	Totals    DatabaseStorage

	// History holds up to seven days of aggregate usage. It stays nil
	// when the history view is not accessible.
	History          []StorageDay
	HistoryAvailable bool
}

// GBDays estimates the GB-days consumed over a 30-day month.
func (r *StorageReport) GBDays() float64 {
	return r.Totals.TotalGB * 30
}

// MonthlyCostUSD estimates the monthly storage bill.
func (r *StorageReport) MonthlyCostUSD() float64 {
	return r.GBDays() * storageRatePerGBDay
}

const storageQuery = "SELECT database_name, " +
	"COALESCE(active_bytes, 0) / (1024.0 * 1024.0 * 1024.0), " +
	"COALESCE(kept_for_cloned_bytes, 0) / (1024.0 * 1024.0 * 1024.0), " +
	"COALESCE(failsafe_bytes, 0) / (1024.0 * 1024.0 * 1024.0) " +
	"FROM MD_INFORMATION_SCHEMA.STORAGE_INFO " +
	"ORDER BY (COALESCE(active_bytes, 0) + COALESCE(failsafe_bytes, 0) + COALESCE(kept_for_cloned_bytes, 0)) DESC"

const storageHistoryQuery = "SELECT DATE(result_ts), SUM(total_bytes) / (1024.0 * 1024.0 * 1024.0) " +
	"FROM MD_INFORMATION_SCHEMA.STORAGE_INFO_HISTORY " +
	"WHERE result_ts >= CURRENT_DATE - INTERVAL 7 DAY " +
	"GROUP BY DATE(result_ts) ORDER BY DATE(result_ts) DESC LIMIT 7"

// StorageUsage reads the per-database storage breakdown. The history
// view requires extra privileges, so its failure only disables the
// history section.
func (c *Catalog) StorageUsage(ctx context.Context) (*StorageReport, error) {
	rows, err := c.db.QueryContext(ctx, storageQuery)
	if err != nil {
		if strings.Contains(err.Error(), "STORAGE_INFO does not exist") {
			return nil, errors.Wrap(errors.ErrNoStorageInfo, errors.CodeStorageUnavailable,
				"storage information requires organization admin privileges and a MotherDuck connection")
		}
		return nil, errors.Wrap(err, errors.CodeStorageUnavailable, "failed to read storage info")
	}
	defer rows.Close()

	report := &StorageReport{}
	for rows.Next() {
		var db DatabaseStorage
		var name sql.NullString
		if err := rows.Scan(&name, &db.ActiveGB, &db.ClonedGB, &db.FailsafeGB); err != nil {
			return nil, errors.Wrap(err, errors.CodeStorageUnavailable, "failed to scan storage row")
		}
		db.Name = name.String
		if db.Name == "" {
			db.Name = "(unknown)"
		}
		db.TotalGB = db.ActiveGB + db.ClonedGB + db.FailsafeGB

		report.Databases = append(report.Databases, db)
		report.Totals.ActiveGB += db.ActiveGB
		report.Totals.ClonedGB += db.ClonedGB
		report.Totals.FailsafeGB += db.FailsafeGB
		report.Totals.TotalGB += db.TotalGB
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageUnavailable, "failed to read storage info")
	}

	c.loadHistory(ctx, report)
	return report, nil
}

func (c *Catalog) loadHistory(ctx context.Context, report *StorageReport) {
	rows, err := c.db.QueryContext(ctx, storageHistoryQuery)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Storage history not accessible")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var day StorageDay
		if err := rows.Scan(&day.Date, &day.TotalGB); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to scan storage history row")
			return
		}
		report.History = append(report.History, day)
	}
	if err := rows.Err(); err != nil {
		c.logger.Debug().Err(err).Msg("Storage history read failed")
		return
	}
	report.HistoryAvailable = true
}

// WriteStorage renders the storage report for the console.
func (r *StorageReport) WriteStorage(w io.Writer) {
	if len(r.Databases) == 0 {
		fmt.Fprintln(w, "No storage information available.")
		return
	}

	fmt.Fprintf(w, "%-25s %11s %11s %11s %11s\n", "DATABASE", "ACTIVE GB", "CLONED GB", "FAILSAFE GB", "TOTAL GB")
	fmt.Fprintln(w, strings.Repeat("-", 73))
	for _, db := range r.Databases {
		fmt.Fprintf(w, "%-25s %11.3f %11.3f %11.3f %11.3f\n",
			truncate(db.Name, 24), db.ActiveGB, db.ClonedGB, db.FailsafeGB, db.TotalGB)
	}
	fmt.Fprintln(w, strings.Repeat("-", 73))
	fmt.Fprintf(w, "%-25s %11.3f %11.3f %11.3f %11.3f\n",
		"TOTAL", r.Totals.ActiveGB, r.Totals.ClonedGB, r.Totals.FailsafeGB, r.Totals.TotalGB)

	fmt.Fprintf(w, "\nEstimated monthly cost: $%.2f (%.1f GB-days at $%.7f/GB-day)\n",
		r.MonthlyCostUSD(), r.GBDays(), storageRatePerGBDay)

	fmt.Fprintln(w, "\nStorage history (last 7 days):")
	if !r.HistoryAvailable {
		fmt.Fprintln(w, "  not accessible (may require admin privileges)")
		return
	}
	if len(r.History) == 0 {
		fmt.Fprintln(w, "  no historical data available")
		return
	}
	for _, day := range r.History {
		fmt.Fprintf(w, "  %s %11.3f GB\n", day.Date.Format("2006-01-02"), day.TotalGB)
	}
}
