package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quackbench/quackbench/pkg/benchmark"
	"github.com/quackbench/quackbench/pkg/catalog"
	"github.com/quackbench/quackbench/pkg/errors"
	"github.com/quackbench/quackbench/pkg/infrastructure"
	"github.com/quackbench/quackbench/pkg/loader"
	"github.com/quackbench/quackbench/pkg/metrics"
	"github.com/quackbench/quackbench/pkg/scale"
	"github.com/quackbench/quackbench/pkg/sqlscript"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openSession resolves the token and connects. Callers own the close.
func openSession(ctx context.Context) (*infrastructure.Session, error) {
	if err := cfg.ResolveToken(); err != nil {
		return nil, err
	}
	return infrastructure.Open(ctx, cfg, log.Logger)
}

func newInitCmd() *cobra.Command {
	var samplesDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Load the Contoso sample files into MotherDuck",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			if samplesDir == "" {
				samplesDir = cfg.SamplesDir
			}
			if samplesDir == "" {
				samplesDir = "SampleFiles"
			}
			return loader.New(session.DB(), session.Schema(), samplesDir, log.Logger).Load(ctx)
		},
	}
	cmd.Flags().StringVar(&samplesDir, "samples-dir", "", "Directory holding the parquet sample files")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		file    string
		queries []string
		opts    benchmark.Options
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run benchmark statements from a SQL script",
		Long: `Runs every labeled statement from the script in order, or only the
statements named by --queries (matched against the numeric suffix of
their "--query N" labels).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if file == "" {
				file = cfg.QueryFile
			}
			if file == "" {
				file = "query_list.sql"
			}
			text, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrapf(err, errors.CodeConfigInvalid, "cannot read script %s", file)
			}

			statements := sqlscript.Extract(string(text))
			if len(statements) == 0 {
				return errors.ErrEmptyScript
			}
			statements = sqlscript.Filter(statements, queries)
			if len(statements) == 0 {
				return errors.Newf(errors.CodeScriptInvalid, "no statements match %v", queries)
			}

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			started := time.Now()
			runner := benchmark.NewRunner(session.DB(), log.Logger, nil, opts)
			results, runErr := runner.Run(ctx, statements)

			if len(results) > 0 {
				report := benchmark.NewReport(started, results)
				if err := writeReport(report, format, output); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "SQL script to run")
	cmd.Flags().StringSliceVarP(&queries, "queries", "q", nil, "Numeric query labels to run (e.g. 01,05)")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "Wrap statements in EXPLAIN ANALYZE and report server time")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print analyzed plans")
	cmd.Flags().BoolVar(&opts.Profile, "profile", false, "Capture memory and spill metrics per statement")
	cmd.Flags().IntVar(&opts.PreviewRows, "preview-rows", 5, "Result rows to display per statement")
	cmd.Flags().StringVar(&format, "format", "table", "Report format: table, json, or arrow")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func writeReport(report *benchmark.Report, format, output string) error {
	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return errors.Wrap(err, errors.CodeConfigInvalid, "cannot create report file")
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "table":
		return report.WriteTable(w)
	case "json":
		return report.WriteJSON(w)
	case "arrow":
		return report.WriteArrow(w)
	default:
		return errors.Newf(errors.CodeConfigInvalid, "unknown report format %q", format)
	}
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables and views with row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			listing, err := catalog.New(session.DB(), session.Schema(), log.Logger).ListTables(ctx)
			if err != nil {
				return err
			}
			listing.WriteTables(os.Stdout)
			return nil
		},
	}
}

func newStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show per-database storage usage and estimated cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			report, err := catalog.New(session.DB(), session.Schema(), log.Logger).StorageUsage(ctx)
			if err != nil {
				if errors.Is(err, errors.ErrNoStorageInfo) {
					fmt.Println("Storage information is not available. It requires organization")
					fmt.Println("admin privileges, a MotherDuck Business plan or higher, and a")
					fmt.Println("MotherDuck connection (not local DuckDB).")
					return nil
				}
				return err
			}
			report.WriteStorage(os.Stdout)
			return nil
		},
	}
}

func newScaleCmd() *cobra.Command {
	var (
		factor   int64
		strategy string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Multiply the scaled table in place by an integer factor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			m := scale.NewMultiplier(session.DB(), session.Schema(),
				cfg.Scale.TargetTable, cfg.Scale.View, log.Logger)
			m.Confirm = confirm
			m.Yes = yes

			final, err := m.ScaleBy(ctx, factor, scale.Strategy(strategy))
			if err != nil {
				return err
			}
			fmt.Printf("Final row count: %d\n", final)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&factor, "multiplier", "m", 10, "Replication factor")
	cmd.Flags().StringVar(&strategy, "strategy", string(scale.StrategyCrossJoin),
		"Replication strategy: cross-join or union")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompts")
	return cmd
}

func newScaleToCmd() *cobra.Command {
	var metricsEnabled bool
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "scale-to",
		Short: "Grow the scaled table to an exact row count",
		Long: `Grows the scaled table to an exact target in unit-sized batches with
cooldown pauses: round up to a unit boundary, insert a reusable
unit-sized multiplier table once per remaining chunk, then close the
final gap with whole base-table copies plus a row-limited slice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			var collector metrics.Collector = metrics.NewNoOpCollector()
			if metricsEnabled || cfg.Metrics.Enabled {
				addr := metricsAddr
				if addr == "" {
					addr = cfg.Metrics.Address
				}
				if addr == "" {
					addr = ":9090"
				}
				prom := metrics.NewPrometheusCollector("quackbench")
				server := metrics.NewServer(addr, prom, log.Logger)
				server.Start()
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := server.Shutdown(shutdownCtx); err != nil {
						log.Warn().Err(err).Msg("Metrics server shutdown failed")
					}
				}()
				collector = prom
			}

			scaler := scale.NewScaler(session.DB(), session.Schema(), cfg.Scale, log.Logger, collector)
			scaler.Confirm = confirm
			return scaler.Run(ctx)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&cfg.Scale.TargetRows, "target", 24_000_000_000, "Exact target row count")
	f.Int64Var(&cfg.Scale.Unit, "unit", 1_000_000_000, "Rows per bulk insert batch")
	f.DurationVar(&cfg.Scale.Cooldown, "cooldown", 15*time.Second, "Pause between bulk batches")
	f.StringVar(&cfg.Scale.BaseTable, "base-table", "contoso_sales_240k", "Base table replicated into batches")
	f.StringVar(&cfg.Scale.TargetTable, "target-table", "contoso_sales_24b_scaled", "Table grown to the target")
	f.StringVar(&cfg.Scale.View, "view", "contoso_sales_24b", "Pointer view repointed after scaling")
	f.StringVar(&cfg.Scale.MultiplierTable, "multiplier-table", "temp_1b", "Reusable unit-sized table")
	f.BoolVarP(&cfg.Scale.Yes, "yes", "y", false, "Skip confirmation prompts")
	f.BoolVar(&metricsEnabled, "metrics", false, "Expose Prometheus progress metrics")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address (default :9090)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Inspect the configured MotherDuck token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ResolveToken(); err != nil {
				return err
			}
			info, err := infrastructure.InspectToken(cfg.Token)
			if err != nil {
				return err
			}

			fmt.Printf("Subject:  %s\n", info.Subject)
			fmt.Printf("Issuer:   %s\n", info.Issuer)
			if !info.IssuedAt.IsZero() {
				fmt.Printf("Issued:   %s\n", info.IssuedAt.Format(time.RFC3339))
			}
			if !info.ExpiresAt.IsZero() {
				fmt.Printf("Expires:  %s\n", info.ExpiresAt.Format(time.RFC3339))
				if info.Expired(time.Now()) {
					fmt.Println("Status:   EXPIRED")
				} else {
					fmt.Println("Status:   valid")
				}
			} else {
				fmt.Println("Expires:  never")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quackbench %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
