// Package infrastructure provides the MotherDuck connection layer:
// DSN assembly, identifier quoting, token inspection, and the single
// sequential session every command runs on.
package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/quackbench/quackbench/pkg/config"
	"github.com/quackbench/quackbench/pkg/errors"
)

// Session is a single connection to MotherDuck. The toolkit is
// strictly sequential: one statement in flight at a time, so the
// underlying pool is capped at one open connection.
type Session struct {
	db     *sql.DB
	schema string
	logger zerolog.Logger
}

// Open connects to MotherDuck, creates the configured database and
// schema if absent, and switches the session to them. The temp and
// extension directories are created on the local filesystem first so
// the engine can spill immediately.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Session, error) {
	for _, dir := range []string{cfg.TempDirectory, cfg.ExtensionDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, errors.CodeConfigInvalid, "cannot create directory %s", dir)
		}
	}

	dsn := BuildDSN("", Settings{
		Token:              cfg.Token,
		Threads:            cfg.Threads,
		MaxMemoryMB:        cfg.MaxMemoryMB,
		TempDirectory:      cfg.TempDirectory,
		ExtensionDirectory: cfg.ExtensionDirectory,
	})

	logger.Info().
		Str("dsn", MaskDSN(dsn)).
		Int("threads", cfg.Threads).
		Int("max_memory_mb", cfg.MaxMemoryMB).
		Msg("Connecting to MotherDuck")

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to open MotherDuck connection")
	}
	db.SetMaxOpenConns(1)

	// Transient network errors at startup are retried; anything still
	// failing after the window is a fatal connection error.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, policy); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to connect to MotherDuck")
	}

	s := &Session{db: db, schema: cfg.Schema, logger: logger}
	if err := s.useDatabase(ctx, cfg.Database); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx, cfg.Schema); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().
		Str("database", cfg.Database).
		Str("schema", cfg.Schema).
		Msg("Session ready")

	return s, nil
}

// DB exposes the underlying connection for components issuing SQL.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Schema returns the schema the session was opened against.
func (s *Session) Schema() string {
	return s.schema
}

// Close closes the session.
func (s *Session) Close() error {
	return s.db.Close()
}

func (s *Session) useDatabase(ctx context.Context, database string) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", QuoteIdent(database)),
		fmt.Sprintf("USE %s", QuoteIdent(database)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, errors.CodeConnectionFailed, "failed to select database %s", database)
		}
	}
	return nil
}

func (s *Session) ensureSchema(ctx context.Context, schema string) error {
	stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdent(schema))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, errors.CodeConnectionFailed, "failed to create schema %s", schema)
	}
	return nil
}

// Version returns the engine version string.
func (s *Session) Version(ctx context.Context) (string, error) {
	var version string
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", errors.Wrap(err, errors.CodeQueryFailed, "failed to read engine version")
	}
	return version, nil
}
