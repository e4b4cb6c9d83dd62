// Package sqlite provides a SQLite-backed failure index.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/baskuit/engine/internal/platform/storage/sqlitemigrate"
	"github.com/baskuit/engine/internal/storage"
	"github.com/baskuit/engine/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists failures in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.FailureStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite failure index and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordFailure inserts one failure.
func (s *Store) RecordFailure(ctx context.Context, f storage.Failure) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("failure id is required")
	}
	if strings.TrimSpace(f.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO failures (
		   id,
		   run_id,
		   seed_hex,
		   gen,
		   mode,
		   code,
		   message,
		   input_path,
		   pkmn_path,
		   showdown_path,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.RunID,
		f.SeedHex,
		f.Gen,
		f.Mode,
		f.Code,
		f.Message,
		f.InputPath,
		f.PkmnPath,
		f.ShowdownPath,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

const selectFailures = `SELECT id, run_id, seed_hex, gen, mode, code, message,
		        input_path, pkmn_path, showdown_path, created_at
		   FROM failures`

// ListFailures returns the most recent failures, newest first.
func (s *Store) ListFailures(ctx context.Context, limit int) ([]storage.Failure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectFailures+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	return scanFailures(rows)
}

// ListRunFailures returns every failure of one run in capture order.
func (s *Store) ListRunFailures(ctx context.Context, runID string) ([]storage.Failure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectFailures+` WHERE run_id = ? ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run failures: %w", err)
	}
	return scanFailures(rows)
}

func scanFailures(rows *sql.Rows) ([]storage.Failure, error) {
	defer rows.Close()
	var out []storage.Failure
	for rows.Next() {
		var (
			f         storage.Failure
			createdAt int64
		)
		if err := rows.Scan(
			&f.ID, &f.RunID, &f.SeedHex, &f.Gen, &f.Mode, &f.Code, &f.Message,
			&f.InputPath, &f.PkmnPath, &f.ShowdownPath, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.CreatedAt = fromMillis(createdAt)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
