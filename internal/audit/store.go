// Package audit persists one row per gateway request in a local SQLite file.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"metricgate/internal/domain"
)

// DefaultListLimit caps ListRecent when the caller passes no limit.
const DefaultListLimit = 50

// Store is the SQLite-backed audit log.
type Store struct {
	write  *sql.DB
	read   *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the audit file at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	logger = logger.With("component", "audit")

	write, err := openSQLite(ctx, path, true)
	if err != nil {
		return nil, err
	}
	applied, err := RunMigrations(ctx, write)
	if err != nil {
		_ = write.Close()
		return nil, err
	}
	if applied > 0 {
		logger.Info("audit migrations applied", "count", applied, "path", path)
	}

	read, err := openSQLite(ctx, path, false)
	if err != nil {
		_ = write.Close()
		return nil, err
	}

	return &Store{write: write, read: read, logger: logger, now: time.Now}, nil
}

// Record inserts e. A zero CreatedAt is set to the current time.
func (s *Store) Record(ctx context.Context, e domain.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.write.ExecContext(ctx, `
		INSERT INTO audit_log (request_id, principal, metric, version, time_range,
			outcome, error_kind, sql_text, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Principal, e.Metric, e.Version, e.TimeRange,
		e.Outcome, e.ErrorKind, e.SQL, e.DurationMs, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.read.QueryContext(ctx, `
		SELECT id, request_id, principal, metric, version, time_range,
			outcome, error_kind, sql_text, duration_ms, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Principal, &e.Metric, &e.Version,
			&e.TimeRange, &e.Outcome, &e.ErrorKind, &e.SQL, &e.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes both pools.
func (s *Store) Close() error {
	rerr := s.read.Close()
	if err := s.write.Close(); err != nil {
		return err
	}
	return rerr
}
