// Package executor runs validated read-only statements against the analytics
// database and reduces their result to a single scalar.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"

	"metricgate/internal/domain"
)

// DefaultTimeout bounds a single statement when none is configured.
const DefaultTimeout = 10 * time.Second

// Executor runs statements on a database/sql pool with a per-call deadline.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Executor on db. A non-positive timeout uses DefaultTimeout.
func New(db *sql.DB, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		db:      db,
		timeout: timeout,
		logger:  logger.With("component", "executor"),
	}
}

// Scalar runs query and returns the first column of the first row as a
// float64. No rows or a NULL value yield 0. A statement that outlives the
// deadline fails with QueryTimeout; any other database failure with
// DatabaseExecutionFailed.
func (e *Executor) Scalar(ctx context.Context, query string) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	value, err := e.first(qctx, query)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded) {
			e.logger.Warn("query timed out", "timeout", e.timeout, "duration", duration)
			return 0, &domain.ExecutionError{Kind: domain.QueryTimeout, Err: fmt.Errorf("query exceeded %s timeout", e.timeout)}
		}
		e.logger.Error("query failed", "duration", duration, "error", err)
		return 0, &domain.ExecutionError{Kind: domain.DatabaseExecutionFailed, Err: err}
	}

	result, err := ToFloat(value)
	if err != nil {
		return 0, &domain.ExecutionError{Kind: domain.DatabaseExecutionFailed, Err: err}
	}
	e.logger.Debug("query completed", "duration", duration)
	return result, nil
}

func (e *Executor) first(ctx context.Context, query string) (any, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
	if len(cols) == 0 {
		return nil, errors.New("query returned no columns")
	}

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return dest[0], rows.Err()
}

// ToFloat converts a scanned driver value to float64. NULL converts to 0.
func ToFloat(v any) (float64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		if v == nil {
			return 0, nil
		}
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, nil
	case duckdb.Decimal:
		return v.Float64(), nil
	case []byte:
		return parseFloat(string(v))
	case string:
		return parseFloat(v)
	case interface{ Float64() (float64, bool) }:
		f, _ := v.Float64()
		return f, nil
	default:
		return parseFloat(fmt.Sprint(v))
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("result %q is not numeric", s)
	}
	return f, nil
}
