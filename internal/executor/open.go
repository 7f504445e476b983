package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverDuckDB     = "duckdb"
	DriverPostgres   = "pgx"
	DriverClickHouse = "clickhouse"
	DriverSQLite     = "sqlite3"
)

// Open returns a pool for the analytics database. DuckDB files are opened
// read-only and PostgreSQL sessions default to read-only transactions.
func Open(driver, dsn string, maxOpenConns int) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverDuckDB:
		db, err = sql.Open(DriverDuckDB, duckDBDSN(dsn))
	case DriverPostgres:
		db, err = openPostgres(dsn)
	case DriverClickHouse:
		db, err = openClickHouse(dsn)
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return db, nil
}

// duckDBDSN adds access_mode=read_only to file databases. In-memory
// databases cannot be opened read-only.
func duckDBDSN(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	if path == "" || path == ":memory:" || strings.Contains(dsn, "access_mode=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&access_mode=read_only"
	}
	return dsn + "?access_mode=read_only"
}

func openPostgres(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	return stdlib.OpenDB(*cfg, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET default_transaction_read_only = on")
		return err
	})), nil
}

func openClickHouse(dsn string) (*sql.DB, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	return clickhouse.OpenDB(opts), nil
}
