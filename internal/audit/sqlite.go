package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite DSN parameters for the audit file.
const (
	busyTimeout = "5000"
	synchronous = "NORMAL"
	journalMode = "WAL"
)

// openSQLite opens the audit file. Writes go through a single connection
// with immediate transactions; reads get their own small pool.
func openSQLite(ctx context.Context, path string, write bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", buildDSN(path, write))
	if err != nil {
		return nil, fmt.Errorf("open audit sqlite: %w", err)
	}

	if write {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit sqlite: %w", err)
	}
	return db, nil
}

func buildDSN(path string, write bool) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeout)
	params.Set("_synchronous", synchronous)
	if write {
		params.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + params.Encode()
}
