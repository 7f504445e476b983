package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var demoSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (user_id INTEGER, user_city VARCHAR, email VARCHAR)`,
	`CREATE TABLE IF NOT EXISTS orders (
	order_id         INTEGER,
	user_id          INTEGER,
	amount           DOUBLE,
	refund_amount    DOUBLE,
	status           VARCHAR,
	order_date       DATE,
	region           VARCHAR,
	product          VARCHAR,
	refund_status    VARCHAR,
	internal_account BOOLEAN
	)`,
}

type demoOrder struct {
	daysAgo int
	userID  int
	amount  float64
	refund  float64
	status  string
	region  string
	product string
}

var demoOrders = []demoOrder{
	{3, 1, 120, 0, "COMPLETED", "EU", "widget"},
	{9, 2, 80, 5, "COMPLETED", "US", "gadget"},
	{18, 3, 45, 0, "CANCELLED", "APAC", "widget"},
	{35, 1, 200, 20, "COMPLETED", "EU", "gizmo"},
	{41, 2, 60, 0, "COMPLETED", "US", "widget"},
	{52, 3, 95, 0, "COMPLETED", "APAC", "gadget"},
	{70, 1, 150, 0, "REFUNDED", "EU", "gizmo"},
	{88, 2, 30, 0, "COMPLETED", "US", "widget"},
	{101, 3, 75, 10, "COMPLETED", "APAC", "gadget"},
	{130, 1, 110, 0, "COMPLETED", "EU", "widget"},
	{160, 2, 65, 0, "COMPLETED", "US", "gizmo"},
}

// seedDemoWarehouse fills an empty in-memory DuckDB with a small dataset
// dated relative to today, so every catalog metric has rows in each time
// range. It is a no-op when orders already has rows.
func seedDemoWarehouse(ctx context.Context, db *sql.DB) error {
	for _, stmt := range demoSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create demo schema: %w", err)
		}
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return fmt.Errorf("count demo orders: %w", err)
	}
	if n > 0 {
		return nil
	}

	users := []struct {
		id          int
		city, email string
	}{
		{1, "Berlin", "ana@example.com"},
		{2, "Austin", "ben@example.com"},
		{3, "Osaka", "chie@example.com"},
	}
	for _, u := range users {
		if _, err := db.ExecContext(ctx, `INSERT INTO users VALUES (?, ?, ?)`, u.id, u.city, u.email); err != nil {
			return fmt.Errorf("insert demo user %d: %w", u.id, err)
		}
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i, o := range demoOrders {
		refundStatus := "NONE"
		if o.refund > 0 {
			refundStatus = "PARTIAL"
		}
		_, err := db.ExecContext(ctx, `INSERT INTO orders VALUES (?, ?, ?, ?, ?, CAST(? AS DATE), ?, ?, ?, ?)`,
			i+1, o.userID, o.amount, o.refund, o.status,
			today.AddDate(0, 0, -o.daysAgo).Format("2006-01-02"),
			o.region, o.product, refundStatus, false)
		if err != nil {
			return fmt.Errorf("insert demo order %d: %w", i+1, err)
		}
	}
	return nil
}
