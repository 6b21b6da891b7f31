package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"storefront/internal/config"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

// NewPostgres opens the shared connection pool. The pool is handed to every
// repository explicitly; there is no package-level handle.
func NewPostgres(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Health pings the pool and reports its counters. "status" is "up" or
// "down"; "pool" flags saturation so /health can be alerted on.
func Health(ctx context.Context, db *sql.DB) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}

	st := db.Stats()
	report := map[string]string{
		"status":         "up",
		"pool":           "ok",
		"connections":    strconv.Itoa(st.OpenConnections),
		"in_use":         strconv.Itoa(st.InUse),
		"idle":           strconv.Itoa(st.Idle),
		"max_open":       strconv.Itoa(st.MaxOpenConnections),
		"waits":          strconv.FormatInt(st.WaitCount, 10),
		"waited":         st.WaitDuration.String(),
		"closed_idle":    strconv.FormatInt(st.MaxIdleClosed, 10),
		"closed_expired": strconv.FormatInt(st.MaxLifetimeClosed, 10),
	}
	switch {
	case st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections:
		report["pool"] = "saturated"
	case st.WaitCount > 0 && st.WaitDuration > time.Second:
		report["pool"] = "contended"
	}
	return report
}
