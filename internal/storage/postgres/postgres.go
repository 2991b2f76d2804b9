// Package postgres owns the shared database handle and schema for the
// PostgreSQL-backed stores.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kindmesh/pkg/platform/sentinel"
)

// Open connects to PostgreSQL and verifies the connection. Connectivity
// failures surface as sentinel.ErrUnavailable so callers can translate
// them without leaking driver error text.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", sentinel.ErrUnavailable)
	}
	return db, nil
}
