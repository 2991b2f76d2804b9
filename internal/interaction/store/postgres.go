package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"kindmesh/internal/interaction"
	"kindmesh/internal/storage/postgres"
)

// Postgres persists the ledger in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, entry interaction.Interaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, logged_by, recipient_key, type, notes, logged_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		entry.ID, entry.LoggedBy, entry.RecipientKey, entry.ResourceType,
		entry.Notes, entry.LoggedAt,
	)
	if err != nil {
		return postgres.Fail("append interaction", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, limit int, recipientKey string) ([]interaction.Interaction, error) {
	var (
		conditions []string
		args       []any
	)
	if recipientKey != "" {
		args = append(args, recipientKey)
		conditions = append(conditions, fmt.Sprintf("recipient_key = $%d", len(args)))
	}
	query := `
		SELECT id, logged_by, recipient_key, type, COALESCE(notes, ''), logged_at
		FROM interactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY logged_at DESC, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.Fail("list interactions", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Postgres) ExportAll(ctx context.Context) ([]interaction.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, logged_by, recipient_key, type, COALESCE(notes, ''), logged_at
		FROM interactions ORDER BY logged_at, id`)
	if err != nil {
		return nil, postgres.Fail("export interactions", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM interactions`).Scan(&count); err != nil {
		return 0, postgres.Fail("count interactions", err)
	}
	return count, nil
}

func (s *Postgres) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, count(*) FROM interactions GROUP BY type`)
	if err != nil {
		return nil, postgres.Fail("count interactions by type", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			resourceType string
			count        int
		)
		if err := rows.Scan(&resourceType, &count); err != nil {
			return nil, postgres.Fail("scan interaction count", err)
		}
		counts[resourceType] = count
	}
	return counts, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]interaction.Interaction, error) {
	var entries []interaction.Interaction
	for rows.Next() {
		var entry interaction.Interaction
		if err := rows.Scan(&entry.ID, &entry.LoggedBy, &entry.RecipientKey,
			&entry.ResourceType, &entry.Notes, &entry.LoggedAt); err != nil {
			return nil, postgres.Fail("scan interaction", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
