package store

import (
	"context"
	"database/sql"
	"errors"

	"kindmesh/internal/recipient"
	"kindmesh/internal/storage/postgres"
	"kindmesh/pkg/platform/sentinel"
)

// Postgres persists recipients in PostgreSQL. The merge is a single
// INSERT .. ON CONFLICT so concurrent first-touches of the same key
// converge on one row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateOrTouch(ctx context.Context, key, pseudonym string) (recipient.Recipient, bool, error) {
	var (
		entry   recipient.Recipient
		created bool
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO recipients (key, pseudonym, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET pseudonym = COALESCE(NULLIF($2, ''), recipients.pseudonym)
		RETURNING key, COALESCE(pseudonym, ''), created_at, (xmax = 0)`,
		key, pseudonym,
	).Scan(&entry.Key, &entry.Pseudonym, &entry.CreatedAt, &created)
	if err != nil {
		return recipient.Recipient{}, false, postgres.Fail("merge recipient", err)
	}
	return entry, created, nil
}

func (s *Postgres) Get(ctx context.Context, key string) (recipient.Recipient, error) {
	var entry recipient.Recipient
	err := s.db.QueryRowContext(ctx, `
		SELECT key, COALESCE(pseudonym, ''), created_at
		FROM recipients WHERE key = $1`, key,
	).Scan(&entry.Key, &entry.Pseudonym, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recipient.Recipient{}, sentinel.ErrNotFound
	}
	if err != nil {
		return recipient.Recipient{}, postgres.Fail("get recipient", err)
	}
	return entry, nil
}

func (s *Postgres) List(ctx context.Context) ([]recipient.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, COALESCE(pseudonym, ''), created_at
		FROM recipients ORDER BY key`)
	if err != nil {
		return nil, postgres.Fail("list recipients", err)
	}
	defer rows.Close()

	var entries []recipient.Recipient
	for rows.Next() {
		var entry recipient.Recipient
		if err := rows.Scan(&entry.Key, &entry.Pseudonym, &entry.CreatedAt); err != nil {
			return nil, postgres.Fail("scan recipient", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Postgres) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM recipients ORDER BY key`)
	if err != nil {
		return nil, postgres.Fail("list recipient keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, postgres.Fail("scan recipient key", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM recipients`).Scan(&count); err != nil {
		return 0, postgres.Fail("count recipients", err)
	}
	return count, nil
}
