package audit

import (
	"context"
	"database/sql"

	"kindmesh/internal/storage/postgres"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor, subject, action, reason, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Actor, event.Subject, event.Action, event.Reason,
		event.RequestID, event.Timestamp,
	)
	if err != nil {
		return postgres.Fail("append audit event", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, subject string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(actor, ''), COALESCE(subject, ''), action,
		       COALESCE(reason, ''), COALESCE(request_id, ''), occurred_at
		FROM audit_events WHERE subject = $1 ORDER BY occurred_at`, subject)
	if err != nil {
		return nil, postgres.Fail("list audit events", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.Actor, &event.Subject, &event.Action,
			&event.Reason, &event.RequestID, &event.Timestamp); err != nil {
			return nil, postgres.Fail("scan audit event", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
