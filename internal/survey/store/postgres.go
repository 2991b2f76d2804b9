package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kindmesh/internal/storage/postgres"
	"kindmesh/internal/survey"
	"kindmesh/pkg/platform/sentinel"
)

// PostgresCatalog persists survey definitions with the section
// structure as a JSONB document, keeping section and question order.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (s *PostgresCatalog) Create(ctx context.Context, entry survey.Survey) error {
	sections, err := json.Marshal(entry.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO surveys (id, name, description, sections, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		entry.ID, entry.Name, entry.Description, sections, entry.CreatedBy, entry.CreatedAt,
	)
	if err != nil {
		return postgres.Fail("create survey", err)
	}
	return nil
}

func (s *PostgresCatalog) Update(ctx context.Context, entry survey.Survey) error {
	sections, err := json.Marshal(entry.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE surveys SET name = $2, description = $3, sections = $4, updated_at = $5
		WHERE id = $1`,
		entry.ID, entry.Name, entry.Description, sections, entry.UpdatedAt,
	)
	if err != nil {
		return postgres.Fail("update survey", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return postgres.Fail("update survey", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCatalog) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM surveys WHERE id = $1`, id)
	if err != nil {
		return false, postgres.Fail("delete survey", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, postgres.Fail("delete survey", err)
	}
	return affected > 0, nil
}

func (s *PostgresCatalog) Get(ctx context.Context, id uuid.UUID) (survey.Survey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), sections, COALESCE(created_by, ''),
		       created_at, updated_at
		FROM surveys WHERE id = $1`, id)
	entry, err := scanSurvey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return survey.Survey{}, sentinel.ErrNotFound
	}
	if err != nil {
		return survey.Survey{}, postgres.Fail("get survey", err)
	}
	return entry, nil
}

func (s *PostgresCatalog) List(ctx context.Context) ([]survey.Survey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), sections, COALESCE(created_by, ''),
		       created_at, updated_at
		FROM surveys ORDER BY created_at, name`)
	if err != nil {
		return nil, postgres.Fail("list surveys", err)
	}
	defer rows.Close()

	var entries []survey.Survey
	for rows.Next() {
		entry, err := scanSurvey(rows)
		if err != nil {
			return nil, postgres.Fail("scan survey", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (survey.Survey, error) {
	var (
		entry    survey.Survey
		sections []byte
	)
	if err := row.Scan(&entry.ID, &entry.Name, &entry.Description, &sections,
		&entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return survey.Survey{}, err
	}
	if err := json.Unmarshal(sections, &entry.Sections); err != nil {
		return survey.Survey{}, fmt.Errorf("decode sections: %w", err)
	}
	return entry, nil
}

// PostgresResponses persists response documents; the upsert is a
// single INSERT .. ON CONFLICT keyed by (recipient_key, section).
type PostgresResponses struct {
	db *sql.DB
}

func NewPostgresResponses(db *sql.DB) *PostgresResponses {
	return &PostgresResponses{db: db}
}

func (s *PostgresResponses) Upsert(ctx context.Context, response survey.Response) (survey.Response, error) {
	answers, err := json.Marshal(response.Answers)
	if err != nil {
		return survey.Response{}, fmt.Errorf("encode answers: %w", err)
	}
	var surveyID any
	if response.SurveyID != uuid.Nil {
		surveyID = response.SurveyID
	}

	stored := response
	var storedID uuid.NullUUID
	var updatedAt sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO survey_responses (recipient_key, section, answers, survey_id, submitted_by, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())
		ON CONFLICT (recipient_key, section) DO UPDATE
		SET answers = $3, survey_id = $4, submitted_by = NULLIF($5, ''), updated_at = now()
		RETURNING survey_id, COALESCE(submitted_by, ''), created_at, updated_at`,
		response.RecipientKey, response.Section, answers, surveyID, response.SubmittedBy,
	).Scan(&storedID, &stored.SubmittedBy, &stored.CreatedAt, &updatedAt)
	if err != nil {
		return survey.Response{}, postgres.Fail("upsert response", err)
	}
	if storedID.Valid {
		stored.SurveyID = storedID.UUID
	}
	if updatedAt.Valid {
		stored.UpdatedAt = updatedAt.Time
	}
	return stored, nil
}

func (s *PostgresResponses) List(ctx context.Context, recipientKey, section string) ([]survey.Response, error) {
	query := `
		SELECT recipient_key, section, answers, survey_id, COALESCE(submitted_by, ''),
		       created_at, updated_at
		FROM survey_responses WHERE recipient_key = $1`
	args := []any{recipientKey}
	if section != "" {
		query += " AND section = $2"
		args = append(args, section)
	}
	query += " ORDER BY section"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.Fail("list responses", err)
	}
	defer rows.Close()

	var responses []survey.Response
	for rows.Next() {
		var (
			response  survey.Response
			answers   []byte
			surveyID  uuid.NullUUID
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&response.RecipientKey, &response.Section, &answers,
			&surveyID, &response.SubmittedBy, &response.CreatedAt, &updatedAt); err != nil {
			return nil, postgres.Fail("scan response", err)
		}
		if err := json.Unmarshal(answers, &response.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		if surveyID.Valid {
			response.SurveyID = surveyID.UUID
		}
		if updatedAt.Valid {
			response.UpdatedAt = updatedAt.Time
		}
		responses = append(responses, response)
	}
	return responses, rows.Err()
}
