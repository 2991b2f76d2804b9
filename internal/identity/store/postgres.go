package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kindmesh/internal/identity"
	"kindmesh/internal/storage/postgres"
	"kindmesh/pkg/platform/sentinel"
)

// firstAdminLock serializes first-admin election across concurrent
// user creations. Advisory locks are transaction-scoped, so the lock
// releases on commit or rollback.
const firstAdminLock = int64(0x6b6d5f7573657273) // "km_users"

const pgUniqueViolation = "23505"

// Postgres persists the identity graph in PostgreSQL. All domain
// decisions that must be atomic run inside single transactions here.
type Postgres struct {
	db   *sql.DB
	seed string
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB, seed string) *Postgres {
	return &Postgres{db: db, seed: seed}
}

func (s *Postgres) CreateClaimingFirstAdmin(ctx context.Context, user identity.User) (identity.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return identity.User{}, postgres.Fail("begin create user", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, firstAdminLock); err != nil {
		return identity.User{}, postgres.Fail("acquire first-admin lock", err)
	}

	// Greeters are provisioning-only: they neither claim the first-admin
	// slot nor close the election, and the seed account is excluded on
	// both sides.
	if user.Username != s.seed && user.Role == identity.RoleFriend {
		var members int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE username <> $1 AND role <> $2`,
			s.seed, string(identity.RoleGreeter),
		).Scan(&members)
		if err != nil {
			return identity.User{}, postgres.Fail("count member users", err)
		}
		if members == 0 {
			user.Role = identity.RoleAdmin
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, created_at, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		user.Username, user.PasswordHash, string(user.Role), user.CreatedAt, user.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return identity.User{}, sentinel.ErrConflict
		}
		return identity.User{}, postgres.Fail("insert user", err)
	}

	if err := tx.Commit(); err != nil {
		return identity.User{}, postgres.Fail("commit create user", err)
	}
	return user, nil
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (identity.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, created_at, COALESCE(created_by, '')
		FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Postgres) List(ctx context.Context) ([]identity.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, created_at, COALESCE(created_by, '')
		FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, postgres.Fail("list users", err)
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Postgres) Promote(ctx context.Context, target, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return postgres.Fail("begin promote", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET role = $1 WHERE username = $2`,
		string(identity.RoleAdmin), target,
	)
	if err != nil {
		return postgres.Fail("promote user", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sentinel.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO role_changes (id, action, target, actor, changed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), string(identity.ActionPromoted), target, actor, time.Now(),
	)
	if err != nil {
		return postgres.Fail("record promotion", err)
	}
	return tx.Commit()
}

func (s *Postgres) Delete(ctx context.Context, username string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, postgres.Fail("begin delete user", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM demotion_votes WHERE target = $1 OR voter = $1`, username); err != nil {
		return false, postgres.Fail("detach votes", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM role_changes WHERE target = $1 OR actor = $1`, username); err != nil {
		return false, postgres.Fail("detach role changes", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return false, postgres.Fail("delete user", err)
	}
	rows, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, postgres.Fail("commit delete user", err)
	}
	return rows > 0, nil
}

func (s *Postgres) AddVote(ctx context.Context, target, voter string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO demotion_votes (target, voter, cast_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (target, voter) DO NOTHING`,
		target, voter, time.Now(),
	)
	if err != nil {
		return postgres.Fail("cast vote", err)
	}
	return nil
}

func (s *Postgres) RemoveVote(ctx context.Context, target, voter string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM demotion_votes WHERE target = $1 AND voter = $2`, target, voter)
	if err != nil {
		return postgres.Fail("retract vote", err)
	}
	return nil
}

func (s *Postgres) Votes(ctx context.Context, target string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT voter FROM demotion_votes WHERE target = $1 ORDER BY voter`, target)
	if err != nil {
		return nil, postgres.Fail("list votes", err)
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var voter string
		if err := rows.Scan(&voter); err != nil {
			return nil, postgres.Fail("scan vote", err)
		}
		voters = append(voters, voter)
	}
	return voters, rows.Err()
}

func (s *Postgres) DemoteIfQuorum(ctx context.Context, target string, quorum int) (bool, []string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, postgres.Fail("begin demote", err)
	}
	defer tx.Rollback()

	var role string
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM users WHERE username = $1 FOR UPDATE`, target,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, sentinel.ErrNotFound
	}
	if err != nil {
		return false, nil, postgres.Fail("lock target", err)
	}

	// Stale votes from voters who lost Admin since casting are filtered
	// here, inside the transaction, so quorum is judged on current roles.
	rows, err := tx.QueryContext(ctx, `
		SELECT dv.voter
		FROM demotion_votes dv
		JOIN users u ON u.username = dv.voter
		WHERE dv.target = $1 AND u.role = $2 AND dv.voter <> $1
		ORDER BY dv.voter
		FOR UPDATE OF dv`,
		target, string(identity.RoleAdmin),
	)
	if err != nil {
		return false, nil, postgres.Fail("load valid votes", err)
	}
	var valid []string
	for rows.Next() {
		var voter string
		if err := rows.Scan(&voter); err != nil {
			rows.Close()
			return false, nil, postgres.Fail("scan voter", err)
		}
		valid = append(valid, voter)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, nil, postgres.Fail("iterate votes", err)
	}

	if identity.Role(role) != identity.RoleAdmin || len(valid) < quorum {
		return false, valid, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET role = $1 WHERE username = $2`,
		string(identity.RoleFriend), target); err != nil {
		return false, nil, postgres.Fail("demote user", err)
	}
	now := time.Now()
	for _, voter := range valid {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO role_changes (id, action, target, actor, changed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), string(identity.ActionDemoted), target, voter, now); err != nil {
			return false, nil, postgres.Fail("record demotion", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM demotion_votes WHERE target = $1`, target); err != nil {
		return false, nil, postgres.Fail("clear votes", err)
	}

	if err := tx.Commit(); err != nil {
		return false, nil, postgres.Fail("commit demote", err)
	}
	return true, valid, nil
}

func (s *Postgres) RoleChanges(ctx context.Context, target string) ([]identity.RoleChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, target, actor, changed_at
		FROM role_changes WHERE target = $1 ORDER BY changed_at`, target)
	if err != nil {
		return nil, postgres.Fail("list role changes", err)
	}
	defer rows.Close()

	var changes []identity.RoleChange
	for rows.Next() {
		var change identity.RoleChange
		var action string
		if err := rows.Scan(&action, &change.Target, &change.Actor, &change.ChangedAt); err != nil {
			return nil, postgres.Fail("scan role change", err)
		}
		change.Action = identity.RoleChangeAction(action)
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (identity.User, error) {
	var user identity.User
	var role string
	err := row.Scan(&user.Username, &user.PasswordHash, &role, &user.CreatedAt, &user.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return identity.User{}, postgres.Fail("scan user", err)
	}
	user.Role = identity.Role(role)
	return user, nil
}
