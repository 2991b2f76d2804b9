// Package service holds the business rules of the identity graph:
// account provisioning, the first-admin election, and the single
// authority for role transitions. Storage atomicity lives in the store;
// authorization decisions live here.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kindmesh/internal/audit"
	"kindmesh/internal/credential"
	"kindmesh/internal/identity"
	"kindmesh/internal/identity/store"
	"kindmesh/internal/platform/metrics"
	"kindmesh/internal/platform/middleware"
	dErrors "kindmesh/pkg/domain-errors"
	"kindmesh/pkg/platform/sentinel"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// LockoutGuard throttles repeated authentication failures per username.
type LockoutGuard interface {
	Allow(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// AuditPublisher receives audit events for sensitive actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates user management and the demotion quorum.
type Service struct {
	store          store.Store
	hasher         Hasher
	lockout        LockoutGuard
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLockout(guard LockoutGuard) Option {
	return func(s *Service) { s.lockout = guard }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

// New constructs a Service.
func New(st store.Store, hasher Hasher, opts ...Option) *Service {
	s := &Service{store: st, hasher: hasher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate verifies a username/password pair. An absent username
// and a wrong password are indistinguishable in the result so callers
// cannot enumerate accounts; only store outages produce an error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (identity.User, bool, error) {
	if s.lockout != nil {
		allowed, err := s.lockout.Allow(ctx, username)
		if err != nil && s.logger != nil {
			// Lockout is a hardening layer; fail open on guard outages.
			s.logger.WarnContext(ctx, "lockout check failed", "error", err.Error())
		}
		if err == nil && !allowed {
			s.noteAuthFailure(ctx, username, "locked")
			return identity.User{}, false, nil
		}
	}

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.recordFailure(ctx, username)
		s.noteAuthFailure(ctx, username, "unknown user")
		return identity.User{}, false, nil
	}
	if err != nil {
		return identity.User{}, false, storeFailure(err, "authentication unavailable")
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recordFailure(ctx, username)
		s.noteAuthFailure(ctx, username, "wrong password")
		return identity.User{}, false, nil
	}

	if s.lockout != nil {
		_ = s.lockout.Reset(ctx, username)
	}
	return sanitize(user), true, nil
}

// CreateUser provisions an account. The first non-seed user requesting
// Friend is elected Admin inside the store transaction.
func (s *Service) CreateUser(ctx context.Context, input identity.NewUser) (identity.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return identity.User{}, dErrors.New(dErrors.CodeValidation, "username is required")
	}

	role := input.Role
	if role == "" {
		role = identity.RoleFriend
	}
	if _, err := identity.ParseRole(string(role)); err != nil {
		return identity.User{}, err
	}

	if input.CreatedBy != "" {
		creator, err := s.store.FindByUsername(ctx, input.CreatedBy)
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.User{}, dErrors.New(dErrors.CodeUnauthorized, "creating account is unknown")
		}
		if err != nil {
			return identity.User{}, storeFailure(err, "failed to verify creating account")
		}
		if !creator.Role.CanCreateUsers() {
			return identity.User{}, dErrors.New(dErrors.CodeUnauthorized, "only Greeters and Admins may create accounts")
		}
		// Greeters provision Friend accounts only; elevated roles are
		// an explicit Admin choice.
		if role != identity.RoleFriend && creator.Role != identity.RoleAdmin {
			return identity.User{}, dErrors.New(dErrors.CodeUnauthorized, "only Admins may assign elevated roles")
		}
	}

	if err := credential.ValidatePassword(input.Password); err != nil {
		return identity.User{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return identity.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := identity.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
		CreatedBy:    input.CreatedBy,
	}
	stored, err := s.store.CreateClaimingFirstAdmin(ctx, user)
	if errors.Is(err, sentinel.ErrConflict) {
		return identity.User{}, dErrors.New(dErrors.CodeConflict, "username already exists")
	}
	if err != nil {
		return identity.User{}, storeFailure(err, "failed to create user")
	}

	s.logAudit(ctx, audit.EventUserCreated, input.CreatedBy, stored.Username,
		"role", string(stored.Role))
	if s.metrics != nil {
		s.metrics.UsersCreated.Inc()
	}
	return sanitize(stored), nil
}

// ListUsers returns all accounts, oldest first, without hashes.
func (s *Service) ListUsers(ctx context.Context) ([]identity.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to list users")
	}
	for i := range users {
		users[i] = sanitize(users[i])
	}
	return users, nil
}

// Promote elevates target to Admin. The actor must currently hold Admin
// and may not promote themselves. Single-step, no quorum.
func (s *Service) Promote(ctx context.Context, target, by string) error {
	if target == by {
		return dErrors.New(dErrors.CodeValidation, "admins cannot promote themselves")
	}
	promoter, err := s.store.FindByUsername(ctx, by)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && promoter.Role != identity.RoleAdmin) {
		return dErrors.New(dErrors.CodeUnauthorized, "promotion requires an Admin account")
	}
	if err != nil {
		return storeFailure(err, "failed to verify promoter")
	}

	if _, err := s.store.FindByUsername(ctx, target); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return storeFailure(err, "failed to load user")
	}

	if err := s.store.Promote(ctx, target, by); err != nil {
		return storeFailure(err, "failed to promote user")
	}
	s.logAudit(ctx, audit.EventUserPromoted, by, target)
	return nil
}

// DeleteUser removes an account and detaches its identity edges.
// Interactions already logged keep the username as an attribute.
// Returns false, without error, when the user does not exist.
func (s *Service) DeleteUser(ctx context.Context, username string) (bool, error) {
	deleted, err := s.store.Delete(ctx, username)
	if err != nil {
		return false, storeFailure(err, "failed to delete user")
	}
	if deleted {
		s.logAudit(ctx, audit.EventUserDeleted, "", username)
	}
	return deleted, nil
}

func (s *Service) recordFailure(ctx context.Context, username string) {
	if s.lockout != nil {
		_ = s.lockout.RecordFailure(ctx, username)
	}
}

func (s *Service) noteAuthFailure(ctx context.Context, username, reason string) {
	if s.metrics != nil {
		s.metrics.AuthFailures.Inc()
	}
	// The reason stays in logs only; callers see an undifferentiated
	// failure.
	s.logAudit(ctx, audit.EventAuthFailed, "", username, "reason", reason)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor, subject string, attributes ...any) {
	requestID := middleware.GetRequestID(ctx)
	args := append(attributes,
		"actor", actor,
		"subject", subject,
		"event", string(event),
		"log_type", "audit",
	)
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Actor:     actor,
		Subject:   subject,
		Action:    string(event),
		RequestID: requestID,
	})
}

func sanitize(user identity.User) identity.User {
	user.PasswordHash = ""
	return user
}

func storeFailure(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
