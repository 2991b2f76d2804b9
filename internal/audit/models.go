// Package audit captures the who-did-what trail for sensitive actions:
// account provisioning, role changes, ledger writes. Events are emitted
// from domain logic and fanned out through a Store so sinks can be
// swapped in tests.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	// Actor is the username performing the action; empty for
	// unauthenticated actions such as failed logins.
	Actor string
	// Subject is the entity acted upon: a username, recipient key, or
	// survey id.
	Subject   string
	Action    string
	Reason    string
	RequestID string
}

// AuditEvent names the actions the core emits.
type AuditEvent string

const (
	EventUserCreated   AuditEvent = "user_created"
	EventUserDeleted   AuditEvent = "user_deleted"
	EventUserPromoted  AuditEvent = "user_promoted"
	EventAdminDemoted  AuditEvent = "admin_demoted"
	EventVoteCast      AuditEvent = "demotion_vote_cast"
	EventVoteRetracted AuditEvent = "demotion_vote_retracted"
	EventAuthFailed    AuditEvent = "auth_failed"

	EventInteractionLogged AuditEvent = "interaction_logged"
	EventResponseSaved     AuditEvent = "survey_response_saved"
	EventSurveyCreated     AuditEvent = "survey_created"
	EventSurveyUpdated     AuditEvent = "survey_updated"
	EventSurveyDeleted     AuditEvent = "survey_deleted"
)
