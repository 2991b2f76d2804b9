package identity

import (
	"time"

	dErrors "kindmesh/pkg/domain-errors"
)

// Role is the access level of a user. Role-transition rules live in this
// package only; callers never re-derive them.
//
// Greeter is a provisioning-only role: it can be assigned at creation
// time but has no transition out of it other than account deletion.
type Role string

const (
	RoleGreeter Role = "Greeter"
	RoleFriend  Role = "Friend"
	RoleAdmin   Role = "Admin"
)

// ParseRole validates a role string coming from callers.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGreeter, RoleFriend, RoleAdmin:
		return Role(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown role: "+s)
}

// CanCreateUsers reports whether a role may provision new accounts.
func (r Role) CanCreateUsers() bool {
	return r == RoleGreeter || r == RoleAdmin
}

// User is a staff account. Username is immutable and globally unique.
type User struct {
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	// CreatedBy keeps account provenance as a plain attribute; it is
	// not a foreign key and survives deletion of the creator.
	CreatedBy string
}

// RoleChangeAction tags role-change provenance records.
type RoleChangeAction string

const (
	ActionPromoted RoleChangeAction = "promoted"
	ActionDemoted  RoleChangeAction = "demoted"
)

// RoleChange records who changed whose role and when. Demotions produce
// one record per quorum voter.
type RoleChange struct {
	Action    RoleChangeAction
	Target    string
	Actor     string
	ChangedAt time.Time
}

// NewUser is the input to user creation. Role defaults to Friend.
type NewUser struct {
	Username  string
	Password  string
	Role      Role
	CreatedBy string
}

// DemotionQuorum is the number of distinct valid admin votes required
// before an admin demotion is applied.
const DemotionQuorum = 2
