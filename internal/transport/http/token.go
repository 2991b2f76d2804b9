package httptransport

import (
	"kindmesh/internal/identity"
	"kindmesh/internal/platform/middleware"
	"kindmesh/pkg/platform/token"
)

// TokenValidator adapts the JWT manager to the middleware contract,
// mapping the role claim back onto the domain enum.
type TokenValidator struct {
	manager *token.Manager
}

func NewTokenValidator(manager *token.Manager) *TokenValidator {
	return &TokenValidator{manager: manager}
}

func (v *TokenValidator) Validate(tokenString string) (middleware.Principal, error) {
	claims, err := v.manager.Validate(tokenString)
	if err != nil {
		return middleware.Principal{}, err
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return middleware.Principal{}, err
	}
	return middleware.Principal{Username: claims.Subject, Role: role}, nil
}
