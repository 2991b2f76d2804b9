// Package token issues and validates the signed bearer tokens used by
// the HTTP surface. The core services never see tokens; they receive
// usernames resolved by the transport.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the validated content of a kindmesh token.
type Claims struct {
	Subject string
	Role    string
}

// Manager signs and validates HS256 tokens.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

// NewManager builds a Manager. A zero ttl defaults to 12 hours, the
// length of a volunteer shift with margin.
func NewManager(signingKey string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{signingKey: []byte(signingKey), ttl: ttl}
}

// Issue signs a token for the given subject and role.
func (m *Manager) Issue(subject, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string.
func (m *Manager) Validate(tokenString string) (Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	subject, _ := mapClaims["sub"].(string)
	role, _ := mapClaims["role"].(string)
	if subject == "" || role == "" {
		return Claims{}, errors.New("token missing subject or role")
	}
	return Claims{Subject: subject, Role: role}, nil
}
