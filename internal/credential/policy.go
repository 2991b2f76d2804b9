package credential

import (
	"strings"
	"unicode"

	dErrors "kindmesh/pkg/domain-errors"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

const symbolSet = `!@#$%^&*(),.?":{}|<>`

// ValidatePassword checks a candidate password against the acceptance
// policy. All violations are reported at once so callers can surface an
// actionable message. Enforcement belongs to the caller of user
// creation, not to the Hasher.
func ValidatePassword(password string) error {
	var violations []string

	if len(password) < MinPasswordLength {
		violations = append(violations, "be at least 8 characters long")
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(symbolSet, r):
			symbol = true
		}
	}
	if !lower {
		violations = append(violations, "contain at least one lowercase letter")
	}
	if !upper {
		violations = append(violations, "contain at least one uppercase letter")
	}
	if !digit {
		violations = append(violations, "contain at least one number")
	}
	if !symbol {
		violations = append(violations, "contain at least one special character ("+symbolSet+")")
	}

	if len(violations) > 0 {
		return dErrors.New(dErrors.CodeValidation,
			"password must "+strings.Join(violations, "; "))
	}
	return nil
}
