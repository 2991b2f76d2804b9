package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeWalksChain(t *testing.T) {
	base := New(CodeNotFound, "user not found")
	wrapped := Wrap(base, CodeInternal, "failed to load user")

	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeConflict))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeConflict, "duplicate username"))
	assert.True(t, HasCode(err, CodeConflict))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "weak password")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestMessageFallsBackToCode(t *testing.T) {
	assert.Equal(t, "quorum_not_met", (&Error{Code: CodeQuorumNotMet}).Error())
	assert.Equal(t, "boom", New(CodeInternal, "boom").Error())
}
