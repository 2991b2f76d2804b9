package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kindmesh/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher()

	hash, err := h.Hash("Sunflower#9")
	require.NoError(t, err)

	assert.True(t, h.Verify("Sunflower#9", hash))
	assert.False(t, h.Verify("sunflower#9", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHashIsSaltedPerCall(t *testing.T) {
	h := NewHasher()

	first, err := h.Hash("Sunflower#9")
	require.NoError(t, err)
	second, err := h.Hash("Sunflower#9")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("Sunflower#9", first))
	assert.True(t, h.Verify("Sunflower#9", second))
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  []string
	}{
		{"accepts compliant password", "Sunflower#9", nil},
		{"rejects short password", "Ab1!", []string{"8 characters"}},
		{"rejects missing uppercase", "sunflower#9", []string{"uppercase"}},
		{"rejects missing lowercase", "SUNFLOWER#9", []string{"lowercase"}},
		{"rejects missing digit", "Sunflower#!", []string{"number"}},
		{"rejects missing symbol", "Sunflower99", []string{"special character"}},
		{"reports every violation at once", "abc", []string{"8 characters", "uppercase", "number", "special character"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			for _, fragment := range tc.wantErr {
				assert.True(t, strings.Contains(err.Error(), fragment),
					"expected %q in %q", fragment, err.Error())
			}
		})
	}
}
