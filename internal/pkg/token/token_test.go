package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", time.Hour)

	signed, err := m.Generate("analyst@example.com")
	require.NoError(t, err)

	claims, err := m.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "analyst@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestManager_Rejects(t *testing.T) {
	m := NewManager("secret", time.Hour)
	signed, err := m.Generate("analyst@example.com")
	require.NoError(t, err)

	expired := NewManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Generate("analyst@example.com")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "x@example.com"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct {
		manager *Manager
		token   string
	}{
		"wrong secret": {NewManager("other", time.Hour), signed},
		"expired":      {m, old},
		"garbage":      {m, "not.a.token"},
		"none alg":     {m, none},
		"empty":        {m, ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.manager.Validate(tt.token)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}
