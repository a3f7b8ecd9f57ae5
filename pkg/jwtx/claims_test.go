package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "clinic"},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("clinic"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("other"), jwtx.ErrIssuer)
	})
}

func TestValidateExpiryAt(t *testing.T) {
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	c := jwtx.NewSessionClaims("user-1", "sid-1", "dr.smith", "admin", []string{"pwd"}, time.Hour, "clinic", now)

	require.NoError(t, c.ValidateExpiryAt(now.Add(30*time.Minute), 0))
	require.ErrorIs(t, c.ValidateExpiryAt(now.Add(2*time.Hour), 0), jwtx.ErrExpired)
	require.ErrorIs(t, c.ValidateExpiryAt(now.Add(-time.Minute), 0), jwtx.ErrNotYetValid)

	// Leeway absorbs small clock skew on both ends.
	require.NoError(t, c.ValidateExpiryAt(now.Add(time.Hour+20*time.Second), 30*time.Second))
	require.NoError(t, c.ValidateExpiryAt(now.Add(-20*time.Second), 30*time.Second))
}

func TestNewSessionClaims(t *testing.T) {
	now := time.Now().UTC()
	c := jwtx.NewSessionClaims("user-1", "sid-1", "dr.smith", "admin", []string{"pwd", "otp"}, jwtx.DefaultSessionTTL, "clinic", now)

	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, "clinic", c.Issuer)
	require.Equal(t, "dr.smith", c.Username)
	require.Equal(t, "admin", c.Role)
	require.Equal(t, []string{"pwd", "otp"}, c.AMR)
	require.NotEmpty(t, c.ID)
	require.WithinDuration(t, now.Add(jwtx.DefaultSessionTTL), c.ExpiresAt.Time, time.Second)

	other := jwtx.NewSessionClaims("user-1", "sid-1", "dr.smith", "admin", nil, time.Hour, "clinic", now)
	require.NotEqual(t, c.ID, other.ID, "jti must be unique per token")
}
