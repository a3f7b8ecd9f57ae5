package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/pkg/cryptox"
	"github.com/aussiebroadwan/clinic/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "clinic-test"

func newSigner(t *testing.T, kid string) *jwtx.EdDSASigner {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newSigner(t, "key-1")
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "key-1", signer.KID())

	claims := jwtx.NewSessionClaims("user-456", "session-1", "jane", "user", []string{"pwd"}, 5*time.Minute, exampleIssuer, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.False(t, keyset.IsReady())
	require.NoError(t, keyset.AddSigner(signer))
	require.True(t, keyset.IsReady())

	parsed, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer).Verify(token)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, claims.SID, parsed.SID)
	require.Equal(t, claims.Username, parsed.Username)
	require.Equal(t, claims.Role, parsed.Role)
	require.Equal(t, claims.ID, parsed.ID)
}

func TestEdDSAVerifyFailsForWrongIssuer(t *testing.T) {
	signer := newSigner(t, "key-1")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	token, err := signer.Sign(jwtx.NewSessionClaims("u", "s", "jane", "user", nil, time.Minute, "someone-else", time.Now().UTC()))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierEdDSA(keyset, exampleIssuer).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestEdDSAVerifyFailsForExpiredToken(t *testing.T) {
	signer := newSigner(t, "key-1")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	issued := time.Now().UTC().Add(-2 * time.Hour)
	token, err := signer.Sign(jwtx.NewSessionClaims("u", "s", "jane", "user", nil, time.Hour, exampleIssuer, issued))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierEdDSA(keyset, exampleIssuer).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestEdDSAVerifyFailsForUnknownKey(t *testing.T) {
	trusted := newSigner(t, "trusted")
	rogue := newSigner(t, "rogue")

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(trusted))

	token, err := rogue.Sign(jwtx.NewSessionClaims("u", "s", "jane", "user", nil, time.Minute, exampleIssuer, time.Now().UTC()))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierEdDSA(keyset, exampleIssuer).Verify(token)
	require.Error(t, err)
}

func TestEdDSAVerifyFailsForMalformedToken(t *testing.T) {
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(newSigner(t, "k")))

	_, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer).Verify("not.a.jwt")
	require.Error(t, err)
}

func TestNewSignerEdDSARejectsBadPEM(t *testing.T) {
	_, err := jwtx.NewSignerEdDSA("k", []byte("garbage"))
	require.Error(t, err)
}
