package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	token, err := v.Issue("user-1", "alice")
	require.NoError(t, err)

	ident, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ident.ID)
	assert.Equal(t, "alice", ident.Username)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret", -time.Minute)

	token, err := v.Issue("user-1", "alice")
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a", time.Hour)
	verifier := NewVerifier("secret-b", time.Hour)

	token, err := issuer.Issue("user-1", "alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyMalformed(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrUnauthenticated, "token %q should be rejected", token)
	}
}
