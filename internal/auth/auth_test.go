package auth

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var secret = strings.Repeat("k", MinSecretLength)

func newTestAuth(t *testing.T, apiKey string) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := New(secret, string(hash))
	require.NoError(t, err)
	return a
}

func TestNewRejectsWeakSecret(t *testing.T) {
	_, err := New("short", "")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestIssueAndValidate(t *testing.T) {
	a := newTestAuth(t, "letmein")

	token, exp, err := a.IssueToken("letmein", "127.0.0.1")
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Subject)
	assert.NotEmpty(t, claims.ID)

	a.Revoke(token)
	_, err = a.Validate(token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestIssueRejects(t *testing.T) {
	a := newTestAuth(t, "letmein")
	_, _, err := a.IssueToken("wrong", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	noKey, err := New(secret, "")
	require.NoError(t, err)
	_, _, err = noKey.IssueToken("anything", "10.0.0.1")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestIssueRateLimited(t *testing.T) {
	a := newTestAuth(t, "letmein")
	var limited bool
	for i := 0; i < 10; i++ {
		if _, _, err := a.IssueToken("wrong", "10.0.0.2"); err == ErrTooManyAttempts {
			limited = true
			break
		}
	}
	assert.True(t, limited)

	// Other clients are unaffected.
	_, _, err := a.IssueToken("letmein", "10.0.0.3")
	assert.NoError(t, err)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	a := newTestAuth(t, "letmein")

	other, err := New(strings.Repeat("x", MinSecretLength), "")
	require.NoError(t, err)
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject}).SignedString(other.key)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: subject}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", foreign, none} {
		_, err := a.Validate(tok)
		assert.Error(t, err)
	}
}
