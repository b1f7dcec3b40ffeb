package auth

import (
	"strings"
	"testing"
	"time"

	"gastos/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789"

func newTestCredentials(t *testing.T) *Credentials {
	t.Helper()
	c, err := NewCredentials(testSecret, 0, bcrypt.MinCost)
	require.NoError(t, err)
	return c
}

func TestNewCredentials_Validation(t *testing.T) {
	_, err := NewCredentials("short", time.Hour, bcrypt.MinCost)
	assert.Error(t, err)

	_, err = NewCredentials(testSecret, time.Hour, 99)
	assert.Error(t, err)

	c, err := NewCredentials(testSecret, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, c.ttl)
	assert.Equal(t, bcrypt.DefaultCost, c.cost)
}

func TestHashAndVerify(t *testing.T) {
	c := newTestCredentials(t)

	h, err := c.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", h)
	assert.True(t, c.Verify("pw1", h))
	assert.False(t, c.Verify("pw2", h))
	assert.False(t, c.Verify("pw1", "not-a-hash"))

	h2, err := c.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2, "hashes must be salted")
}

func TestIssueAndVerifyToken(t *testing.T) {
	c := newTestCredentials(t)

	tok, err := c.IssueToken(42)
	require.NoError(t, err)

	id, err := c.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenExpiresAfterTTL(t *testing.T) {
	c := newTestCredentials(t)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	tok, err := c.IssueToken(7)
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(29 * 24 * time.Hour) }
	_, err = c.VerifyToken(tok)
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(31 * 24 * time.Hour) }
	_, err = c.VerifyToken(tok)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestVerifyToken_Rejects(t *testing.T) {
	c := newTestCredentials(t)

	other, err := NewCredentials("another-secret-abcdefgh", 0, bcrypt.MinCost)
	require.NoError(t, err)
	foreign, err := other.IssueToken(1)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	valid, err := c.IssueToken(1)
	require.NoError(t, err)
	tampered := valid[:strings.LastIndex(valid, ".")+1] + "AAAA"

	for name, tok := range map[string]string{
		"garbage":       "abc.def.ghi",
		"empty":         "",
		"wrong secret":  foreign,
		"no expiry":     noExp,
		"bad signature": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.VerifyToken(tok)
			assert.ErrorIs(t, err, core.ErrUnauthorized, "got %v", err)
		})
	}
}
