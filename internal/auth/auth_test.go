package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	clk := clock.Fake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	tokens := NewTokens("secret", 24*time.Hour, clk)

	raw, exp, err := tokens.Issue(42, domain.RoleOrganization)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(24*time.Hour), exp)

	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: domain.RoleOrganization}, id)

	clk.Advance(25 * time.Hour)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsForeignSecretAndAlgorithm(t *testing.T) {
	clk := clock.Fake(time.Now())
	tokens := NewTokens("secret", time.Hour, clk)

	raw, _, err := NewTokens("other", time.Hour, clk).Issue(1, domain.RoleAdmin)
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "s3cret-pass"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestNewOTP(t *testing.T) {
	code, err := NewOTP("a@b.io", time.Now())
	require.NoError(t, err)

	assert.Len(t, code, 4)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestIdentityFromClaims(t *testing.T) {
	id, err := identityFromClaims("uid-1", map[string]interface{}{"email": "a@b.io", "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, GoogleIdentity{UID: "uid-1", Email: "a@b.io", Name: "Ann"}, id)

	_, err = identityFromClaims("uid-2", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
