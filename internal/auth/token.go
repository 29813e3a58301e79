// Package auth issues and checks credentials: bearer tokens, password
// hashes, one-time codes and Google identities.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller carried by a valid token.
type Identity struct {
	UserID int64
	Role   domain.Role
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokens(secret string, ttl time.Duration, clk clock.Clock) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clk}
}

// Issue signs an HS256 token for the user. It returns the token and its
// expiry.
func (t *Tokens) Issue(userID int64, role domain.Role) (string, time.Time, error) {
	const op = "auth.Tokens.Issue"

	now := t.clock.Now()
	exp := now.Add(t.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s:%w", op, err)
	}

	return signed, exp, nil
}

// Parse validates raw and returns the identity it carries.
//
// Returns:
//   - error: auth.ErrInvalidToken for bad signatures, other algorithms,
//     expired tokens and malformed subjects.
func (t *Tokens) Parse(raw string) (Identity, error) {
	const op = "auth.Tokens.Parse"

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%s:%w: %w", op, ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, fmt.Errorf("%s:%w: bad subject", op, ErrInvalidToken)
	}

	return Identity{UserID: id, Role: claims.Role}, nil
}
