// Package auth implements password hashing and bearer-token issuance.
package auth

import (
	"fmt"
	"time"

	"gastos/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = 30 * 24 * time.Hour
	minSecretLen    = 16
)

// Claims carries the user id as the token's only application claim.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// Credentials hashes passwords with bcrypt and signs HS256 tokens with a
// secret fixed for the lifetime of the process.
type Credentials struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewCredentials(secret string, ttl time.Duration, bcryptCost int) (*Credentials, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Credentials{
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcryptCost,
		now:    time.Now,
	}, nil
}

// Hash returns a salted bcrypt hash of password.
func (c *Credentials) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether password matches hash.
func (c *Credentials) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (c *Credentials) IssueToken(userID int64) (string, error) {
	now := c.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates signature and expiry and returns the user id.
// Every failure wraps core.ErrUnauthorized.
func (c *Credentials) VerifyToken(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: %w", core.ErrUnauthorized, jwt.ErrTokenInvalidClaims)
	}
	return claims.UserID, nil
}
