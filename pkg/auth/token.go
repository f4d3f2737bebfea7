// Package auth issues and verifies the bearer tokens presented during
// the realtime handshake. Session issuance itself lives behind the CRUD
// boundary; the hub only needs Verify.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plankhq/plank/pkg/models"
)

// ErrInvalidToken covers every verification failure: missing,
// malformed, expired, wrongly signed, or carrying an unparseable
// subject. The hub deliberately does not distinguish between these:
// all of them end in the same silent connection reject.
var ErrInvalidToken = errors.New("auth: invalid token")

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// TokenVerifier resolves a handshake credential to a user identity.
type TokenVerifier interface {
	Verify(token string) (models.User, error)
}

// HMACTokens signs and verifies HS256 JWTs with a shared secret.
type HMACTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewHMACTokens returns a token codec. ttl applies to issued tokens; a
// zero ttl defaults to 24h.
func NewHMACTokens(secret []byte, ttl time.Duration) *HMACTokens {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &HMACTokens{secret: secret, ttl: ttl}
}

// Issue creates a signed token for the given user.
func (t *HMACTokens) Issue(user models.User) (string, error) {
	now := time.Now()
	c := claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// Verify parses and validates a token, returning the identity it
// asserts. Any failure maps to ErrInvalidToken.
func (t *HMACTokens) Verify(token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrInvalidToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.User{}, ErrInvalidToken
	}

	id, err := models.ParseUserID(c.Subject)
	if err != nil {
		return models.User{}, ErrInvalidToken
	}

	return models.User{ID: id, Email: c.Email, Name: c.Name}, nil
}
