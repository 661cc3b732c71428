// Package auth resolves bearer tokens issued by the identity service into
// workflow actors.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
)

const issuer = "influencer-marketplace"

var (
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	ErrUnknownRole  = errors.New("auth: token carries no known role")
)

type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Resolver verifies HS256 tokens signed with a shared secret.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Issue signs a token for actor. ttl <= 0 means 24h. The identity service
// owns issuance in production; this is used by tooling and tests.
func (r *Resolver) Issue(actor models.Actor, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID: actor.ID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// ResolveActor returns the actor a token speaks for.
func (r *Resolver) ResolveActor(token string) (models.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == uuid.Nil {
		return models.Actor{}, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return models.Actor{}, ErrUnknownRole
	}
	return models.Actor{ID: claims.UserID, Role: claims.Role}, nil
}
