package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
)

// Claims is the JWT payload of a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserType domain.UserType `json:"user_type"`
	Roles    []string        `json:"roles"`
	// IssuedAtMs is the issue time in milliseconds. The registered iat claim
	// has second precision, too coarse to order a token against a password
	// change made in the same second.
	IssuedAtMs int64 `json:"iat_ms,omitempty"`
}

func (c *Claims) issuedAtMs() int64 {
	if c.IssuedAtMs > 0 {
		return c.IssuedAtMs
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.UnixMilli()
	}
	return 0
}

// TokenIssuer signs and verifies bearer tokens and consults the revocation
// list filled by logout.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	revoked ports.RevocationStore
}

// NewTokenIssuer returns an HS256 issuer. revoked may be nil, in which case
// logout cannot invalidate tokens server-side.
func NewTokenIssuer(secret string, ttl time.Duration, revoked ports.RevocationStore) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, revoked: revoked}
}

// Issue signs a token for user.
func (t *TokenIssuer) Issue(user *domain.User) (string, *ports.TokenClaims, error) {
	now := time.Now()
	roles := user.Principal().Roles
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserType:   user.UserType,
		Roles:      roles,
		IssuedAtMs: now.UnixMilli(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, toPortClaims(&claims), nil
}

// ParseToken verifies signature, expiry and revocation. Every failure is
// reported as domain.ErrInvalidToken.
func (t *TokenIssuer) ParseToken(ctx context.Context, raw string) (*ports.TokenClaims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}

	if t.revoked != nil && claims.ID != "" {
		revoked, err := t.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: revocation check: %v", domain.ErrInvalidToken, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", domain.ErrInvalidToken)
		}
	}

	if t.revoked != nil {
		cutoff, err := t.revoked.UserCutoff(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("%w: cutoff check: %v", domain.ErrInvalidToken, err)
		}
		// a token from the cutoff's own millisecond is rejected as well
		if !cutoff.IsZero() && claims.issuedAtMs() <= cutoff.UnixMilli() {
			return nil, fmt.Errorf("%w: issued before credentials changed", domain.ErrInvalidToken)
		}
	}

	return toPortClaims(claims), nil
}

// Revoke adds the token to the revocation list for the rest of its lifetime.
func (t *TokenIssuer) Revoke(ctx context.Context, c *ports.TokenClaims) error {
	if t.revoked == nil || c == nil || c.JTI == "" {
		return nil
	}
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return t.revoked.Revoke(ctx, c.JTI, ttl)
}

// RevokeUser invalidates every token issued to userID so far. Tokens issued
// in a later millisecond are unaffected.
func (t *TokenIssuer) RevokeUser(ctx context.Context, userID string) error {
	if t.revoked == nil || userID == "" {
		return nil
	}
	return t.revoked.RevokeUserBefore(ctx, userID, time.Now(), t.ttl)
}

func toPortClaims(c *Claims) *ports.TokenClaims {
	out := &ports.TokenClaims{
		UserID:   c.Subject,
		UserType: c.UserType,
		Roles:    append([]string(nil), c.Roles...),
		JTI:      c.ID,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// newOneTimeToken returns a random token and the hash that gets persisted.
func newOneTimeToken() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken is the storage form of a one-time token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
