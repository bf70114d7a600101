package ports

import (
	"context"
	"time"

	"github.com/youthcouncil/portal/internal/core/domain"
)

// OneTimeTokenStore keeps hashed single-use tokens until they expire.
type OneTimeTokenStore interface {
	// Save associates tokenHash with userID for ttl.
	Save(ctx context.Context, purpose domain.TokenPurpose, tokenHash, userID string, ttl time.Duration) error
	// Consume atomically removes tokenHash and returns the owning user id.
	// It returns domain.ErrInvalidToken when the token is unknown or expired.
	Consume(ctx context.Context, purpose domain.TokenPurpose, tokenHash string) (string, error)
}

// RevocationStore records bearer tokens invalidated by logout, and per-user
// cutoffs that invalidate every token issued before a password or role
// change.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUserBefore rejects userID's tokens issued before cutoff for ttl.
	RevokeUserBefore(ctx context.Context, userID string, cutoff time.Time, ttl time.Duration) error
	// UserCutoff returns the cutoff for userID, or the zero time.
	UserCutoff(ctx context.Context, userID string) (time.Time, error)
}
