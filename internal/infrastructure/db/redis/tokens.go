package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/youthcouncil/portal/internal/core/domain"
)

// TokenStore keeps hashed one-time tokens and the bearer-token revocation
// list in Redis, letting key expiry enforce the lifetimes.
//
// Key formats:
//
//	otp:<purpose>:<sha256>  -> user id
//	revoked:<jti>           -> "1"
//	revoked_before:<user>   -> cutoff, unix milliseconds
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a TokenStore wrapping the given Redis client.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// Save stores the token hash. An existing entry for the same hash is
// overwritten.
func (s *TokenStore) Save(ctx context.Context, purpose domain.TokenPurpose, tokenHash, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(purpose, tokenHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Consume reads and deletes the token in one round trip, so concurrent
// exchanges of the same token cannot both succeed.
func (s *TokenStore) Consume(ctx context.Context, purpose domain.TokenPurpose, tokenHash string) (string, error) {
	userID, err := s.client.GetDel(ctx, otpKey(purpose, tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrInvalidToken
		}
		return "", fmt.Errorf("consume token: %w", err)
	}
	return userID, nil
}

// Revoke marks jti as revoked until ttl elapses.
func (s *TokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is on the revocation list.
func (s *TokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

// RevokeUserBefore records cutoff for userID until ttl elapses. A later call
// replaces the earlier cutoff.
func (s *TokenStore) RevokeUserBefore(ctx context.Context, userID string, cutoff time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, userCutoffKey(userID), cutoff.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// UserCutoff returns the cutoff recorded for userID, or the zero time.
func (s *TokenStore) UserCutoff(ctx context.Context, userID string) (time.Time, error) {
	ms, err := s.client.Get(ctx, userCutoffKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("user cutoff: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func otpKey(purpose domain.TokenPurpose, hash string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, hash)
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}

func userCutoffKey(userID string) string {
	return "revoked_before:" + userID
}
