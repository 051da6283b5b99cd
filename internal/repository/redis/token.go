package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/report-assistant/internal/repository"
)

const revokedKeyPrefix = "auth:revoked"

type tokenRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewTokenRepository stores revoked token IDs until the token would have
// expired anyway.
func NewTokenRepository(client *redis.Client) repository.TokenRepository {
	return &tokenRepository{client: client, now: time.Now}
}

func (r *tokenRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf("%s:%s", revokedKeyPrefix, tokenID)
	if err := r.client.Set(ctx, key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *tokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, fmt.Sprintf("%s:%s", revokedKeyPrefix, tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
