package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/report-assistant/internal/repository"
)

// UsageRepository is the go-cache counterpart of the Redis usage counter.
type UsageRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewUsageRepository() *UsageRepository {
	return &UsageRepository{cache: cache.New(48*time.Hour, time.Hour)}
}

var _ repository.UsageRepository = (*UsageRepository)(nil)

func usageKey(ownerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s:%s", ownerID, day.UTC().Format("20060102"))
}

func (r *UsageRepository) Increment(ctx context.Context, ownerID uuid.UUID, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey(ownerID, day)
	n := 1
	if v, ok := r.cache.Get(key); ok {
		n = v.(int) + 1
	}
	r.cache.SetDefault(key, n)
	return n, nil
}

func (r *UsageRepository) Decrement(ctx context.Context, ownerID uuid.UUID, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey(ownerID, day)
	if v, ok := r.cache.Get(key); ok && v.(int) > 0 {
		r.cache.SetDefault(key, v.(int)-1)
	}
	return nil
}

func (r *UsageRepository) Get(ctx context.Context, ownerID uuid.UUID, day time.Time) (int, error) {
	if v, ok := r.cache.Get(usageKey(ownerID, day)); ok {
		return v.(int), nil
	}
	return 0, nil
}

// TokenRepository keeps revoked token IDs until their expiry.
type TokenRepository struct {
	cache *cache.Cache
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

var _ repository.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	r.cache.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (r *TokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, ok := r.cache.Get(tokenID)
	return ok, nil
}
