package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/report-assistant/internal/repository"
)

const usageKeyPrefix = "usage:analysis"

// decrementScript lowers a positive counter and leaves a missing or zero key
// untouched, so a refund never creates a negative key without an expiry.
var decrementScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
	return redis.call("DECR", KEYS[1])
end
return 0
`)

type usageRepository struct {
	client *redis.Client
}

// NewUsageRepository counts analyses per owner per UTC day.
func NewUsageRepository(client *redis.Client) repository.UsageRepository {
	return &usageRepository{client: client}
}

func usageKey(ownerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", usageKeyPrefix, ownerID, day.UTC().Format("20060102"))
}

func (r *usageRepository) Increment(ctx context.Context, ownerID uuid.UUID, day time.Time) (int, error) {
	key := usageKey(ownerID, day)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// Keys outlive the day they count by a margin so late reads still work.
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return int(incr.Val()), nil
}

func (r *usageRepository) Decrement(ctx context.Context, ownerID uuid.UUID, day time.Time) error {
	if err := decrementScript.Run(ctx, r.client, []string{usageKey(ownerID, day)}).Err(); err != nil {
		return fmt.Errorf("failed to decrement usage: %w", err)
	}
	return nil
}

func (r *usageRepository) Get(ctx context.Context, ownerID uuid.UUID, day time.Time) (int, error) {
	n, err := r.client.Get(ctx, usageKey(ownerID, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return n, nil
}
