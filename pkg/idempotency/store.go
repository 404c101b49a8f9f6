package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates webhook deliveries. PayPal retries a delivery with
// the same event id, so one SetNX per id with a TTL is enough to skip
// replays within the retry window.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(eventID string) string {
	return "webhook:seen:" + eventID
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
