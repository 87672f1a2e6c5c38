package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore records which messages a consumer has already handled.  A
// claim is a SETNX key that expires after ttl, long enough to cover broker
// redelivery and relay duplicates.
type ClaimStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewClaimStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *ClaimStore {
	return &ClaimStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Claim returns true when key was not claimed before.
func (s *ClaimStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim so a later redelivery is processed again.
func (s *ClaimStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
