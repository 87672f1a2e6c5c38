// Package cache holds the Redis-backed stores: the QR token index used at
// the door and the claim keys consumers use to drop duplicate deliveries.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const qrTokenPrefix = "qr:booking:"

// ErrTokenNotFound is returned when a token has no live entry.
var ErrTokenNotFound = errors.New("qr token not found")

// QRTokenStore maps QR tokens to booking ids with a TTL.
type QRTokenStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewQRTokenStore(rdb redis.Cmdable, ttl time.Duration) *QRTokenStore {
	return &QRTokenStore{rdb: rdb, ttl: ttl}
}

func qrKey(token string) string { return qrTokenPrefix + token }

// Put stores token -> bookingID.  Putting an existing token renews its TTL.
func (s *QRTokenStore) Put(ctx context.Context, token string, bookingID uint64) error {
	if err := s.rdb.Set(ctx, qrKey(token), bookingID, s.ttl).Err(); err != nil {
		return fmt.Errorf("store qr token: %w", err)
	}
	return nil
}

// Lookup returns the booking id for token or ErrTokenNotFound.
func (s *QRTokenStore) Lookup(ctx context.Context, token string) (uint64, error) {
	v, err := s.rdb.Get(ctx, qrKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup qr token: %w", err)
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt qr token entry %q: %w", v, err)
	}
	return id, nil
}

// Delete removes token.  Deleting a missing token is not an error.
func (s *QRTokenStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, qrKey(token)).Err(); err != nil {
		return fmt.Errorf("delete qr token: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of token, or a negative duration when
// the token does not exist.
func (s *QRTokenStore) TTL(ctx context.Context, token string) (time.Duration, error) {
	return s.rdb.TTL(ctx, qrKey(token)).Result()
}
