package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireSettlementLock attempts to acquire the capture lock for a booking.
// Returns true if the lock was acquired, false if another settlement attempt
// already holds it.
func (s *LockStore) AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:settlement:%s", bookingID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseSettlementLock releases the capture lock for a booking.
func (s *LockStore) ReleaseSettlementLock(ctx context.Context, bookingID string) error {
	key := fmt.Sprintf("lock:settlement:%s", bookingID)

	return s.client.Del(ctx, key).Err()
}
