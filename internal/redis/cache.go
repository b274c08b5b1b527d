package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// SettlementCacheTTL is short: staff actions and retries change the status
// frequently while a settlement is being worked.
const SettlementCacheTTL = 30 * time.Second

const settlementCachePrefix = "cache:settlement:"

// CachedSettlement is the cached view of a booking's settlement state.
type CachedSettlement struct {
	BookingID    string  `json:"booking_id"`
	Lifecycle    string  `json:"lifecycle_status"`
	Verification string  `json:"verification_status"`
	Payment      string  `json:"payment_status"`
	Refunded     float64 `json:"refunded_total"`
}

// GetSettlement retrieves a booking's settlement state from cache.
func (s *CacheStore) GetSettlement(ctx context.Context, bookingID string) (*CachedSettlement, error) {
	key := settlementCachePrefix + bookingID
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedSettlement
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

// SetSettlement stores a booking's settlement state in cache.
func (s *CacheStore) SetSettlement(ctx context.Context, cached *CachedSettlement) error {
	key := settlementCachePrefix + cached.BookingID
	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, SettlementCacheTTL).Err()
}

// InvalidateSettlement removes a booking's settlement state from cache.
func (s *CacheStore) InvalidateSettlement(ctx context.Context, bookingID string) error {
	key := settlementCachePrefix + bookingID
	return s.client.Del(ctx, key).Err()
}
