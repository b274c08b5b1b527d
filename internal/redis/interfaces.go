package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for the per-booking capture lock.
type LockStoreInterface interface {
	AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	ReleaseSettlementLock(ctx context.Context, bookingID string) error
}

// CacheStoreInterface defines the interface for settlement state caching.
type CacheStoreInterface interface {
	GetSettlement(ctx context.Context, bookingID string) (*CachedSettlement, error)
	SetSettlement(ctx context.Context, cached *CachedSettlement) error
	InvalidateSettlement(ctx context.Context, bookingID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface  = (*LockStore)(nil)
	_ CacheStoreInterface = (*CacheStore)(nil)
)
