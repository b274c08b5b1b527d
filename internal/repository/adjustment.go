package repository

import (
	"context"

	"settlement/internal/domain"
)

// WaiveRepository defines the persistence operations for waive records.
type WaiveRepository interface {
	// Create persists a new waive record.
	Create(ctx context.Context, record *domain.WaiveRecord) error

	// ListByBooking returns all waive records for a booking, oldest first.
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.WaiveRecord, error)
}

// AdjustmentRepository defines the persistence operations for adjustment
// records.
type AdjustmentRepository interface {
	// Create persists a new adjustment record.
	Create(ctx context.Context, record *domain.AdjustmentRecord) error

	// ListByBooking returns all adjustment records for a booking, oldest first.
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.AdjustmentRecord, error)
}
