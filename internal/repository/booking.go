package repository

import (
	"context"

	"settlement/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// UpdateStatus replaces the booking's settlement status triple.
	UpdateStatus(ctx context.Context, id string, status domain.SettlementStatus) error

	// UpdateRefundedTotal sets the cumulative processed-refund total.
	UpdateRefundedTotal(ctx context.Context, id string, refundedTotal float64) error
}
