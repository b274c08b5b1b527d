package repository

import (
	"context"

	"settlement/internal/domain"
)

// PaymentAttemptRepository defines the persistence operations for capture
// attempts. Attempts are append-only; only their outcome fields change.
type PaymentAttemptRepository interface {
	// Create persists a new capture attempt.
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error

	// GetByID retrieves an attempt by ID.
	GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error)

	// GetByIdempotencyKey retrieves an attempt by its idempotency key.
	// Returns nil if no attempt exists with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAttempt, error)

	// GetSucceededByBooking returns the booking's succeeded attempt, or nil
	// if no attempt has succeeded yet.
	GetSucceededByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error)

	// ListByBooking returns all attempts for a booking, oldest first.
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.PaymentAttempt, error)

	// UpdateOutcome records the gateway's response for an attempt.
	UpdateOutcome(ctx context.Context, id string, outcome domain.PaymentOutcome, chargeID, failureReason string) error
}
