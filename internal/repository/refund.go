package repository

import (
	"context"

	"settlement/internal/domain"
)

// RefundRequestRepository defines the persistence operations for refund
// requests.
type RefundRequestRepository interface {
	// Create persists a new refund request.
	Create(ctx context.Context, request *domain.RefundRequest) error

	// GetByID retrieves a refund request by ID.
	GetByID(ctx context.Context, id string) (*domain.RefundRequest, error)

	// ListByBooking returns all refund requests for a booking, oldest first.
	ListByBooking(ctx context.Context, bookingID string) ([]*domain.RefundRequest, error)

	// Update persists review and processing fields of a request.
	Update(ctx context.Context, request *domain.RefundRequest) error

	// SumProcessedByBooking returns the total amount of all PROCESSED
	// refunds for a booking.
	SumProcessedByBooking(ctx context.Context, bookingID string) (float64, error)
}

// LedgerRepository defines the persistence operations for host running
// balances.
type LedgerRepository interface {
	// GetBalance retrieves a host's running balance. Returns a zero balance
	// if the host has no ledger row yet.
	GetBalance(ctx context.Context, hostID string) (*domain.HostBalance, error)

	// AdjustBalance applies a signed delta to a host's running balance.
	AdjustBalance(ctx context.Context, hostID string, delta float64) error
}
