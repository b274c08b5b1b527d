package postgres

import (
	"context"
	"database/sql"
	"errors"

	"settlement/internal/domain"
	"settlement/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `
		SELECT id, guest_id, instrument_ref, host_id, host_account_ref,
		       host_transfer_id, host_payout, captured_charge_id,
		       captured_total, refunded_total, has_open_dispute,
		       lifecycle_status, verification_status, payment_status,
		       created_at, updated_at
		FROM bookings WHERE id = $1
	`

	var b domain.Booking
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.GuestID,
		&b.InstrumentRef,
		&b.HostID,
		&b.HostAccountRef,
		&b.HostTransferID,
		&b.HostPayout,
		&b.CapturedChargeID,
		&b.CapturedTotal,
		&b.RefundedTotal,
		&b.HasOpenDispute,
		&b.Status.Lifecycle,
		&b.Status.Verification,
		&b.Status.Payment,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &b, nil
}

// UpdateStatus replaces the booking's settlement status triple.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status domain.SettlementStatus) error {
	query := `
		UPDATE bookings
		SET lifecycle_status = $1, verification_status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		status.Lifecycle,
		status.Verification,
		status.Payment,
		id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateRefundedTotal sets the cumulative processed-refund total.
func (r *BookingRepository) UpdateRefundedTotal(ctx context.Context, id string, refundedTotal float64) error {
	query := `UPDATE bookings SET refunded_total = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, refundedTotal, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
