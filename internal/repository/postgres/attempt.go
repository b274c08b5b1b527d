package postgres

import (
	"context"
	"database/sql"
	"errors"

	"settlement/internal/domain"
	"settlement/internal/repository"
)

// PaymentAttemptRepository is a PostgreSQL implementation of
// repository.PaymentAttemptRepository.
type PaymentAttemptRepository struct {
	q Querier
}

// NewPaymentAttemptRepository creates a new PostgreSQL attempt repository.
func NewPaymentAttemptRepository(db *sql.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{q: db}
}

// NewPaymentAttemptRepositoryWithTx creates an attempt repository using a transaction.
func NewPaymentAttemptRepositoryWithTx(tx *sql.Tx) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{q: tx}
}

const attemptColumns = `
	id, booking_id, amount, customer_ref, instrument_ref, description,
	outcome, failure_reason, charge_id, idempotency_key, retry,
	original_charge_id, attempt_number, created_at
`

// Create persists a new capture attempt.
func (r *PaymentAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		attempt.ID,
		attempt.BookingID,
		attempt.Amount,
		attempt.CustomerRef,
		attempt.InstrumentRef,
		attempt.Description,
		attempt.Outcome,
		attempt.FailureReason,
		attempt.ChargeID,
		attempt.IdempotencyKey,
		attempt.Retry,
		attempt.OriginalChargeID,
		attempt.AttemptNumber,
		attempt.CreatedAt,
	)

	return err
}

func (r *PaymentAttemptRepository) scanAttempt(row *sql.Row) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.Amount,
		&a.CustomerRef,
		&a.InstrumentRef,
		&a.Description,
		&a.Outcome,
		&a.FailureReason,
		&a.ChargeID,
		&a.IdempotencyKey,
		&a.Retry,
		&a.OriginalChargeID,
		&a.AttemptNumber,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an attempt by ID.
func (r *PaymentAttemptRepository) GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`

	attempt, err := r.scanAttempt(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return attempt, nil
}

// GetByIdempotencyKey retrieves an attempt by its idempotency key.
// Returns nil if no attempt exists with the given key.
func (r *PaymentAttemptRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE idempotency_key = $1`

	attempt, err := r.scanAttempt(r.q.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return attempt, nil
}

// GetSucceededByBooking returns the booking's succeeded attempt, or nil if
// no attempt has succeeded yet.
func (r *PaymentAttemptRepository) GetSucceededByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE booking_id = $1 AND outcome = $2
	`

	attempt, err := r.scanAttempt(r.q.QueryRowContext(ctx, query, bookingID, domain.PaymentOutcomeSucceeded))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return attempt, nil
}

// ListByBooking returns all attempts for a booking, oldest first.
func (r *PaymentAttemptRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE booking_id = $1
		ORDER BY attempt_number ASC, created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		var a domain.PaymentAttempt
		err := rows.Scan(
			&a.ID,
			&a.BookingID,
			&a.Amount,
			&a.CustomerRef,
			&a.InstrumentRef,
			&a.Description,
			&a.Outcome,
			&a.FailureReason,
			&a.ChargeID,
			&a.IdempotencyKey,
			&a.Retry,
			&a.OriginalChargeID,
			&a.AttemptNumber,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// UpdateOutcome records the gateway's response for an attempt.
func (r *PaymentAttemptRepository) UpdateOutcome(ctx context.Context, id string, outcome domain.PaymentOutcome, chargeID, failureReason string) error {
	query := `
		UPDATE payment_attempts
		SET outcome = $1, charge_id = $2, failure_reason = $3
		WHERE id = $4
	`

	result, err := r.q.ExecContext(ctx, query, outcome, chargeID, failureReason, id)
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
