package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"settlement/internal/domain"
	"settlement/internal/repository"
)

// RefundRequestRepository is a PostgreSQL implementation of
// repository.RefundRequestRepository.
type RefundRequestRepository struct {
	q Querier
}

// NewRefundRequestRepository creates a new PostgreSQL refund request repository.
func NewRefundRequestRepository(db *sql.DB) *RefundRequestRepository {
	return &RefundRequestRepository{q: db}
}

// NewRefundRequestRepositoryWithTx creates a refund request repository using a transaction.
func NewRefundRequestRepositoryWithTx(tx *sql.Tx) *RefundRequestRepository {
	return &RefundRequestRepository{q: tx}
}

const refundColumns = `
	id, booking_id, amount, reason, requested_by, requester_role, status,
	reviewed_by, review_notes, refund_txn_id, reversal_txn_id, reversal_error,
	created_at, reviewed_at, processed_at
`

// Create persists a new refund request.
func (r *RefundRequestRepository) Create(ctx context.Context, request *domain.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		request.ID,
		request.BookingID,
		request.Amount,
		request.Reason,
		request.RequestedBy,
		request.RequesterRole,
		request.Status,
		request.ReviewedBy,
		request.ReviewNotes,
		request.RefundTxnID,
		request.ReversalTxnID,
		request.ReversalError,
		request.CreatedAt,
		nullTime(request.ReviewedAt),
		nullTime(request.ProcessedAt),
	)

	return err
}

func scanRefundRequest(row *sql.Row) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	var reviewedAt, processedAt sql.NullTime
	err := row.Scan(
		&req.ID,
		&req.BookingID,
		&req.Amount,
		&req.Reason,
		&req.RequestedBy,
		&req.RequesterRole,
		&req.Status,
		&req.ReviewedBy,
		&req.ReviewNotes,
		&req.RefundTxnID,
		&req.ReversalTxnID,
		&req.ReversalError,
		&req.CreatedAt,
		&reviewedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		req.ReviewedAt = reviewedAt.Time
	}
	if processedAt.Valid {
		req.ProcessedAt = processedAt.Time
	}
	return &req, nil
}

// GetByID retrieves a refund request by ID.
func (r *RefundRequestRepository) GetByID(ctx context.Context, id string) (*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`

	request, err := scanRefundRequest(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return request, nil
}

// ListByBooking returns all refund requests for a booking, oldest first.
func (r *RefundRequestRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.RefundRequest, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM refund_requests
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.RefundRequest
	for rows.Next() {
		var req domain.RefundRequest
		var reviewedAt, processedAt sql.NullTime
		err := rows.Scan(
			&req.ID,
			&req.BookingID,
			&req.Amount,
			&req.Reason,
			&req.RequestedBy,
			&req.RequesterRole,
			&req.Status,
			&req.ReviewedBy,
			&req.ReviewNotes,
			&req.RefundTxnID,
			&req.ReversalTxnID,
			&req.ReversalError,
			&req.CreatedAt,
			&reviewedAt,
			&processedAt,
		)
		if err != nil {
			return nil, err
		}
		if reviewedAt.Valid {
			req.ReviewedAt = reviewedAt.Time
		}
		if processedAt.Valid {
			req.ProcessedAt = processedAt.Time
		}
		requests = append(requests, &req)
	}

	return requests, rows.Err()
}

// Update persists review and processing fields of a request.
func (r *RefundRequestRepository) Update(ctx context.Context, request *domain.RefundRequest) error {
	query := `
		UPDATE refund_requests
		SET status = $1, reviewed_by = $2, review_notes = $3, refund_txn_id = $4,
		    reversal_txn_id = $5, reversal_error = $6, reviewed_at = $7, processed_at = $8
		WHERE id = $9
	`

	result, err := r.q.ExecContext(ctx, query,
		request.Status,
		request.ReviewedBy,
		request.ReviewNotes,
		request.RefundTxnID,
		request.ReversalTxnID,
		request.ReversalError,
		nullTime(request.ReviewedAt),
		nullTime(request.ProcessedAt),
		request.ID,
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

// SumProcessedByBooking returns the total amount of all PROCESSED refunds
// for a booking.
func (r *RefundRequestRepository) SumProcessedByBooking(ctx context.Context, bookingID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM refund_requests
		WHERE booking_id = $1 AND status = $2
	`

	var total float64
	err := r.q.QueryRowContext(ctx, query, bookingID, domain.RefundStatusProcessed).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// LedgerRepository is a PostgreSQL implementation of repository.LedgerRepository.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{q: db}
}

// NewLedgerRepositoryWithTx creates a ledger repository using a transaction.
func NewLedgerRepositoryWithTx(tx *sql.Tx) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// GetBalance retrieves a host's running balance. Returns a zero balance if
// the host has no ledger row yet.
func (r *LedgerRepository) GetBalance(ctx context.Context, hostID string) (*domain.HostBalance, error) {
	query := `SELECT host_id, balance, updated_at FROM host_balances WHERE host_id = $1`

	var balance domain.HostBalance
	err := r.q.QueryRowContext(ctx, query, hostID).Scan(
		&balance.HostID,
		&balance.Balance,
		&balance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.HostBalance{HostID: hostID}, nil
		}
		return nil, err
	}

	return &balance, nil
}

// AdjustBalance applies a signed delta to a host's running balance.
func (r *LedgerRepository) AdjustBalance(ctx context.Context, hostID string, delta float64) error {
	query := `
		INSERT INTO host_balances (host_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (host_id)
		DO UPDATE SET balance = host_balances.balance + $2, updated_at = NOW()
	`

	_, err := r.q.ExecContext(ctx, query, hostID, delta)
	return err
}
