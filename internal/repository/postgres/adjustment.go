package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"settlement/internal/domain"
)

// WaiveRepository is a PostgreSQL implementation of repository.WaiveRepository.
type WaiveRepository struct {
	q Querier
}

// NewWaiveRepository creates a new PostgreSQL waive repository.
func NewWaiveRepository(db *sql.DB) *WaiveRepository {
	return &WaiveRepository{q: db}
}

// NewWaiveRepositoryWithTx creates a waive repository using a transaction.
func NewWaiveRepositoryWithTx(tx *sql.Tx) *WaiveRepository {
	return &WaiveRepository{q: tx}
}

// Create persists a new waive record.
func (r *WaiveRepository) Create(ctx context.Context, record *domain.WaiveRecord) error {
	query := `
		INSERT INTO waive_records (id, booking_id, original_amount, waive_percent,
			waived_amount, remaining_amount, reason, staff_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		record.ID,
		record.BookingID,
		record.OriginalAmount,
		record.WaivePercent,
		record.WaivedAmount,
		record.RemainingAmount,
		record.Reason,
		record.StaffID,
		record.CreatedAt,
	)

	return err
}

// ListByBooking returns all waive records for a booking, oldest first.
func (r *WaiveRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.WaiveRecord, error) {
	query := `
		SELECT id, booking_id, original_amount, waive_percent, waived_amount,
		       remaining_amount, reason, staff_id, created_at
		FROM waive_records
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.WaiveRecord
	for rows.Next() {
		var w domain.WaiveRecord
		err := rows.Scan(
			&w.ID,
			&w.BookingID,
			&w.OriginalAmount,
			&w.WaivePercent,
			&w.WaivedAmount,
			&w.RemainingAmount,
			&w.Reason,
			&w.StaffID,
			&w.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, &w)
	}

	return records, rows.Err()
}

// AdjustmentRepository is a PostgreSQL implementation of
// repository.AdjustmentRepository. Line items are stored as a JSONB column
// since they are read back whole, never queried individually.
type AdjustmentRepository struct {
	q Querier
}

// NewAdjustmentRepository creates a new PostgreSQL adjustment repository.
func NewAdjustmentRepository(db *sql.DB) *AdjustmentRepository {
	return &AdjustmentRepository{q: db}
}

// NewAdjustmentRepositoryWithTx creates an adjustment repository using a transaction.
func NewAdjustmentRepositoryWithTx(tx *sql.Tx) *AdjustmentRepository {
	return &AdjustmentRepository{q: tx}
}

// Create persists a new adjustment record.
func (r *AdjustmentRepository) Create(ctx context.Context, record *domain.AdjustmentRecord) error {
	items, err := json.Marshal(record.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO adjustment_records (id, booking_id, items, original_total,
			adjusted_total, total_adjustment, staff_id, charge_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.q.ExecContext(ctx, query,
		record.ID,
		record.BookingID,
		items,
		record.OriginalTotal,
		record.AdjustedTotal,
		record.TotalAdjustment,
		record.StaffID,
		record.ChargeID,
		record.CreatedAt,
	)

	return err
}

// ListByBooking returns all adjustment records for a booking, oldest first.
func (r *AdjustmentRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.AdjustmentRecord, error) {
	query := `
		SELECT id, booking_id, items, original_total, adjusted_total,
		       total_adjustment, staff_id, charge_id, created_at
		FROM adjustment_records
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AdjustmentRecord
	for rows.Next() {
		var a domain.AdjustmentRecord
		var items []byte
		err := rows.Scan(
			&a.ID,
			&a.BookingID,
			&items,
			&a.OriginalTotal,
			&a.AdjustedTotal,
			&a.TotalAdjustment,
			&a.StaffID,
			&a.ChargeID,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &a.Items); err != nil {
			return nil, err
		}
		records = append(records, &a)
	}

	return records, rows.Err()
}
