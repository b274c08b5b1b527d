package domain

import "time"

// RefundRequestStatus represents the review lifecycle of a refund request.
// Valid transitions: PENDING -> APPROVED | REJECTED, APPROVED -> PROCESSED.
// PROCESSED is terminal.
type RefundRequestStatus string

const (
	RefundStatusPending   RefundRequestStatus = "PENDING"
	RefundStatusApproved  RefundRequestStatus = "APPROVED"
	RefundStatusRejected  RefundRequestStatus = "REJECTED"
	RefundStatusProcessed RefundRequestStatus = "PROCESSED"
)

// RefundRequest is a staff-reviewed request to return money to a guest
// against a prior captured payment. Multiple requests may exist per booking;
// the sum of PROCESSED amounts never exceeds the original captured total.
type RefundRequest struct {
	ID            string
	BookingID     string
	Amount        float64
	Reason        string
	RequestedBy   string
	RequesterRole string
	Status        RefundRequestStatus
	ReviewedBy    string
	ReviewNotes   string

	// Set once the request is processed. ReversalError records a failed
	// best-effort transfer reversal for manual follow-up; it does not
	// prevent the request from being PROCESSED.
	RefundTxnID   string
	ReversalTxnID string
	ReversalError string

	CreatedAt   time.Time
	ReviewedAt  time.Time
	ProcessedAt time.Time
}
