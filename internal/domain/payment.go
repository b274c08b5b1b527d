package domain

import "time"

// PaymentOutcome represents the result of a capture attempt as reported by
// the gateway. Gateway declines are outcomes, not errors.
type PaymentOutcome string

const (
	PaymentOutcomePending        PaymentOutcome = "PENDING"
	PaymentOutcomeSucceeded      PaymentOutcome = "SUCCEEDED"
	PaymentOutcomeFailed         PaymentOutcome = "FAILED"
	PaymentOutcomeRequiresAction PaymentOutcome = "REQUIRES_ACTION"
)

// PaymentAttempt is one capture attempt against a guest's stored payment
// instrument. Attempts are append-only: a retry creates a new attempt that
// references the attempt it retries and carries an incremented attempt
// number. At most one attempt per booking may be SUCCEEDED.
type PaymentAttempt struct {
	ID               string
	BookingID        string
	Amount           float64
	CustomerRef      string
	InstrumentRef    string
	Description      string
	Outcome          PaymentOutcome
	FailureReason    string
	ChargeID         string // gateway-assigned identifier, set once the gateway responds
	IdempotencyKey   string
	Retry            bool
	OriginalChargeID string
	AttemptNumber    int
	CreatedAt        time.Time
}
