// Package gateway defines the payment gateway capability consumed by the
// settlement and refund services. The gateway moves money; it never touches
// booking state. Declines and authentication challenges are reported as
// outcomes in the result, not as errors: an error from any method means the
// gateway could not be reached or answered with something unusable.
package gateway

import (
	"context"

	"settlement/internal/domain"
)

// ChargeRequest describes a capture against a stored payment instrument.
type ChargeRequest struct {
	CustomerRef    string
	InstrumentRef  string
	Amount         float64
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeResult is the gateway's answer to a capture request.
type ChargeResult struct {
	ChargeID      string
	Outcome       domain.PaymentOutcome
	Amount        float64
	FailureReason string
}

// RefundRequest describes a refund against a previously captured charge.
type RefundRequest struct {
	ChargeID       string
	Amount         float64
	Reason         string
	IdempotencyKey string
}

// RefundResult is the gateway's answer to a refund request.
type RefundResult struct {
	RefundID string
	Amount   float64
}

// ReversalRequest describes clawing back part of a prior transfer to a
// connected marketplace participant.
type ReversalRequest struct {
	TransferID     string
	Amount         float64
	IdempotencyKey string
}

// ReversalResult is the gateway's answer to a transfer reversal.
type ReversalResult struct {
	ReversalID string
	Amount     float64
}

// PaymentGateway is the capability for moving money. Implementations must
// honor the supplied idempotency keys so caller-side retries cannot
// duplicate a charge, refund, or reversal.
type PaymentGateway interface {
	Capture(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	ReverseTransfer(ctx context.Context, req ReversalRequest) (*ReversalResult, error)
}
