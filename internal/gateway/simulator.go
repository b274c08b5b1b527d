package gateway

import (
	"context"

	"github.com/google/uuid"

	"settlement/internal/domain"
)

// Simulator is an in-memory PaymentGateway for local development and
// environments without gateway credentials. Every operation succeeds.
type Simulator struct{}

// NewSimulator creates a new simulated gateway.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Capture simulates a successful capture.
func (s *Simulator) Capture(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	return &ChargeResult{
		ChargeID: "sim_ch_" + uuid.New().String(),
		Outcome:  domain.PaymentOutcomeSucceeded,
		Amount:   req.Amount,
	}, nil
}

// Refund simulates a successful refund.
func (s *Simulator) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return &RefundResult{
		RefundID: "sim_re_" + uuid.New().String(),
		Amount:   req.Amount,
	}, nil
}

// ReverseTransfer simulates a successful transfer reversal.
func (s *Simulator) ReverseTransfer(ctx context.Context, req ReversalRequest) (*ReversalResult, error) {
	return &ReversalResult{
		ReversalID: "sim_trr_" + uuid.New().String(),
		Amount:     req.Amount,
	}, nil
}

var _ PaymentGateway = (*Simulator)(nil)
var _ PaymentGateway = (*StripeGateway)(nil)
