package gateway

import (
	"context"
	"errors"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"settlement/internal/domain"
)

// StripeGateway implements PaymentGateway on the Stripe API. Captures are
// off-session PaymentIntents against the guest's saved instrument; refunds
// target the original PaymentIntent; reversals target the Connect transfer
// made to the host at original settlement.
type StripeGateway struct {
	api      *client.API
	currency string
}

// NewStripeGateway creates a Stripe-backed gateway.
func NewStripeGateway(secretKey, currency string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeGateway{
		api:      api,
		currency: currency,
	}
}

// Capture charges the guest's stored instrument off-session.
func (g *StripeGateway) Capture(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(g.currency),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.InstrumentRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			// Declined by the issuer: an outcome, not an error. The
			// decline may still carry the failed intent's id.
			result := &ChargeResult{
				Outcome:       domain.PaymentOutcomeFailed,
				FailureReason: stripeErr.Msg,
			}
			if stripeErr.PaymentIntent != nil {
				result.ChargeID = stripeErr.PaymentIntent.ID
			}
			return result, nil
		}
		return nil, err
	}

	result := &ChargeResult{
		ChargeID: pi.ID,
		Amount:   fromMinorUnits(pi.Amount),
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Outcome = domain.PaymentOutcomeSucceeded
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation:
		result.Outcome = domain.PaymentOutcomeRequiresAction
		result.FailureReason = "authentication required"
	default:
		result.Outcome = domain.PaymentOutcomeFailed
		if pi.LastPaymentError != nil {
			result.FailureReason = pi.LastPaymentError.Msg
		}
	}

	return result, nil
}

// Refund returns money to the guest's original payment instrument.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ChargeID),
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	ref, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, err
	}
	if ref.Status == stripe.RefundStatusFailed {
		return nil, errors.New("stripe refund failed: " + string(ref.FailureReason))
	}

	return &RefundResult{
		RefundID: ref.ID,
		Amount:   fromMinorUnits(ref.Amount),
	}, nil
}

// ReverseTransfer claws back part of a prior payout transfer to a host.
func (g *StripeGateway) ReverseTransfer(ctx context.Context, req ReversalRequest) (*ReversalResult, error) {
	params := &stripe.TransferReversalParams{
		ID:     stripe.String(req.TransferID),
		Amount: stripe.Int64(toMinorUnits(req.Amount)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}

	rev, err := g.api.TransferReversals.New(params)
	if err != nil {
		return nil, err
	}

	return &ReversalResult{
		ReversalID: rev.ID,
		Amount:     fromMinorUnits(rev.Amount),
	}, nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
