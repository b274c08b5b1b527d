package service

import "settlement/internal/domain"

// ResolutionAction is an explicit staff decision that closes out a
// booking's post-trip charges.
type ResolutionAction string

const (
	ResolutionWaive        ResolutionAction = "waive"
	ResolutionPartialWaive ResolutionAction = "partial_waive"
	ResolutionAdjust       ResolutionAction = "adjust"
)

// ResolveSettlementStatus maps a charge total, a payment outcome, and the
// booking's dispute flag to the status triple. It is the only producer of
// the triple on the automatic path, and it is total: every input combination
// yields exactly one result. First match wins:
//
//  1. nothing owed
//  2. open dispute (outranks a successful capture already in hand)
//  3. capture succeeded
//  4. capture failed
//  5. anything else is still pending (includes requires_action)
func ResolveSettlementStatus(chargeTotal float64, outcome domain.PaymentOutcome, hasOpenDispute bool) domain.SettlementStatus {
	switch {
	case chargeTotal == 0:
		return domain.SettlementStatus{
			Lifecycle:    domain.LifecycleCompleted,
			Verification: domain.VerificationCompleted,
			Payment:      domain.PaymentStatusPaid,
		}

	case hasOpenDispute:
		return domain.SettlementStatus{
			Lifecycle:    domain.LifecyclePending,
			Verification: domain.VerificationPendingCharges,
			Payment:      domain.PaymentStatusPendingCharges,
		}

	case outcome == domain.PaymentOutcomeSucceeded:
		return domain.SettlementStatus{
			Lifecycle:    domain.LifecycleCompleted,
			Verification: domain.VerificationCompleted,
			Payment:      domain.PaymentStatusChargesPaid,
		}

	case outcome == domain.PaymentOutcomeFailed:
		return domain.SettlementStatus{
			Lifecycle:    domain.LifecyclePending,
			Verification: domain.VerificationPendingCharges,
			Payment:      domain.PaymentStatusFailed,
		}

	default:
		return domain.SettlementStatus{
			Lifecycle:    domain.LifecyclePending,
			Verification: domain.VerificationPendingCharges,
			Payment:      domain.PaymentStatusPendingCharges,
		}
	}
}

// ResolveStaffAction maps an explicit staff resolution to the status triple.
// A staff action is the authority that closes the loop, so lifecycle and
// verification are always terminal-success regardless of amount.
func ResolveStaffAction(action ResolutionAction) (domain.SettlementStatus, error) {
	status := domain.SettlementStatus{
		Lifecycle:    domain.LifecycleCompleted,
		Verification: domain.VerificationCompleted,
	}

	switch action {
	case ResolutionWaive:
		status.Payment = domain.PaymentStatusChargesWaived
	case ResolutionPartialWaive:
		status.Payment = domain.PaymentStatusPartialPaid
	case ResolutionAdjust:
		status.Payment = domain.PaymentStatusAdjustedPaid
	default:
		return domain.SettlementStatus{}, ErrInvalidResolutionAction
	}

	return status, nil
}

// ResolveRefundStatus maps the booking's refund position to the status
// triple. A fully refunded booking is cancelled; a partially refunded one
// stays completed.
func ResolveRefundStatus(capturedTotal, refundedTotal float64) domain.SettlementStatus {
	if refundedTotal >= capturedTotal {
		return domain.SettlementStatus{
			Lifecycle:    domain.LifecycleCancelled,
			Verification: domain.VerificationCompleted,
			Payment:      domain.PaymentStatusRefunded,
		}
	}

	return domain.SettlementStatus{
		Lifecycle:    domain.LifecycleCompleted,
		Verification: domain.VerificationCompleted,
		Payment:      domain.PaymentStatusPartialRefund,
	}
}
