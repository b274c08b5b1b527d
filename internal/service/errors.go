package service

import "errors"

var (
	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidCustomerRef is returned when the gateway customer reference is empty.
	ErrInvalidCustomerRef = errors.New("invalid customer reference")

	// ErrInvalidInstrumentRef is returned when the payment instrument reference is empty.
	ErrInvalidInstrumentRef = errors.New("invalid payment instrument reference")

	// ErrInvalidChargeAmount is returned when a charge amount is not positive.
	ErrInvalidChargeAmount = errors.New("invalid charge amount")

	// ErrInvalidOriginalCharge is returned when a retry does not reference a prior attempt.
	ErrInvalidOriginalCharge = errors.New("invalid original charge reference")

	// ErrChargeAlreadySettled is returned when a capture attempt targets a
	// booking that already has a succeeded attempt.
	ErrChargeAlreadySettled = errors.New("charge already settled for booking")

	// ErrSettlementInProgress is returned when another capture attempt holds
	// the booking's settlement lock.
	ErrSettlementInProgress = errors.New("settlement already in progress for booking")

	// ErrWaivePercentOutOfRange is returned when a waive percentage is outside [0,100].
	ErrWaivePercentOutOfRange = errors.New("waive percentage out of range")

	// ErrInvalidStaffID is returned when the acting staff identity is empty.
	ErrInvalidStaffID = errors.New("invalid staff id")

	// ErrNoAdjustmentItems is returned when an adjustment carries no line items.
	ErrNoAdjustmentItems = errors.New("adjustment has no line items")

	// ErrInvalidResolutionAction is returned for an unrecognized staff resolution action.
	ErrInvalidResolutionAction = errors.New("invalid resolution action")

	// ErrInvalidRefundAmount is returned when a refund amount is not positive.
	ErrInvalidRefundAmount = errors.New("invalid refund amount")

	// ErrInvalidRequestID is returned when a refund request ID is empty.
	ErrInvalidRequestID = errors.New("invalid refund request id")

	// ErrInvalidHostID is returned when a host identity is empty.
	ErrInvalidHostID = errors.New("invalid host id")

	// ErrRefundNotPending is returned when reviewing a request not in PENDING state.
	ErrRefundNotPending = errors.New("refund request not pending review")

	// ErrRefundNotApproved is returned when processing a request not in APPROVED state.
	ErrRefundNotApproved = errors.New("refund request not approved")

	// ErrNoCapturedPayment is returned when a refund targets a booking with
	// no prior captured payment.
	ErrNoCapturedPayment = errors.New("no captured payment for booking")

	// ErrRefundExceedsRemaining is returned when a refund would push the
	// processed total past the original captured total.
	ErrRefundExceedsRemaining = errors.New("refund exceeds remaining refundable amount")
)
