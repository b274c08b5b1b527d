package domain

// LifecycleStatus is the booking's overall lifecycle state.
type LifecycleStatus string

const (
	LifecyclePending   LifecycleStatus = "PENDING"
	LifecycleCompleted LifecycleStatus = "COMPLETED"
	LifecycleCancelled LifecycleStatus = "CANCELLED"
)

// VerificationStatus is the post-trip charge verification state.
type VerificationStatus string

const (
	VerificationPendingCharges VerificationStatus = "PENDING_CHARGES"
	VerificationCompleted      VerificationStatus = "COMPLETED"
)

// PaymentStatus is the booking's money state.
type PaymentStatus string

const (
	PaymentStatusPaid           PaymentStatus = "PAID"
	PaymentStatusFailed         PaymentStatus = "PAYMENT_FAILED"
	PaymentStatusPendingCharges PaymentStatus = "PENDING_CHARGES"
	PaymentStatusChargesPaid    PaymentStatus = "CHARGES_PAID"
	PaymentStatusChargesWaived  PaymentStatus = "CHARGES_WAIVED"
	PaymentStatusPartialPaid    PaymentStatus = "PARTIAL_PAID"
	PaymentStatusAdjustedPaid   PaymentStatus = "ADJUSTED_PAID"
	PaymentStatusRefunded       PaymentStatus = "REFUNDED"
	PaymentStatusPartialRefund  PaymentStatus = "PARTIAL_REFUND"
)

// SettlementStatus is the triple of statuses a booking carries after
// settlement. The three fields are always derived together by one decision
// table so they cannot drift out of sync; call sites never set them
// independently.
type SettlementStatus struct {
	Lifecycle    LifecycleStatus
	Verification VerificationStatus
	Payment      PaymentStatus
}
