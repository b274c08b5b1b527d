package domain

import "time"

// Booking is the settlement core's view of a rental booking. Creation and
// the broader rental lifecycle live in the booking workflow; this subsystem
// reads payment references and writes settlement state and money totals.
type Booking struct {
	ID            string
	GuestID       string // gateway customer reference
	InstrumentRef string // stored payment instrument reference

	// Host (marketplace participant) references for split payments.
	// HostTransferID is empty when the original payment was not split.
	HostID         string
	HostAccountRef string
	HostTransferID string
	HostPayout     float64 // amount transferred to the host at original settlement

	// Original captured rental payment, the base refunds draw against.
	CapturedChargeID string
	CapturedTotal    float64
	RefundedTotal    float64 // sum of all PROCESSED refund amounts

	HasOpenDispute bool

	Status    SettlementStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingRefundable is the amount still eligible for refund: the original
// captured total minus everything already processed.
func (b *Booking) RemainingRefundable() float64 {
	remaining := b.CapturedTotal - b.RefundedTotal
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HostBalance is a marketplace participant's running earnings balance.
// Transfer reversals decrement it.
type HostBalance struct {
	HostID    string
	Balance   float64
	UpdatedAt time.Time
}
