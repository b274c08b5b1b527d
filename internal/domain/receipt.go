package domain

import "time"

// SettlementReceipt is the itemized statement produced after a trip-end
// settlement: the four charge line items, what was actually captured, and
// the resulting booking status.
type SettlementReceipt struct {
	ID            string
	BookingID     string
	MileageCharge float64
	FuelCharge    float64
	LateCharge    float64
	DamageCharge  float64
	Total         float64
	AmountCharged float64
	Outcome       PaymentOutcome
	Status        SettlementStatus
	Warnings      []string
	CreatedAt     time.Time
}
