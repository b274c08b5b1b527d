package domain

import "time"

// MileageCharge is the mileage-overage line item of a charge breakdown.
type MileageCharge struct {
	MilesUsed     int64
	MilesIncluded int64
	OverageMiles  int64
	PerMileRate   float64
	Charge        float64
}

// FuelCharge is the fuel-shortfall line item of a charge breakdown.
type FuelCharge struct {
	StartLevel        FuelLevel
	EndLevel          FuelLevel
	ShortfallFraction float64 // fraction of a full tank owed, 0..1
	TankCost          float64
	Charge            float64
}

// LateCharge is the late-return line item of a charge breakdown.
type LateCharge struct {
	ScheduledReturn time.Time
	ActualReturn    time.Time
	HoursLate       int
	PerHourFee      float64
	Charge          float64
}

// DamageCharge is the itemized-damage line item of a charge breakdown.
type DamageCharge struct {
	Items  []DamageItem
	Charge float64
}

// ChargeBreakdown is the full post-trip charge statement for a booking.
// It is computed once per trip-end event and never mutated; corrected
// telemetry produces a fresh breakdown. Total is always the sum of the
// four line item charges, rounded to cents.
type ChargeBreakdown struct {
	BookingID string
	Mileage   MileageCharge
	Fuel      FuelCharge
	Late      LateCharge
	Damage    DamageCharge
	Total     float64

	// Warnings flags telemetry anomalies (e.g. odometer rollback) that
	// were clamped rather than charged. They never affect Total.
	Warnings []string

	ComputedAt time.Time
}
