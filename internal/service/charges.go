package service

import (
	"math"
	"time"

	"settlement/internal/domain"
)

// Pricing holds the rate card used to turn trip telemetry into charges.
type Pricing struct {
	IncludedMilesPerDay int64
	PerMileRate         float64
	FullTankCost        float64
	LateFeePerHour      float64
}

// DefaultPricing returns the platform's standard rate card.
func DefaultPricing() Pricing {
	return Pricing{
		IncludedMilesPerDay: 200,
		PerMileRate:         0.45,
		FullTankCost:        300,
		LateFeePerHour:      50,
	}
}

// ComputeCharges turns trip telemetry into a charge breakdown. It is pure
// and deterministic: business conditions that owe nothing produce zero-charge
// line items, never errors. The total is rounded to cents once at the end so
// per-line rounding error cannot compound.
func ComputeCharges(t domain.TripTelemetry, p Pricing) domain.ChargeBreakdown {
	breakdown := domain.ChargeBreakdown{
		BookingID:  t.BookingID,
		ComputedAt: time.Now(),
	}

	breakdown.Mileage, breakdown.Warnings = computeMileage(t, p)
	breakdown.Fuel = computeFuel(t, p)
	breakdown.Late = computeLateness(t, p)
	breakdown.Damage = computeDamage(t)

	breakdown.Total = roundToCents(
		breakdown.Mileage.Charge +
			breakdown.Fuel.Charge +
			breakdown.Late.Charge +
			breakdown.Damage.Charge,
	)

	return breakdown
}

func computeMileage(t domain.TripTelemetry, p Pricing) (domain.MileageCharge, []string) {
	used := t.EndOdometer - t.StartOdometer

	var warnings []string
	if used < 0 {
		// Odometer rollback or bad data: never a negative charge, but the
		// anomaly is surfaced to the caller instead of silently absorbed.
		warnings = append(warnings, "negative mileage delta: odometer readings inconsistent")
		used = 0
	}

	included := p.IncludedMilesPerDay * int64(t.DurationDays)
	overage := used - included
	if overage < 0 {
		overage = 0
	}

	return domain.MileageCharge{
		MilesUsed:     used,
		MilesIncluded: included,
		OverageMiles:  overage,
		PerMileRate:   p.PerMileRate,
		Charge:        float64(overage) * p.PerMileRate,
	}, warnings
}

func computeFuel(t domain.TripTelemetry, p Pricing) domain.FuelCharge {
	charge := domain.FuelCharge{
		StartLevel: t.StartFuel,
		EndLevel:   t.EndFuel,
		TankCost:   p.FullTankCost,
	}

	startRank, startOK := t.StartFuel.Rank()
	endRank, endOK := t.EndFuel.Rank()
	if !startOK || !endOK {
		// Gauge not captured at one or both handoffs: no shortfall owed.
		return charge
	}

	shortfall := startRank - endRank
	if shortfall < 0 {
		shortfall = 0
	}

	charge.ShortfallFraction = float64(shortfall) / 4
	charge.Charge = charge.ShortfallFraction * p.FullTankCost
	return charge
}

func computeLateness(t domain.TripTelemetry, p Pricing) domain.LateCharge {
	charge := domain.LateCharge{
		ScheduledReturn: t.ScheduledReturn,
		ActualReturn:    t.ActualReturn,
		PerHourFee:      p.LateFeePerHour,
	}

	late := t.ActualReturn.Sub(t.ScheduledReturn)
	if late <= 0 {
		return charge
	}

	charge.HoursLate = int(math.Ceil(late.Hours()))
	charge.Charge = float64(charge.HoursLate) * p.LateFeePerHour
	return charge
}

func computeDamage(t domain.TripTelemetry) domain.DamageCharge {
	charge := domain.DamageCharge{Items: t.Damage}
	for _, item := range t.Damage {
		charge.Charge += item.Cost
	}
	return charge
}

// roundToCents rounds an amount to minor-currency-unit precision.
func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
