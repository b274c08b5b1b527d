package domain

import "time"

// FuelLevel represents a discrete reading of the fuel gauge.
type FuelLevel string

const (
	FuelLevelUnknown      FuelLevel = ""
	FuelLevelEmpty        FuelLevel = "EMPTY"
	FuelLevelQuarter      FuelLevel = "QUARTER"
	FuelLevelHalf         FuelLevel = "HALF"
	FuelLevelThreeQuarter FuelLevel = "THREE_QUARTER"
	FuelLevelFull         FuelLevel = "FULL"
)

// fuelRanks orders the discrete fuel levels in quarter-tank steps.
var fuelRanks = map[FuelLevel]int{
	FuelLevelEmpty:        0,
	FuelLevelQuarter:      1,
	FuelLevelHalf:         2,
	FuelLevelThreeQuarter: 3,
	FuelLevelFull:         4,
}

// Rank returns the level's position on the quarter-tank scale and whether
// the level is a known reading. An unknown level means the gauge was not
// captured at handoff, not that the tank is empty.
func (f FuelLevel) Rank() (int, bool) {
	rank, ok := fuelRanks[f]
	return rank, ok
}

// DamageItem is one externally-assessed damage entry. Costs are supplied by
// the damage assessment workflow, never derived here.
type DamageItem struct {
	Type string
	Cost float64
}

// TripTelemetry captures the readings taken when a rental trip ends.
// It is produced by the trip-completion workflow and read-only here.
type TripTelemetry struct {
	BookingID       string
	StartOdometer   int64
	EndOdometer     int64
	StartFuel       FuelLevel
	EndFuel         FuelLevel
	ScheduledReturn time.Time
	ActualReturn    time.Time
	DurationDays    int
	Damage          []DamageItem
}
