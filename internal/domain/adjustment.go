package domain

import "time"

// WaiveRecord documents a staff decision to forgive some or all of a
// booking's post-trip charges. It is pure bookkeeping: no money moves when
// a waive is recorded.
type WaiveRecord struct {
	ID              string
	BookingID       string
	OriginalAmount  float64
	WaivePercent    float64 // 0..100 inclusive
	WaivedAmount    float64
	RemainingAmount float64
	Reason          string
	StaffID         string
	CreatedAt       time.Time
}

// AdjustmentItem is a staff decision over one line item of a charge
// breakdown. AdjustedAmount may differ from OriginalAmount (e.g. reduced
// for goodwill); an excluded item contributes nothing to the adjusted total.
type AdjustmentItem struct {
	LineItem       string
	OriginalAmount float64
	AdjustedAmount float64
	Included       bool
}

// AdjustmentRecord is the audit record of an itemized staff adjustment.
// If AdjustedTotal is zero the record alone documents the outcome and no
// capture attempt is made.
type AdjustmentRecord struct {
	ID              string
	BookingID       string
	Items           []AdjustmentItem
	OriginalTotal   float64
	AdjustedTotal   float64
	TotalAdjustment float64
	StaffID         string
	ChargeID        string // set when the adjusted total was captured
	CreatedAt       time.Time
}
