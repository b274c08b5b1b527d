package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"settlement/internal/domain"
	"settlement/internal/service"
)

// SettlementHandler handles HTTP requests for trip settlement.
type SettlementHandler struct {
	settlementService *service.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementService *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService}
}

// TelemetryRequest is the HTTP request body carrying trip-end telemetry.
type TelemetryRequest struct {
	BookingID       string              `json:"booking_id"`
	StartOdometer   int64               `json:"start_odometer"`
	EndOdometer     int64               `json:"end_odometer"`
	StartFuel       string              `json:"start_fuel"`
	EndFuel         string              `json:"end_fuel"`
	ScheduledReturn time.Time           `json:"scheduled_return"`
	ActualReturn    time.Time           `json:"actual_return"`
	DurationDays    int                 `json:"duration_days"`
	Damage          []DamageItemRequest `json:"damage,omitempty"`
}

// DamageItemRequest is one itemized damage entry in a telemetry request.
type DamageItemRequest struct {
	Type string  `json:"type"`
	Cost float64 `json:"cost"`
}

func (r TelemetryRequest) toDomain() domain.TripTelemetry {
	telemetry := domain.TripTelemetry{
		BookingID:       r.BookingID,
		StartOdometer:   r.StartOdometer,
		EndOdometer:     r.EndOdometer,
		StartFuel:       domain.FuelLevel(r.StartFuel),
		EndFuel:         domain.FuelLevel(r.EndFuel),
		ScheduledReturn: r.ScheduledReturn,
		ActualReturn:    r.ActualReturn,
		DurationDays:    r.DurationDays,
	}
	for _, item := range r.Damage {
		telemetry.Damage = append(telemetry.Damage, domain.DamageItem{
			Type: item.Type,
			Cost: item.Cost,
		})
	}
	return telemetry
}

// BreakdownResponse is the charge breakdown in HTTP responses.
type BreakdownResponse struct {
	BookingID     string   `json:"booking_id"`
	MileageCharge float64  `json:"mileage_charge"`
	MilesUsed     int64    `json:"miles_used"`
	MilesIncluded int64    `json:"miles_included"`
	OverageMiles  int64    `json:"overage_miles"`
	FuelCharge    float64  `json:"fuel_charge"`
	LateCharge    float64  `json:"late_charge"`
	HoursLate     int      `json:"hours_late"`
	DamageCharge  float64  `json:"damage_charge"`
	Total         float64  `json:"total"`
	Warnings      []string `json:"warnings,omitempty"`
}

func toBreakdownResponse(b domain.ChargeBreakdown) BreakdownResponse {
	return BreakdownResponse{
		BookingID:     b.BookingID,
		MileageCharge: b.Mileage.Charge,
		MilesUsed:     b.Mileage.MilesUsed,
		MilesIncluded: b.Mileage.MilesIncluded,
		OverageMiles:  b.Mileage.OverageMiles,
		FuelCharge:    b.Fuel.Charge,
		LateCharge:    b.Late.Charge,
		HoursLate:     b.Late.HoursLate,
		DamageCharge:  b.Damage.Charge,
		Total:         b.Total,
		Warnings:      b.Warnings,
	}
}

// AttemptResponse is a capture attempt in HTTP responses.
type AttemptResponse struct {
	ID               string  `json:"id"`
	BookingID        string  `json:"booking_id"`
	Amount           float64 `json:"amount"`
	Outcome          string  `json:"outcome"`
	FailureReason    string  `json:"failure_reason,omitempty"`
	ChargeID         string  `json:"charge_id,omitempty"`
	Retry            bool    `json:"retry,omitempty"`
	OriginalChargeID string  `json:"original_charge_id,omitempty"`
	AttemptNumber    int     `json:"attempt_number"`
}

func toAttemptResponse(a *domain.PaymentAttempt) *AttemptResponse {
	if a == nil {
		return nil
	}
	return &AttemptResponse{
		ID:               a.ID,
		BookingID:        a.BookingID,
		Amount:           a.Amount,
		Outcome:          string(a.Outcome),
		FailureReason:    a.FailureReason,
		ChargeID:         a.ChargeID,
		Retry:            a.Retry,
		OriginalChargeID: a.OriginalChargeID,
		AttemptNumber:    a.AttemptNumber,
	}
}

// StatusResponse is the settlement status triple in HTTP responses.
type StatusResponse struct {
	Lifecycle    string `json:"lifecycle_status"`
	Verification string `json:"verification_status"`
	Payment      string `json:"payment_status"`
}

func toStatusResponse(s domain.SettlementStatus) StatusResponse {
	return StatusResponse{
		Lifecycle:    string(s.Lifecycle),
		Verification: string(s.Verification),
		Payment:      string(s.Payment),
	}
}

// SettleTripResponse is the HTTP response for a trip-end settlement.
type SettleTripResponse struct {
	Breakdown BreakdownResponse `json:"breakdown"`
	Attempt   *AttemptResponse  `json:"attempt,omitempty"`
	Status    StatusResponse    `json:"status"`
	ReceiptID string            `json:"receipt_id,omitempty"`
}

// SettleTrip handles POST /v1/settlements
func (h *SettlementHandler) SettleTrip(c *gin.Context) {
	var req TelemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.settlementService.SettleTrip(c.Request.Context(), service.SettleTripRequest{
		Telemetry: req.toDomain(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := SettleTripResponse{
		Breakdown: toBreakdownResponse(result.Breakdown),
		Attempt:   toAttemptResponse(result.Attempt),
		Status:    toStatusResponse(result.Status),
	}
	if result.Receipt != nil {
		response.ReceiptID = result.Receipt.ID
	}

	respondJSON(c, http.StatusOK, response)
}

// PreviewCharges handles POST /v1/settlements/preview
func (h *SettlementHandler) PreviewCharges(c *gin.Context) {
	var req TelemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	breakdown, err := h.settlementService.PreviewCharges(c.Request.Context(), req.toDomain())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBreakdownResponse(breakdown))
}

// ChargeFeesRequest is the HTTP request body for charging additional fees.
type ChargeFeesRequest struct {
	CustomerRef   string            `json:"customer_ref"`
	InstrumentRef string            `json:"instrument_ref"`
	Amount        float64           `json:"amount"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ChargeFees handles POST /v1/settlements/:bookingID/charge
func (h *SettlementHandler) ChargeFees(c *gin.Context) {
	var req ChargeFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	attempt, err := h.settlementService.ChargeAdditionalFees(c.Request.Context(), service.ChargeFeesRequest{
		BookingID:     c.Param("bookingID"),
		CustomerRef:   req.CustomerRef,
		InstrumentRef: req.InstrumentRef,
		Amount:        req.Amount,
		Description:   req.Description,
		Metadata:      req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toAttemptResponse(attempt))
}

// RetryChargeRequest is the HTTP request body for retrying a failed charge.
type RetryChargeRequest struct {
	CustomerRef       string            `json:"customer_ref"`
	InstrumentRef     string            `json:"instrument_ref"`
	Amount            float64           `json:"amount"`
	OriginalAttemptID string            `json:"original_attempt_id"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// RetryCharge handles POST /v1/settlements/:bookingID/retry
func (h *SettlementHandler) RetryCharge(c *gin.Context) {
	var req RetryChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	attempt, err := h.settlementService.RetryFailedCharge(c.Request.Context(), service.RetryChargeRequest{
		BookingID:         c.Param("bookingID"),
		CustomerRef:       req.CustomerRef,
		InstrumentRef:     req.InstrumentRef,
		Amount:            req.Amount,
		OriginalAttemptID: req.OriginalAttemptID,
		Metadata:          req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toAttemptResponse(attempt))
}

// WaiveRequest is the HTTP request body for waiving charges.
type WaiveRequest struct {
	OriginalAmount float64 `json:"original_amount"`
	Percent        float64 `json:"percent"`
	Reason         string  `json:"reason"`
	StaffID        string  `json:"staff_id"`
}

// WaiveResponse is the HTTP response for a waive.
type WaiveResponse struct {
	ID              string  `json:"id"`
	BookingID       string  `json:"booking_id"`
	OriginalAmount  float64 `json:"original_amount"`
	WaivePercent    float64 `json:"waive_percent"`
	WaivedAmount    float64 `json:"waived_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
	Reason          string  `json:"reason"`
	StaffID         string  `json:"staff_id"`
}

// WaiveCharges handles POST /v1/settlements/:bookingID/waive
func (h *SettlementHandler) WaiveCharges(c *gin.Context) {
	var req WaiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	record, err := h.settlementService.WaiveCharges(c.Request.Context(), service.WaiveRequest{
		BookingID:      c.Param("bookingID"),
		OriginalAmount: req.OriginalAmount,
		Percent:        req.Percent,
		Reason:         req.Reason,
		StaffID:        req.StaffID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, WaiveResponse{
		ID:              record.ID,
		BookingID:       record.BookingID,
		OriginalAmount:  record.OriginalAmount,
		WaivePercent:    record.WaivePercent,
		WaivedAmount:    record.WaivedAmount,
		RemainingAmount: record.RemainingAmount,
		Reason:          record.Reason,
		StaffID:         record.StaffID,
	})
}

// AdjustRequest is the HTTP request body for an itemized adjustment.
type AdjustRequest struct {
	CustomerRef   string              `json:"customer_ref"`
	InstrumentRef string              `json:"instrument_ref"`
	StaffID       string              `json:"staff_id"`
	Items         []AdjustItemRequest `json:"items"`
}

// AdjustItemRequest is one line-item decision in an adjustment request.
type AdjustItemRequest struct {
	LineItem       string  `json:"line_item"`
	OriginalAmount float64 `json:"original_amount"`
	AdjustedAmount float64 `json:"adjusted_amount"`
	Included       bool    `json:"included"`
}

// AdjustResponse is the HTTP response for an adjustment.
type AdjustResponse struct {
	RecordID        string           `json:"record_id"`
	OriginalTotal   float64          `json:"original_total"`
	AdjustedTotal   float64          `json:"adjusted_total"`
	TotalAdjustment float64          `json:"total_adjustment"`
	Attempt         *AttemptResponse `json:"attempt,omitempty"`
	Status          StatusResponse   `json:"status"`
}

// AdjustCharges handles POST /v1/settlements/:bookingID/adjust
func (h *SettlementHandler) AdjustCharges(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	items := make([]domain.AdjustmentItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.AdjustmentItem{
			LineItem:       item.LineItem,
			OriginalAmount: item.OriginalAmount,
			AdjustedAmount: item.AdjustedAmount,
			Included:       item.Included,
		})
	}

	result, err := h.settlementService.AdjustAndCharge(c.Request.Context(), service.AdjustRequest{
		BookingID:     c.Param("bookingID"),
		CustomerRef:   req.CustomerRef,
		InstrumentRef: req.InstrumentRef,
		Items:         items,
		StaffID:       req.StaffID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, AdjustResponse{
		RecordID:        result.Record.ID,
		OriginalTotal:   result.Record.OriginalTotal,
		AdjustedTotal:   result.Record.AdjustedTotal,
		TotalAdjustment: result.Record.TotalAdjustment,
		Attempt:         toAttemptResponse(result.Attempt),
		Status:          toStatusResponse(result.Status),
	})
}

// SettlementViewResponse is the HTTP response for a booking's settlement state.
type SettlementViewResponse struct {
	BookingID     string             `json:"booking_id"`
	Status        StatusResponse     `json:"status"`
	CapturedTotal float64            `json:"captured_total"`
	RefundedTotal float64            `json:"refunded_total"`
	Attempts      []*AttemptResponse `json:"attempts,omitempty"`
	WaiveCount    int                `json:"waive_count"`
	AdjustCount   int                `json:"adjustment_count"`
}

// GetSettlement handles GET /v1/settlements/:bookingID
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	view, err := h.settlementService.GetSettlement(c.Request.Context(), c.Param("bookingID"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := SettlementViewResponse{
		BookingID:     view.Booking.ID,
		Status:        toStatusResponse(view.Booking.Status),
		CapturedTotal: view.Booking.CapturedTotal,
		RefundedTotal: view.Booking.RefundedTotal,
		WaiveCount:    len(view.Waives),
		AdjustCount:   len(view.Adjustments),
	}
	for _, attempt := range view.Attempts {
		response.Attempts = append(response.Attempts, toAttemptResponse(attempt))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetStatus handles GET /v1/settlements/:bookingID/status
func (h *SettlementHandler) GetStatus(c *gin.Context) {
	status, err := h.settlementService.GetSettlementStatus(c.Request.Context(), c.Param("bookingID"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toStatusResponse(status))
}
