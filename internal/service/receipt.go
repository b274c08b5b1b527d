package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"settlement/internal/domain"
)

// ReceiptService builds settlement receipts.
type ReceiptService struct {
	notifications *NotificationService
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(notifications *NotificationService) *ReceiptService {
	return &ReceiptService{
		notifications: notifications,
	}
}

// GenerateReceiptRequest contains the parameters for generating a receipt.
type GenerateReceiptRequest struct {
	Breakdown domain.ChargeBreakdown
	Attempt   *domain.PaymentAttempt
	Status    domain.SettlementStatus
}

// GenerateReceipt builds the itemized statement for a settled trip.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, req GenerateReceiptRequest) (*domain.SettlementReceipt, error) {
	if req.Breakdown.BookingID == "" {
		return nil, ErrInvalidBookingID
	}

	receipt := &domain.SettlementReceipt{
		ID:            uuid.New().String(),
		BookingID:     req.Breakdown.BookingID,
		MileageCharge: req.Breakdown.Mileage.Charge,
		FuelCharge:    req.Breakdown.Fuel.Charge,
		LateCharge:    req.Breakdown.Late.Charge,
		DamageCharge:  req.Breakdown.Damage.Charge,
		Total:         req.Breakdown.Total,
		Status:        req.Status,
		Warnings:      req.Breakdown.Warnings,
		CreatedAt:     time.Now(),
	}

	if req.Attempt != nil {
		receipt.Outcome = req.Attempt.Outcome
		if req.Attempt.Outcome == domain.PaymentOutcomeSucceeded {
			receipt.AmountCharged = req.Attempt.Amount
		}
	}

	return receipt, nil
}
