package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"settlement/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationSettlementCharged NotificationType = "SETTLEMENT_CHARGED"
	NotificationChargeFailed      NotificationType = "CHARGE_FAILED"
	NotificationChargesWaived     NotificationType = "CHARGES_WAIVED"
	NotificationChargesAdjusted   NotificationType = "CHARGES_ADJUSTED"
	NotificationRefundProcessed   NotificationType = "REFUND_PROCESSED"
	NotificationReversalFollowUp  NotificationType = "REVERSAL_FOLLOW_UP"
)

// Notification represents a notification to be emitted. The payload is a
// closed set of fields per event kind, not a free-form blob.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	BookingID   string
	Amount      float64
	Reference   string
	CreatedAt   time.Time
}

// NotificationService emits settlement events to guests and to the ops
// follow-up queue. Emission is fire-and-forget: callers invoke it only
// after their transaction commits and ignore its errors, so a delivery
// problem can never roll back or block a settlement.
type NotificationService struct {
	// Delivery (email/SMS/push) is owned by the notification platform;
	// this service only hands events over.
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifySettlementCharged tells the guest their post-trip charges were captured.
func (s *NotificationService) NotifySettlementCharged(ctx context.Context, guestID string, attempt *domain.PaymentAttempt) error {
	return s.send(ctx, Notification{
		Type:        NotificationSettlementCharged,
		RecipientID: guestID,
		Title:       "Trip Charges Collected",
		Message:     fmt.Sprintf("We charged $%.2f in post-trip fees to your card on file.", attempt.Amount),
		BookingID:   attempt.BookingID,
		Amount:      attempt.Amount,
		Reference:   attempt.ChargeID,
	})
}

// NotifyChargeFailed tells the guest a capture was declined.
func (s *NotificationService) NotifyChargeFailed(ctx context.Context, guestID string, attempt *domain.PaymentAttempt) error {
	return s.send(ctx, Notification{
		Type:        NotificationChargeFailed,
		RecipientID: guestID,
		Title:       "Payment Failed",
		Message:     fmt.Sprintf("We could not collect $%.2f in post-trip fees: %s", attempt.Amount, attempt.FailureReason),
		BookingID:   attempt.BookingID,
		Amount:      attempt.Amount,
		Reference:   attempt.ID,
	})
}

// NotifyChargesWaived tells the guest their charges were forgiven.
func (s *NotificationService) NotifyChargesWaived(ctx context.Context, bookingID string, record *domain.WaiveRecord) error {
	return s.send(ctx, Notification{
		Type:        NotificationChargesWaived,
		RecipientID: bookingID,
		Title:       "Charges Waived",
		Message:     fmt.Sprintf("$%.2f of your post-trip charges were waived.", record.WaivedAmount),
		BookingID:   bookingID,
		Amount:      record.WaivedAmount,
		Reference:   record.ID,
	})
}

// NotifyChargesAdjusted tells the guest their charges were adjusted.
func (s *NotificationService) NotifyChargesAdjusted(ctx context.Context, bookingID string, record *domain.AdjustmentRecord) error {
	return s.send(ctx, Notification{
		Type:        NotificationChargesAdjusted,
		RecipientID: bookingID,
		Title:       "Charges Adjusted",
		Message:     fmt.Sprintf("Your post-trip charges were adjusted from $%.2f to $%.2f.", record.OriginalTotal, record.AdjustedTotal),
		BookingID:   bookingID,
		Amount:      record.AdjustedTotal,
		Reference:   record.ID,
	})
}

// NotifyRefundProcessed tells the guest their refund went through.
func (s *NotificationService) NotifyRefundProcessed(ctx context.Context, guestID string, request *domain.RefundRequest, amount float64) error {
	return s.send(ctx, Notification{
		Type:        NotificationRefundProcessed,
		RecipientID: guestID,
		Title:       "Refund Processed",
		Message:     fmt.Sprintf("A refund of $%.2f is on its way to your original payment method.", amount),
		BookingID:   request.BookingID,
		Amount:      amount,
		Reference:   request.RefundTxnID,
	})
}

// NotifyReversalFollowUp flags a failed host transfer reversal for manual
// reconciliation.
func (s *NotificationService) NotifyReversalFollowUp(ctx context.Context, request *domain.RefundRequest) error {
	return s.send(ctx, Notification{
		Type:        NotificationReversalFollowUp,
		RecipientID: "ops",
		Title:       "Transfer Reversal Needs Attention",
		Message:     fmt.Sprintf("Refund request %s processed but the host transfer reversal failed: %s", request.ID, request.ReversalError),
		BookingID:   request.BookingID,
		Reference:   request.ID,
	})
}

// send hands the notification to the delivery platform. Currently logs.
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	notification.ID = uuid.New().String()
	notification.CreatedAt = time.Now()

	log.Printf("[NOTIFICATION] type=%s recipient=%s booking=%s title=%q",
		notification.Type, notification.RecipientID, notification.BookingID, notification.Title)

	return nil
}
