package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"settlement/internal/domain"
	"settlement/internal/gateway"
	"settlement/internal/repository"
	"settlement/internal/repository/postgres"
)

// refundEpsilon absorbs float noise when comparing money totals.
const refundEpsilon = 0.005

// RefundService owns the refund request lifecycle and the split-reversal
// flow: refund the guest, claw back the host's proportional share, and keep
// the booking ledger consistent with the money that actually moved.
type RefundService struct {
	db            *sql.DB
	refundRepo    repository.RefundRequestRepository
	bookingRepo   repository.BookingRepository
	ledgerRepo    repository.LedgerRepository
	gateway       gateway.PaymentGateway
	notifications *NotificationService
}

// NewRefundService creates a new RefundService.
func NewRefundService(
	db *sql.DB,
	refundRepo repository.RefundRequestRepository,
	bookingRepo repository.BookingRepository,
	ledgerRepo repository.LedgerRepository,
	gw gateway.PaymentGateway,
	notifications *NotificationService,
) *RefundService {
	return &RefundService{
		db:            db,
		refundRepo:    refundRepo,
		bookingRepo:   bookingRepo,
		ledgerRepo:    ledgerRepo,
		gateway:       gw,
		notifications: notifications,
	}
}

// CreateRefundRequest contains the parameters for opening a refund request.
type CreateRefundRequest struct {
	BookingID     string
	Amount        float64
	Reason        string
	RequestedBy   string
	RequesterRole string
}

// CreateRequest opens a refund request in PENDING state. Nothing moves
// until staff approve and process it.
func (s *RefundService) CreateRequest(ctx context.Context, req CreateRefundRequest) (*domain.RefundRequest, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidRefundAmount
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.CapturedChargeID == "" || booking.CapturedTotal <= 0 {
		return nil, ErrNoCapturedPayment
	}

	request := &domain.RefundRequest{
		ID:            uuid.New().String(),
		BookingID:     req.BookingID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		RequestedBy:   req.RequestedBy,
		RequesterRole: req.RequesterRole,
		Status:        domain.RefundStatusPending,
		CreatedAt:     time.Now(),
	}

	if err := s.refundRepo.Create(ctx, request); err != nil {
		return nil, err
	}

	return request, nil
}

// ApproveRequest moves a PENDING request to APPROVED.
func (s *RefundService) ApproveRequest(ctx context.Context, requestID, reviewerID, notes string) (*domain.RefundRequest, error) {
	return s.review(ctx, requestID, reviewerID, notes, domain.RefundStatusApproved)
}

// RejectRequest moves a PENDING request to REJECTED.
func (s *RefundService) RejectRequest(ctx context.Context, requestID, reviewerID, notes string) (*domain.RefundRequest, error) {
	return s.review(ctx, requestID, reviewerID, notes, domain.RefundStatusRejected)
}

func (s *RefundService) review(ctx context.Context, requestID, reviewerID, notes string, decision domain.RefundRequestStatus) (*domain.RefundRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}
	if reviewerID == "" {
		return nil, ErrInvalidStaffID
	}

	request, err := s.refundRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.RefundStatusPending {
		return nil, ErrRefundNotPending
	}

	request.Status = decision
	request.ReviewedBy = reviewerID
	request.ReviewNotes = notes
	request.ReviewedAt = time.Now()

	if err := s.refundRepo.Update(ctx, request); err != nil {
		return nil, err
	}

	return request, nil
}

// ProcessRefundRequest contains the parameters for processing an approved
// request.
type ProcessRefundRequest struct {
	RequestID string

	// ReverseTransfer asks for the host's proportional share to be clawed
	// back when the original payment was split.
	ReverseTransfer bool
}

// ProcessRefundResponse contains the result of processing a request.
type ProcessRefundResponse struct {
	Request *domain.RefundRequest
	Status  domain.SettlementStatus
}

// ProcessRequest executes an APPROVED refund: refund to the guest first,
// then a best-effort transfer reversal, then the ledger and status updates
// in one transaction. A request that fails before money moves stays
// APPROVED and retriable; re-processing a PROCESSED request is a no-op that
// returns the stored result.
func (s *RefundService) ProcessRequest(ctx context.Context, req ProcessRefundRequest) (*ProcessRefundResponse, error) {
	if req.RequestID == "" {
		return nil, ErrInvalidRequestID
	}

	request, err := s.refundRepo.GetByID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, request.BookingID)
	if err != nil {
		return nil, err
	}

	if request.Status == domain.RefundStatusProcessed {
		// Terminal and idempotent per request id.
		return &ProcessRefundResponse{Request: request, Status: booking.Status}, nil
	}
	if request.Status != domain.RefundStatusApproved {
		return nil, ErrRefundNotApproved
	}

	// No refund is possible without an original capture reference.
	if booking.CapturedChargeID == "" || booking.CapturedTotal <= 0 {
		return nil, ErrNoCapturedPayment
	}

	// Reconcile against remaining-refundable before touching the gateway.
	processed, err := s.refundRepo.SumProcessedByBooking(ctx, request.BookingID)
	if err != nil {
		return nil, err
	}
	remaining := booking.CapturedTotal - processed
	if request.Amount > remaining+refundEpsilon {
		return nil, ErrRefundExceedsRemaining
	}

	refundAmount := request.Amount
	if refundAmount > remaining {
		refundAmount = remaining
	}

	// Primary operation: the guest refund. A failure here leaves the
	// request APPROVED and retriable.
	refund, err := s.gateway.Refund(ctx, gateway.RefundRequest{
		ChargeID:       booking.CapturedChargeID,
		Amount:         refundAmount,
		Reason:         request.Reason,
		IdempotencyKey: fmt.Sprintf("refund:%s", request.ID),
	})
	if err != nil {
		return nil, err
	}

	request.RefundTxnID = refund.RefundID

	// Best-effort relative to the refund: a reversal failure is recorded
	// for manual follow-up, never rolled back into a request failure.
	var reversedAmount float64
	if req.ReverseTransfer && booking.HostTransferID != "" {
		reversalAmount := hostReversalShare(refundAmount, booking)
		if reversalAmount > 0 {
			reversal, err := s.gateway.ReverseTransfer(ctx, gateway.ReversalRequest{
				TransferID:     booking.HostTransferID,
				Amount:         reversalAmount,
				IdempotencyKey: fmt.Sprintf("reversal:%s", request.ID),
			})
			if err != nil {
				log.Printf("transfer reversal failed for refund request %s (transfer %s): %v",
					request.ID, booking.HostTransferID, err)
				request.ReversalError = err.Error()
			} else {
				request.ReversalTxnID = reversal.ReversalID
				reversedAmount = reversalAmount
			}
		}
	}

	request.Status = domain.RefundStatusProcessed
	request.ProcessedAt = time.Now()

	newRefundedTotal := roundToCents(booking.RefundedTotal + refundAmount)
	status := ResolveRefundStatus(booking.CapturedTotal, newRefundedTotal)

	// Money has moved; the ledger, the request, and the booking status
	// must reflect it together or not at all.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txRefundRepo := postgres.NewRefundRequestRepositoryWithTx(tx)
	txBookingRepo := postgres.NewBookingRepositoryWithTx(tx)
	txLedgerRepo := postgres.NewLedgerRepositoryWithTx(tx)

	if err = txRefundRepo.Update(ctx, request); err != nil {
		return nil, err
	}

	if err = txBookingRepo.UpdateRefundedTotal(ctx, booking.ID, newRefundedTotal); err != nil {
		return nil, err
	}

	if err = txBookingRepo.UpdateStatus(ctx, booking.ID, status); err != nil {
		return nil, err
	}

	if reversedAmount > 0 {
		if err = txLedgerRepo.AdjustBalance(ctx, booking.HostID, -reversedAmount); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	if s.notifications != nil {
		_ = s.notifications.NotifyRefundProcessed(ctx, booking.GuestID, request, refundAmount)
		if request.ReversalError != "" {
			_ = s.notifications.NotifyReversalFollowUp(ctx, request)
		}
	}

	return &ProcessRefundResponse{Request: request, Status: status}, nil
}

// GetHostBalance returns a host's running earnings balance. Reversals
// processed through ProcessRequest decrement it.
func (s *RefundService) GetHostBalance(ctx context.Context, hostID string) (*domain.HostBalance, error) {
	if hostID == "" {
		return nil, ErrInvalidHostID
	}

	return s.ledgerRepo.GetBalance(ctx, hostID)
}

// GetRequest retrieves a refund request by ID.
func (s *RefundService) GetRequest(ctx context.Context, requestID string) (*domain.RefundRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	return s.refundRepo.GetByID(ctx, requestID)
}

// ListRequests returns all refund requests for a booking.
func (s *RefundService) ListRequests(ctx context.Context, bookingID string) ([]*domain.RefundRequest, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	return s.refundRepo.ListByBooking(ctx, bookingID)
}

// hostReversalShare is the host's flat proportional share of a refund: the
// fraction of the original capture that was paid out to the host, applied
// to the amount being refunded. Platform commission is not excluded from
// the reversible base.
func hostReversalShare(refundAmount float64, booking *domain.Booking) float64 {
	if booking.CapturedTotal <= 0 || booking.HostPayout <= 0 {
		return 0
	}

	share := refundAmount * booking.HostPayout / booking.CapturedTotal
	if share > booking.HostPayout {
		share = booking.HostPayout
	}
	return roundToCents(share)
}
