package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"settlement/internal/domain"
	"settlement/internal/gateway"
	"settlement/internal/redis"
	"settlement/internal/repository"
	"settlement/internal/repository/postgres"
)

// settlementLockTTL bounds how long a crashed capture attempt can keep a
// booking locked.
const settlementLockTTL = 30 * time.Second

// SettlementService orchestrates post-trip charge capture: it computes what
// a guest owes, charges the stored instrument exactly once, and applies
// staff waives and adjustments. Gateway declines are returned as attempt
// outcomes; only precondition violations and infrastructure failures are
// errors.
type SettlementService struct {
	db             *sql.DB
	bookingRepo    repository.BookingRepository
	attemptRepo    repository.PaymentAttemptRepository
	waiveRepo      repository.WaiveRepository
	adjustmentRepo repository.AdjustmentRepository
	gateway        gateway.PaymentGateway
	lockStore      redis.LockStoreInterface
	cacheStore     redis.CacheStoreInterface
	notifications  *NotificationService
	receipts       *ReceiptService
	pricing        Pricing
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	db *sql.DB,
	bookingRepo repository.BookingRepository,
	attemptRepo repository.PaymentAttemptRepository,
	waiveRepo repository.WaiveRepository,
	adjustmentRepo repository.AdjustmentRepository,
	gw gateway.PaymentGateway,
	lockStore redis.LockStoreInterface,
	cacheStore redis.CacheStoreInterface,
	notifications *NotificationService,
	receipts *ReceiptService,
	pricing Pricing,
) *SettlementService {
	return &SettlementService{
		db:             db,
		bookingRepo:    bookingRepo,
		attemptRepo:    attemptRepo,
		waiveRepo:      waiveRepo,
		adjustmentRepo: adjustmentRepo,
		gateway:        gw,
		lockStore:      lockStore,
		cacheStore:     cacheStore,
		notifications:  notifications,
		receipts:       receipts,
		pricing:        pricing,
	}
}

// SettleTripRequest contains the parameters for settling an ended trip.
type SettleTripRequest struct {
	Telemetry domain.TripTelemetry
}

// SettleTripResponse contains the result of settling an ended trip.
type SettleTripResponse struct {
	Breakdown domain.ChargeBreakdown
	Attempt   *domain.PaymentAttempt
	Status    domain.SettlementStatus
	Receipt   *domain.SettlementReceipt
}

// SettleTrip is the trip-end entry point: compute charges, capture them if
// anything is owed, and derive the booking's settlement status. A zero
// total never reaches the gateway.
func (s *SettlementService) SettleTrip(ctx context.Context, req SettleTripRequest) (*SettleTripResponse, error) {
	bookingID := req.Telemetry.BookingID
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	breakdown := ComputeCharges(req.Telemetry, s.pricing)

	if breakdown.Total == 0 {
		status := ResolveSettlementStatus(0, domain.PaymentOutcomePending, booking.HasOpenDispute)
		if err := s.bookingRepo.UpdateStatus(ctx, bookingID, status); err != nil {
			return nil, err
		}
		s.invalidateCache(ctx, bookingID)

		resp := &SettleTripResponse{Breakdown: breakdown, Status: status}
		if s.receipts != nil {
			resp.Receipt, _ = s.receipts.GenerateReceipt(ctx, GenerateReceiptRequest{
				Breakdown: breakdown,
				Status:    status,
			})
		}
		return resp, nil
	}

	attempt, err := s.capture(ctx, captureParams{
		booking:       booking,
		customerRef:   booking.GuestID,
		instrumentRef: booking.InstrumentRef,
		amount:        breakdown.Total,
		description:   fmt.Sprintf("Post-trip charges for booking %s", bookingID),
		metadata: map[string]string{
			"booking_id": bookingID,
			"kind":       "trip_settlement",
		},
	})
	if err != nil {
		return nil, err
	}

	status := ResolveSettlementStatus(breakdown.Total, attempt.Outcome, booking.HasOpenDispute)
	if err := s.bookingRepo.UpdateStatus(ctx, bookingID, status); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx, bookingID)

	// Notifications are fire-and-forget after the status is persisted.
	if s.notifications != nil {
		switch attempt.Outcome {
		case domain.PaymentOutcomeSucceeded:
			_ = s.notifications.NotifySettlementCharged(ctx, booking.GuestID, attempt)
		case domain.PaymentOutcomeFailed:
			_ = s.notifications.NotifyChargeFailed(ctx, booking.GuestID, attempt)
		}
	}

	resp := &SettleTripResponse{Breakdown: breakdown, Attempt: attempt, Status: status}
	if s.receipts != nil {
		resp.Receipt, _ = s.receipts.GenerateReceipt(ctx, GenerateReceiptRequest{
			Breakdown: breakdown,
			Attempt:   attempt,
			Status:    status,
		})
	}
	return resp, nil
}

// PreviewCharges runs the charge calculator without side effects.
func (s *SettlementService) PreviewCharges(ctx context.Context, telemetry domain.TripTelemetry) (domain.ChargeBreakdown, error) {
	if telemetry.BookingID == "" {
		return domain.ChargeBreakdown{}, ErrInvalidBookingID
	}
	return ComputeCharges(telemetry, s.pricing), nil
}

// ChargeFeesRequest contains the parameters for charging additional fees.
type ChargeFeesRequest struct {
	BookingID     string
	CustomerRef   string
	InstrumentRef string
	Amount        float64
	Description   string
	Metadata      map[string]string
}

// ChargeAdditionalFees captures an arbitrary post-trip amount against the
// guest's stored instrument. Local validation failures never reach the
// gateway.
func (s *SettlementService) ChargeAdditionalFees(ctx context.Context, req ChargeFeesRequest) (*domain.PaymentAttempt, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if req.CustomerRef == "" {
		return nil, ErrInvalidCustomerRef
	}
	if req.InstrumentRef == "" {
		return nil, ErrInvalidInstrumentRef
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidChargeAmount
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	metadata := cloneMetadata(req.Metadata)
	metadata["booking_id"] = req.BookingID

	return s.capture(ctx, captureParams{
		booking:       booking,
		customerRef:   req.CustomerRef,
		instrumentRef: req.InstrumentRef,
		amount:        req.Amount,
		description:   req.Description,
		metadata:      metadata,
	})
}

// RetryChargeRequest contains the parameters for retrying a failed capture.
type RetryChargeRequest struct {
	BookingID         string
	CustomerRef       string
	InstrumentRef     string
	Amount            float64
	OriginalAttemptID string
	Metadata          map[string]string
}

// RetryFailedCharge creates a fresh capture attempt that references the
// failed attempt it retries and carries an incremented attempt counter. The
// new attempt never reuses the original's identifier or idempotency key.
func (s *SettlementService) RetryFailedCharge(ctx context.Context, req RetryChargeRequest) (*domain.PaymentAttempt, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if req.CustomerRef == "" {
		return nil, ErrInvalidCustomerRef
	}
	if req.InstrumentRef == "" {
		return nil, ErrInvalidInstrumentRef
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidChargeAmount
	}
	if req.OriginalAttemptID == "" {
		return nil, ErrInvalidOriginalCharge
	}

	original, err := s.attemptRepo.GetByID(ctx, req.OriginalAttemptID)
	if err != nil {
		return nil, err
	}
	if original.BookingID != req.BookingID {
		return nil, ErrInvalidOriginalCharge
	}
	if original.Outcome == domain.PaymentOutcomeSucceeded {
		return nil, ErrChargeAlreadySettled
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	originalRef := original.ChargeID
	if originalRef == "" {
		// The original never reached the gateway; lineage still points at
		// the local attempt record.
		originalRef = original.ID
	}

	metadata := cloneMetadata(req.Metadata)
	metadata["booking_id"] = req.BookingID
	metadata["retry"] = "true"
	metadata["original_charge_id"] = originalRef
	metadata["retry_attempt"] = fmt.Sprintf("%d", original.AttemptNumber+1)

	return s.capture(ctx, captureParams{
		booking:          booking,
		customerRef:      req.CustomerRef,
		instrumentRef:    req.InstrumentRef,
		amount:           req.Amount,
		description:      fmt.Sprintf("Retry of charge %s", originalRef),
		metadata:         metadata,
		retry:            true,
		originalChargeID: originalRef,
		attemptNumber:    original.AttemptNumber + 1,
	})
}

// captureParams carries everything one capture attempt needs. attemptNumber
// zero means "next number for this booking".
type captureParams struct {
	booking          *domain.Booking
	customerRef      string
	instrumentRef    string
	amount           float64
	description      string
	metadata         map[string]string
	retry            bool
	originalChargeID string
	attemptNumber    int
}

// capture runs one attempt end to end: serialize on the booking lock,
// enforce single-success, persist the attempt, call the gateway, and record
// the outcome. The returned attempt carries the gateway's verdict; a decline
// is not an error.
func (s *SettlementService) capture(ctx context.Context, params captureParams) (*domain.PaymentAttempt, error) {
	bookingID := params.booking.ID

	acquired, err := s.lockStore.AcquireSettlementLock(ctx, bookingID, settlementLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrSettlementInProgress
	}
	defer func() {
		_ = s.lockStore.ReleaseSettlementLock(ctx, bookingID)
	}()

	// Within one booking only one attempt may ever succeed. Enforced here,
	// before any gateway traffic.
	succeeded, err := s.attemptRepo.GetSucceededByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if succeeded != nil {
		return nil, ErrChargeAlreadySettled
	}

	attemptNumber := params.attemptNumber
	if attemptNumber == 0 {
		prior, err := s.attemptRepo.ListByBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		attemptNumber = len(prior) + 1
	}

	// Stable key tied to the booking and attempt number: a caller-side
	// retry of the same attempt cannot double-charge at the gateway.
	idempotencyKey := fmt.Sprintf("settlement:%s:attempt:%d", bookingID, attemptNumber)

	existing, err := s.attemptRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	attempt := &domain.PaymentAttempt{
		ID:               uuid.New().String(),
		BookingID:        bookingID,
		Amount:           params.amount,
		CustomerRef:      params.customerRef,
		InstrumentRef:    params.instrumentRef,
		Description:      params.description,
		Outcome:          domain.PaymentOutcomePending,
		IdempotencyKey:   idempotencyKey,
		Retry:            params.retry,
		OriginalChargeID: params.originalChargeID,
		AttemptNumber:    attemptNumber,
		CreatedAt:        time.Now(),
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	result, err := s.gateway.Capture(ctx, gateway.ChargeRequest{
		CustomerRef:    params.customerRef,
		InstrumentRef:  params.instrumentRef,
		Amount:         params.amount,
		Description:    params.description,
		IdempotencyKey: idempotencyKey,
		Metadata:       params.metadata,
	})
	if err != nil {
		// Gateway unreachable or unusable response: record the attempt as
		// failed and propagate. The attempt stays retriable.
		_ = s.attemptRepo.UpdateOutcome(ctx, attempt.ID, domain.PaymentOutcomeFailed, "", err.Error())
		return nil, err
	}

	attempt.Outcome = result.Outcome
	attempt.ChargeID = result.ChargeID
	attempt.FailureReason = result.FailureReason

	if err := s.attemptRepo.UpdateOutcome(ctx, attempt.ID, result.Outcome, result.ChargeID, result.FailureReason); err != nil {
		return nil, err
	}

	return attempt, nil
}

// WaiveRequest contains the parameters for waiving charges.
type WaiveRequest struct {
	BookingID      string
	OriginalAmount float64
	Percent        float64
	Reason         string
	StaffID        string
}

// WaiveCharges records a staff decision to forgive some or all of a
// booking's charges. It is pure bookkeeping and never calls the gateway.
// The percentage is validated before any amount is computed.
func (s *SettlementService) WaiveCharges(ctx context.Context, req WaiveRequest) (*domain.WaiveRecord, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if req.StaffID == "" {
		return nil, ErrInvalidStaffID
	}
	if req.Percent < 0 || req.Percent > 100 {
		return nil, ErrWaivePercentOutOfRange
	}
	if req.OriginalAmount < 0 {
		return nil, ErrInvalidChargeAmount
	}

	if _, err := s.bookingRepo.GetByID(ctx, req.BookingID); err != nil {
		return nil, err
	}

	waived := roundToCents(req.OriginalAmount * req.Percent / 100)
	record := &domain.WaiveRecord{
		ID:              uuid.New().String(),
		BookingID:       req.BookingID,
		OriginalAmount:  req.OriginalAmount,
		WaivePercent:    req.Percent,
		WaivedAmount:    waived,
		RemainingAmount: roundToCents(req.OriginalAmount - waived),
		Reason:          req.Reason,
		StaffID:         req.StaffID,
		CreatedAt:       time.Now(),
	}

	if err := s.waiveRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	action := ResolutionPartialWaive
	if req.Percent == 100 {
		action = ResolutionWaive
	}
	status, err := ResolveStaffAction(action)
	if err != nil {
		return nil, err
	}

	if err := s.bookingRepo.UpdateStatus(ctx, req.BookingID, status); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx, req.BookingID)

	if s.notifications != nil {
		_ = s.notifications.NotifyChargesWaived(ctx, req.BookingID, record)
	}

	return record, nil
}

// AdjustRequest contains the parameters for an itemized adjustment.
type AdjustRequest struct {
	BookingID     string
	CustomerRef   string
	InstrumentRef string
	Items         []domain.AdjustmentItem
	StaffID       string
}

// AdjustResponse contains the result of an itemized adjustment.
type AdjustResponse struct {
	Record  *domain.AdjustmentRecord
	Attempt *domain.PaymentAttempt
	Status  domain.SettlementStatus
}

// AdjustAndCharge applies per-line-item staff decisions and captures the
// adjusted total. An adjusted total of zero is documented by the record
// alone; the gateway is never invoked for it. The record and the status
// transition are committed in one transaction.
func (s *SettlementService) AdjustAndCharge(ctx context.Context, req AdjustRequest) (*AdjustResponse, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if req.StaffID == "" {
		return nil, ErrInvalidStaffID
	}
	if len(req.Items) == 0 {
		return nil, ErrNoAdjustmentItems
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	var originalTotal, adjustedTotal float64
	for _, item := range req.Items {
		originalTotal += item.OriginalAmount
		if item.Included {
			adjustedTotal += item.AdjustedAmount
		}
	}
	originalTotal = roundToCents(originalTotal)
	adjustedTotal = roundToCents(adjustedTotal)

	record := &domain.AdjustmentRecord{
		ID:              uuid.New().String(),
		BookingID:       req.BookingID,
		Items:           req.Items,
		OriginalTotal:   originalTotal,
		AdjustedTotal:   adjustedTotal,
		TotalAdjustment: roundToCents(originalTotal - adjustedTotal),
		StaffID:         req.StaffID,
		CreatedAt:       time.Now(),
	}

	var attempt *domain.PaymentAttempt
	var status domain.SettlementStatus

	if adjustedTotal == 0 {
		// Everything rejected or zeroed out: the record documents the
		// outcome, nothing to capture.
		status, err = ResolveStaffAction(ResolutionAdjust)
		if err != nil {
			return nil, err
		}
	} else {
		if req.CustomerRef == "" {
			return nil, ErrInvalidCustomerRef
		}
		if req.InstrumentRef == "" {
			return nil, ErrInvalidInstrumentRef
		}

		attempt, err = s.capture(ctx, captureParams{
			booking:       booking,
			customerRef:   req.CustomerRef,
			instrumentRef: req.InstrumentRef,
			amount:        adjustedTotal,
			description:   fmt.Sprintf("Adjusted post-trip charges for booking %s", req.BookingID),
			metadata: map[string]string{
				"booking_id": req.BookingID,
				"kind":       "adjusted_charges",
				"staff_id":   req.StaffID,
			},
		})
		if err != nil {
			return nil, err
		}

		if attempt.Outcome == domain.PaymentOutcomeSucceeded {
			record.ChargeID = attempt.ChargeID
			status, err = ResolveStaffAction(ResolutionAdjust)
			if err != nil {
				return nil, err
			}
		} else {
			// The staff decision stands, but money did not move; the
			// decision table routes the booking back to manual resolution.
			status = ResolveSettlementStatus(adjustedTotal, attempt.Outcome, booking.HasOpenDispute)
		}
	}

	// The audit record and the status transition land together or not at all.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txAdjustmentRepo := postgres.NewAdjustmentRepositoryWithTx(tx)
	txBookingRepo := postgres.NewBookingRepositoryWithTx(tx)

	if err = txAdjustmentRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	if err = txBookingRepo.UpdateStatus(ctx, req.BookingID, status); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx, req.BookingID)

	if s.notifications != nil {
		_ = s.notifications.NotifyChargesAdjusted(ctx, req.BookingID, record)
	}

	return &AdjustResponse{Record: record, Attempt: attempt, Status: status}, nil
}

// SettlementView is the full settlement state of one booking.
type SettlementView struct {
	Booking     *domain.Booking
	Attempts    []*domain.PaymentAttempt
	Waives      []*domain.WaiveRecord
	Adjustments []*domain.AdjustmentRecord
}

// GetSettlement returns a booking's settlement state with its full audit
// trail, refreshing the status cache on the way out.
func (s *SettlementService) GetSettlement(ctx context.Context, bookingID string) (*SettlementView, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attemptRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	waives, err := s.waiveRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	adjustments, err := s.adjustmentRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetSettlement(ctx, &redis.CachedSettlement{
			BookingID:    booking.ID,
			Lifecycle:    string(booking.Status.Lifecycle),
			Verification: string(booking.Status.Verification),
			Payment:      string(booking.Status.Payment),
			Refunded:     booking.RefundedTotal,
		})
	}

	return &SettlementView{
		Booking:     booking,
		Attempts:    attempts,
		Waives:      waives,
		Adjustments: adjustments,
	}, nil
}

// GetSettlementStatus returns a booking's status triple, serving from cache
// when fresh.
func (s *SettlementService) GetSettlementStatus(ctx context.Context, bookingID string) (domain.SettlementStatus, error) {
	if bookingID == "" {
		return domain.SettlementStatus{}, ErrInvalidBookingID
	}

	if s.cacheStore != nil {
		cached, err := s.cacheStore.GetSettlement(ctx, bookingID)
		if err == nil && cached != nil {
			return domain.SettlementStatus{
				Lifecycle:    domain.LifecycleStatus(cached.Lifecycle),
				Verification: domain.VerificationStatus(cached.Verification),
				Payment:      domain.PaymentStatus(cached.Payment),
			}, nil
		}
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return domain.SettlementStatus{}, err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetSettlement(ctx, &redis.CachedSettlement{
			BookingID:    booking.ID,
			Lifecycle:    string(booking.Status.Lifecycle),
			Verification: string(booking.Status.Verification),
			Payment:      string(booking.Status.Payment),
			Refunded:     booking.RefundedTotal,
		})
	}

	return booking.Status, nil
}

func (s *SettlementService) invalidateCache(ctx context.Context, bookingID string) {
	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateSettlement(ctx, bookingID)
	}
}

func cloneMetadata(metadata map[string]string) map[string]string {
	clone := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		clone[k] = v
	}
	return clone
}
