package tests

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"settlement/internal/domain"
	"settlement/internal/redis"
	"settlement/internal/service"
)

// ──────────────────────────────────────────────
// 3. SETTLEMENT ORCHESTRATION
// ──────────────────────────────────────────────

// settlementFixture bundles the mocks behind one SettlementService.
type settlementFixture struct {
	bookings    *MockBookingRepository
	attempts    *MockPaymentAttemptRepository
	waives      *MockWaiveRepository
	adjustments *MockAdjustmentRepository
	gateway     *FakeGateway
	locks       *MockLockStore
	cache       *MockCacheStore
	svc         *service.SettlementService
}

// newSettlementFixture wires a SettlementService against mocks. db may be
// nil for flows that never open a transaction.
func newSettlementFixture(db *sql.DB) *settlementFixture {
	f := &settlementFixture{
		bookings:    NewMockBookingRepository(),
		attempts:    NewMockPaymentAttemptRepository(),
		waives:      NewMockWaiveRepository(),
		adjustments: NewMockAdjustmentRepository(),
		gateway:     NewFakeGateway(),
		locks:       NewMockLockStore(),
		cache:       NewMockCacheStore(),
	}

	notifications := service.NewNotificationService()
	receipts := service.NewReceiptService(notifications)

	f.svc = service.NewSettlementService(
		db, f.bookings, f.attempts, f.waives, f.adjustments,
		f.gateway, f.locks, f.cache, notifications, receipts, standardPricing(),
	)
	return f
}

func pendingBooking(id string) *domain.Booking {
	return &domain.Booking{
		ID:            id,
		GuestID:       "cus_guest1",
		InstrumentRef: "pm_card1",
		Status: domain.SettlementStatus{
			Lifecycle:    domain.LifecyclePending,
			Verification: domain.VerificationPendingCharges,
			Payment:      domain.PaymentStatusPendingCharges,
		},
		CreatedAt: time.Now(),
	}
}

func TestSettleTrip_ChargesAndMarksPaid(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))

	scheduled := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	resp, err := f.svc.SettleTrip(context.Background(), service.SettleTripRequest{
		Telemetry: domain.TripTelemetry{
			BookingID:       "bk-1",
			StartOdometer:   50000,
			EndOdometer:     50800,
			DurationDays:    3,
			StartFuel:       domain.FuelLevelFull,
			EndFuel:         domain.FuelLevelFull,
			ScheduledReturn: scheduled,
			ActualReturn:    scheduled,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Breakdown.Total != 90 {
		t.Errorf("expected total 90.00, got %.2f", resp.Breakdown.Total)
	}
	if resp.Attempt == nil {
		t.Fatal("expected a capture attempt")
	}
	if resp.Attempt.Outcome != domain.PaymentOutcomeSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", resp.Attempt.Outcome)
	}
	if resp.Attempt.IdempotencyKey != "settlement:bk-1:attempt:1" {
		t.Errorf("unexpected idempotency key %q", resp.Attempt.IdempotencyKey)
	}
	if resp.Status.Payment != domain.PaymentStatusChargesPaid {
		t.Errorf("expected CHARGES_PAID, got %s", resp.Status.Payment)
	}
	if resp.Receipt == nil {
		t.Fatal("expected a receipt")
	}
	if resp.Receipt.AmountCharged != 90 {
		t.Errorf("expected receipt amount 90.00, got %.2f", resp.Receipt.AmountCharged)
	}

	// Status was persisted and the gateway was hit exactly once.
	stored := f.bookings.GetBooking("bk-1")
	if stored.Status.Payment != domain.PaymentStatusChargesPaid {
		t.Errorf("persisted status %s, want CHARGES_PAID", stored.Status.Payment)
	}
	if f.gateway.CaptureCallCount != 1 {
		t.Errorf("expected 1 capture call, got %d", f.gateway.CaptureCallCount)
	}
}

func TestSettleTrip_ZeroTotalNeverReachesGateway(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))

	scheduled := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	resp, err := f.svc.SettleTrip(context.Background(), service.SettleTripRequest{
		Telemetry: domain.TripTelemetry{
			BookingID:       "bk-1",
			StartOdometer:   20000,
			EndOdometer:     20100,
			DurationDays:    2,
			StartFuel:       domain.FuelLevelFull,
			EndFuel:         domain.FuelLevelFull,
			ScheduledReturn: scheduled,
			ActualReturn:    scheduled,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.gateway.CaptureCallCount != 0 {
		t.Errorf("gateway should not be called for zero total, got %d calls", f.gateway.CaptureCallCount)
	}
	if resp.Attempt != nil {
		t.Error("expected no capture attempt for zero total")
	}
	if resp.Status.Payment != domain.PaymentStatusPaid {
		t.Errorf("expected PAID, got %s", resp.Status.Payment)
	}
	if resp.Status.Lifecycle != domain.LifecycleCompleted {
		t.Errorf("expected COMPLETED lifecycle, got %s", resp.Status.Lifecycle)
	}
	if resp.Receipt == nil {
		t.Fatal("expected a zero-amount receipt")
	}
	if resp.Receipt.Total != 0 {
		t.Errorf("expected zero receipt total, got %.2f", resp.Receipt.Total)
	}
}

func TestSettleTrip_DeclineMarksPaymentFailed(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.gateway.CaptureOutcome = domain.PaymentOutcomeFailed
	f.gateway.CaptureFailureReason = "card_declined"

	resp, err := f.svc.SettleTrip(context.Background(), service.SettleTripRequest{
		Telemetry: domain.TripTelemetry{
			BookingID:     "bk-1",
			StartOdometer: 0,
			EndOdometer:   1000,
			DurationDays:  1,
			StartFuel:     domain.FuelLevelFull,
			EndFuel:       domain.FuelLevelFull,
		},
	})
	if err != nil {
		t.Fatalf("a decline is an outcome, not an error: %v", err)
	}

	if resp.Attempt.Outcome != domain.PaymentOutcomeFailed {
		t.Errorf("expected FAILED, got %s", resp.Attempt.Outcome)
	}
	if resp.Attempt.FailureReason != "card_declined" {
		t.Errorf("expected failure reason preserved, got %q", resp.Attempt.FailureReason)
	}
	if resp.Status.Payment != domain.PaymentStatusFailed {
		t.Errorf("expected PAYMENT_FAILED, got %s", resp.Status.Payment)
	}
	if resp.Status.Lifecycle != domain.LifecyclePending {
		t.Errorf("expected PENDING lifecycle, got %s", resp.Status.Lifecycle)
	}
}

func TestSettleTrip_OpenDisputeHoldsCompletion(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	booking := pendingBooking("bk-1")
	booking.HasOpenDispute = true
	f.bookings.AddBooking(booking)

	resp, err := f.svc.SettleTrip(context.Background(), service.SettleTripRequest{
		Telemetry: domain.TripTelemetry{
			BookingID:     "bk-1",
			StartOdometer: 0,
			EndOdometer:   1000,
			DurationDays:  1,
			StartFuel:     domain.FuelLevelFull,
			EndFuel:       domain.FuelLevelFull,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Money moved but the dispute pins the booking open.
	if resp.Attempt.Outcome != domain.PaymentOutcomeSucceeded {
		t.Errorf("expected SUCCEEDED capture, got %s", resp.Attempt.Outcome)
	}
	if resp.Status.Payment != domain.PaymentStatusPendingCharges {
		t.Errorf("expected PENDING_CHARGES under dispute, got %s", resp.Status.Payment)
	}
	if resp.Status.Lifecycle != domain.LifecyclePending {
		t.Errorf("expected PENDING lifecycle under dispute, got %s", resp.Status.Lifecycle)
	}
}

func TestSettleTrip_MissingBookingID(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)

	_, err := f.svc.SettleTrip(context.Background(), service.SettleTripRequest{})
	if !errors.Is(err, service.ErrInvalidBookingID) {
		t.Errorf("expected ErrInvalidBookingID, got %v", err)
	}
}

func TestChargeFees_ValidationNeverReachesGateway(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))

	cases := []struct {
		name string
		req  service.ChargeFeesRequest
		want error
	}{
		{
			name: "missing booking id",
			req:  service.ChargeFeesRequest{CustomerRef: "cus_1", InstrumentRef: "pm_1", Amount: 10},
			want: service.ErrInvalidBookingID,
		},
		{
			name: "missing customer ref",
			req:  service.ChargeFeesRequest{BookingID: "bk-1", InstrumentRef: "pm_1", Amount: 10},
			want: service.ErrInvalidCustomerRef,
		},
		{
			name: "missing instrument ref",
			req:  service.ChargeFeesRequest{BookingID: "bk-1", CustomerRef: "cus_1", Amount: 10},
			want: service.ErrInvalidInstrumentRef,
		},
		{
			name: "zero amount",
			req:  service.ChargeFeesRequest{BookingID: "bk-1", CustomerRef: "cus_1", InstrumentRef: "pm_1"},
			want: service.ErrInvalidChargeAmount,
		},
		{
			name: "negative amount",
			req:  service.ChargeFeesRequest{BookingID: "bk-1", CustomerRef: "cus_1", InstrumentRef: "pm_1", Amount: -25},
			want: service.ErrInvalidChargeAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ChargeAdditionalFees(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if f.gateway.CaptureCallCount != 0 {
		t.Errorf("validation failures must not reach the gateway, got %d calls", f.gateway.CaptureCallCount)
	}
}

func TestChargeFees_SecondChargeAfterSuccessRejected(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:        "att-1",
		BookingID: "bk-1",
		Amount:    90,
		Outcome:   domain.PaymentOutcomeSucceeded,
		ChargeID:  "ch_1",
	})

	_, err := f.svc.ChargeAdditionalFees(context.Background(), service.ChargeFeesRequest{
		BookingID:     "bk-1",
		CustomerRef:   "cus_guest1",
		InstrumentRef: "pm_card1",
		Amount:        45,
	})
	if !errors.Is(err, service.ErrChargeAlreadySettled) {
		t.Errorf("expected ErrChargeAlreadySettled, got %v", err)
	}
	if f.gateway.CaptureCallCount != 0 {
		t.Errorf("settled booking must not reach the gateway, got %d calls", f.gateway.CaptureCallCount)
	}
}

func TestChargeFees_LockContention(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.locks.Contended = true

	_, err := f.svc.ChargeAdditionalFees(context.Background(), service.ChargeFeesRequest{
		BookingID:     "bk-1",
		CustomerRef:   "cus_guest1",
		InstrumentRef: "pm_card1",
		Amount:        45,
	})
	if !errors.Is(err, service.ErrSettlementInProgress) {
		t.Errorf("expected ErrSettlementInProgress, got %v", err)
	}
	if f.gateway.CaptureCallCount != 0 {
		t.Errorf("contended lock must not reach the gateway, got %d calls", f.gateway.CaptureCallCount)
	}
}

func TestChargeFees_GatewayTransportErrorRecordedAsFailed(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.gateway.CaptureError = ErrMockGatewayDown

	_, err := f.svc.ChargeAdditionalFees(context.Background(), service.ChargeFeesRequest{
		BookingID:     "bk-1",
		CustomerRef:   "cus_guest1",
		InstrumentRef: "pm_card1",
		Amount:        45,
	})
	if !errors.Is(err, ErrMockGatewayDown) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}

	// The attempt was persisted and marked failed so it stays retriable.
	if f.attempts.CountAttempts() != 1 {
		t.Fatalf("expected 1 stored attempt, got %d", f.attempts.CountAttempts())
	}
	attempts, _ := f.attempts.ListByBooking(context.Background(), "bk-1")
	if attempts[0].Outcome != domain.PaymentOutcomeFailed {
		t.Errorf("expected FAILED outcome, got %s", attempts[0].Outcome)
	}

	// The lock is not leaked.
	if f.locks.ReleaseCallCount != 1 {
		t.Errorf("expected lock release, got %d calls", f.locks.ReleaseCallCount)
	}
}

func TestRetry_CreatesLinkedAttempt(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:            "att-1",
		BookingID:     "bk-1",
		Amount:        90,
		Outcome:       domain.PaymentOutcomeFailed,
		ChargeID:      "ch_failed1",
		FailureReason: "card_declined",
		AttemptNumber: 1,
	})

	attempt, err := f.svc.RetryFailedCharge(context.Background(), service.RetryChargeRequest{
		BookingID:         "bk-1",
		CustomerRef:       "cus_guest1",
		InstrumentRef:     "pm_card1",
		Amount:            90,
		OriginalAttemptID: "att-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !attempt.Retry {
		t.Error("expected retry flag set")
	}
	if attempt.OriginalChargeID != "ch_failed1" {
		t.Errorf("expected lineage to original charge, got %q", attempt.OriginalChargeID)
	}
	if attempt.AttemptNumber != 2 {
		t.Errorf("expected attempt number 2, got %d", attempt.AttemptNumber)
	}
	if attempt.ID == "att-1" {
		t.Error("retry must have a fresh identifier")
	}
	if attempt.IdempotencyKey != "settlement:bk-1:attempt:2" {
		t.Errorf("retry must carry a fresh idempotency key, got %q", attempt.IdempotencyKey)
	}
	if f.gateway.LastCapture.Metadata["retry"] != "true" {
		t.Error("expected retry metadata on the gateway request")
	}
	if f.gateway.LastCapture.Metadata["original_charge_id"] != "ch_failed1" {
		t.Errorf("expected original charge in metadata, got %q", f.gateway.LastCapture.Metadata["original_charge_id"])
	}
}

func TestRetry_OriginalNeverReachedGatewayUsesLocalID(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:            "att-1",
		BookingID:     "bk-1",
		Amount:        90,
		Outcome:       domain.PaymentOutcomeFailed,
		AttemptNumber: 1,
	})

	attempt, err := f.svc.RetryFailedCharge(context.Background(), service.RetryChargeRequest{
		BookingID:         "bk-1",
		CustomerRef:       "cus_guest1",
		InstrumentRef:     "pm_card1",
		Amount:            90,
		OriginalAttemptID: "att-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempt.OriginalChargeID != "att-1" {
		t.Errorf("lineage should fall back to the local attempt id, got %q", attempt.OriginalChargeID)
	}
}

func TestRetry_SucceededOriginalRejected(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:            "att-1",
		BookingID:     "bk-1",
		Amount:        90,
		Outcome:       domain.PaymentOutcomeSucceeded,
		ChargeID:      "ch_1",
		AttemptNumber: 1,
	})

	_, err := f.svc.RetryFailedCharge(context.Background(), service.RetryChargeRequest{
		BookingID:         "bk-1",
		CustomerRef:       "cus_guest1",
		InstrumentRef:     "pm_card1",
		Amount:            90,
		OriginalAttemptID: "att-1",
	})
	if !errors.Is(err, service.ErrChargeAlreadySettled) {
		t.Errorf("expected ErrChargeAlreadySettled, got %v", err)
	}
}

func TestRetry_BookingMismatchRejected(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:            "att-other",
		BookingID:     "bk-other",
		Amount:        90,
		Outcome:       domain.PaymentOutcomeFailed,
		AttemptNumber: 1,
	})

	_, err := f.svc.RetryFailedCharge(context.Background(), service.RetryChargeRequest{
		BookingID:         "bk-1",
		CustomerRef:       "cus_guest1",
		InstrumentRef:     "pm_card1",
		Amount:            90,
		OriginalAttemptID: "att-other",
	})
	if !errors.Is(err, service.ErrInvalidOriginalCharge) {
		t.Errorf("expected ErrInvalidOriginalCharge, got %v", err)
	}
}

func TestRetry_DuplicateRetryShortCircuitsOnIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:            "att-1",
		BookingID:     "bk-1",
		Amount:        90,
		Outcome:       domain.PaymentOutcomeFailed,
		AttemptNumber: 1,
	})
	// A prior retry of attempt 1 already exists under the same key.
	f.attempts.AddAttempt(&domain.PaymentAttempt{
		ID:             "att-2",
		BookingID:      "bk-1",
		Amount:         90,
		Outcome:        domain.PaymentOutcomeFailed,
		AttemptNumber:  2,
		IdempotencyKey: "settlement:bk-1:attempt:2",
	})

	attempt, err := f.svc.RetryFailedCharge(context.Background(), service.RetryChargeRequest{
		BookingID:         "bk-1",
		CustomerRef:       "cus_guest1",
		InstrumentRef:     "pm_card1",
		Amount:            90,
		OriginalAttemptID: "att-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempt.ID != "att-2" {
		t.Errorf("expected the existing attempt back, got %q", attempt.ID)
	}
	if f.gateway.CaptureCallCount != 0 {
		t.Errorf("duplicate retry must not reach the gateway, got %d calls", f.gateway.CaptureCallCount)
	}
	if f.attempts.CreateCallCount != 0 {
		t.Errorf("duplicate retry must not create a new attempt, got %d", f.attempts.CreateCallCount)
	}
}

func TestGetSettlementStatus_ServesFromCache(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.cache.AddEntry(&redis.CachedSettlement{
		BookingID:    "bk-1",
		Lifecycle:    string(domain.LifecycleCompleted),
		Verification: string(domain.VerificationCompleted),
		Payment:      string(domain.PaymentStatusChargesPaid),
	})
	// A repository failure proves the read never left the cache.
	f.bookings.GetError = ErrMockDBFailure

	status, err := f.svc.GetSettlementStatus(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Payment != domain.PaymentStatusChargesPaid {
		t.Errorf("expected cached CHARGES_PAID, got %s", status.Payment)
	}
}

func TestGetSettlementStatus_CacheMissFallsBackAndWarms(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	booking := pendingBooking("bk-1")
	booking.Status.Payment = domain.PaymentStatusChargesPaid
	f.bookings.AddBooking(booking)

	status, err := f.svc.GetSettlementStatus(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Payment != domain.PaymentStatusChargesPaid {
		t.Errorf("expected CHARGES_PAID from the repository, got %s", status.Payment)
	}
	if !f.cache.HasEntry("bk-1") {
		t.Error("expected the cache to be warmed on miss")
	}
}

func TestGetSettlement_ReturnsFullAuditTrail(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(nil)
	f.bookings.AddBooking(pendingBooking("bk-1"))
	f.attempts.AddAttempt(&domain.PaymentAttempt{ID: "att-1", BookingID: "bk-1", Outcome: domain.PaymentOutcomeFailed})
	f.attempts.AddAttempt(&domain.PaymentAttempt{ID: "att-2", BookingID: "bk-1", Outcome: domain.PaymentOutcomeSucceeded})

	view, err := f.svc.GetSettlement(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Booking.ID != "bk-1" {
		t.Errorf("unexpected booking %q", view.Booking.ID)
	}
	if len(view.Attempts) != 2 {
		t.Errorf("expected 2 attempts in the audit trail, got %d", len(view.Attempts))
	}
	if !f.cache.HasEntry("bk-1") {
		t.Error("expected the status cache refreshed")
	}
}
