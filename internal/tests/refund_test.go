package tests

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"settlement/internal/domain"
	"settlement/internal/service"
)

// ──────────────────────────────────────────────
// 5. REFUNDS AND SPLIT REVERSALS
// ──────────────────────────────────────────────

type refundFixture struct {
	refunds  *MockRefundRequestRepository
	bookings *MockBookingRepository
	ledger   *MockLedgerRepository
	gateway  *FakeGateway
	svc      *service.RefundService
}

func newRefundFixture(db *sql.DB) *refundFixture {
	f := &refundFixture{
		refunds:  NewMockRefundRequestRepository(),
		bookings: NewMockBookingRepository(),
		ledger:   NewMockLedgerRepository(),
		gateway:  NewFakeGateway(),
	}
	f.svc = service.NewRefundService(
		db, f.refunds, f.bookings, f.ledger, f.gateway, service.NewNotificationService(),
	)
	return f
}

func settledBooking(id string) *domain.Booking {
	return &domain.Booking{
		ID:               id,
		GuestID:          "cus_guest1",
		InstrumentRef:    "pm_card1",
		HostID:           "host-1",
		HostAccountRef:   "acct_host1",
		CapturedChargeID: "ch_orig1",
		CapturedTotal:    1000,
		Status: domain.SettlementStatus{
			Lifecycle:    domain.LifecycleCompleted,
			Verification: domain.VerificationCompleted,
			Payment:      domain.PaymentStatusChargesPaid,
		},
		CreatedAt: time.Now(),
	}
}

func approvedRequest(id, bookingID string, amount float64) *domain.RefundRequest {
	return &domain.RefundRequest{
		ID:         id,
		BookingID:  bookingID,
		Amount:     amount,
		Reason:     "trip cut short",
		Status:     domain.RefundStatusApproved,
		ReviewedBy: "staff-1",
		CreatedAt:  time.Now(),
		ReviewedAt: time.Now(),
	}
}

func TestRefundCreate_RequiresCapturedPayment(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	booking := settledBooking("bk-1")
	booking.CapturedChargeID = ""
	booking.CapturedTotal = 0
	f.bookings.AddBooking(booking)

	_, err := f.svc.CreateRequest(context.Background(), service.CreateRefundRequest{
		BookingID:   "bk-1",
		Amount:      100,
		RequestedBy: "guest-1",
	})
	if !errors.Is(err, service.ErrNoCapturedPayment) {
		t.Errorf("expected ErrNoCapturedPayment, got %v", err)
	}
}

func TestRefundCreate_OpensPendingRequest(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.bookings.AddBooking(settledBooking("bk-1"))

	request, err := f.svc.CreateRequest(context.Background(), service.CreateRefundRequest{
		BookingID:     "bk-1",
		Amount:        250,
		Reason:        "early return",
		RequestedBy:   "guest-1",
		RequesterRole: "guest",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != domain.RefundStatusPending {
		t.Errorf("expected PENDING, got %s", request.Status)
	}
	if request.ID == "" {
		t.Error("expected a generated request id")
	}
	// Opening a request never moves money.
	if f.gateway.RefundCallCount != 0 {
		t.Errorf("gateway refund called %d times on create", f.gateway.RefundCallCount)
	}
}

func TestRefundCreate_RejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.bookings.AddBooking(settledBooking("bk-1"))

	for _, amount := range []float64{0, -50} {
		_, err := f.svc.CreateRequest(context.Background(), service.CreateRefundRequest{
			BookingID: "bk-1",
			Amount:    amount,
		})
		if !errors.Is(err, service.ErrInvalidRefundAmount) {
			t.Errorf("amount %.2f: expected ErrInvalidRefundAmount, got %v", amount, err)
		}
	}
}

func TestRefundReview_ApproveAndReject(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.refunds.AddRequest(&domain.RefundRequest{
		ID: "req-1", BookingID: "bk-1", Amount: 100, Status: domain.RefundStatusPending,
	})
	f.refunds.AddRequest(&domain.RefundRequest{
		ID: "req-2", BookingID: "bk-1", Amount: 100, Status: domain.RefundStatusPending,
	})

	approved, err := f.svc.ApproveRequest(context.Background(), "req-1", "staff-1", "looks right")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != domain.RefundStatusApproved {
		t.Errorf("expected APPROVED, got %s", approved.Status)
	}
	if approved.ReviewedBy != "staff-1" {
		t.Errorf("expected reviewer recorded, got %q", approved.ReviewedBy)
	}

	rejected, err := f.svc.RejectRequest(context.Background(), "req-2", "staff-1", "no evidence")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != domain.RefundStatusRejected {
		t.Errorf("expected REJECTED, got %s", rejected.Status)
	}
}

func TestRefundReview_OnlyPendingRequestsReviewable(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 100))

	_, err := f.svc.ApproveRequest(context.Background(), "req-1", "staff-2", "")
	if !errors.Is(err, service.ErrRefundNotPending) {
		t.Errorf("expected ErrRefundNotPending, got %v", err)
	}
	_, err = f.svc.RejectRequest(context.Background(), "req-1", "staff-2", "")
	if !errors.Is(err, service.ErrRefundNotPending) {
		t.Errorf("expected ErrRefundNotPending, got %v", err)
	}
}

func TestRefundProcess_FullRefundCancelsBooking(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refund_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET refunded_total").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f := newRefundFixture(db)
	f.bookings.AddBooking(settledBooking("bk-1"))
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 1000))

	resp, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Request.Status != domain.RefundStatusProcessed {
		t.Errorf("expected PROCESSED, got %s", resp.Request.Status)
	}
	if resp.Request.RefundTxnID == "" {
		t.Error("expected the gateway refund id recorded")
	}
	if resp.Status.Lifecycle != domain.LifecycleCancelled {
		t.Errorf("expected CANCELLED lifecycle for full refund, got %s", resp.Status.Lifecycle)
	}
	if resp.Status.Payment != domain.PaymentStatusRefunded {
		t.Errorf("expected REFUNDED, got %s", resp.Status.Payment)
	}
	if f.gateway.LastRefund.IdempotencyKey != "refund:req-1" {
		t.Errorf("unexpected refund idempotency key %q", f.gateway.LastRefund.IdempotencyKey)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestRefundProcess_PartialRefundKeepsBookingCompleted(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refund_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET refunded_total").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f := newRefundFixture(db)
	f.bookings.AddBooking(settledBooking("bk-1"))
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 300))

	resp, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status.Lifecycle != domain.LifecycleCompleted {
		t.Errorf("expected COMPLETED lifecycle for partial refund, got %s", resp.Status.Lifecycle)
	}
	if resp.Status.Payment != domain.PaymentStatusPartialRefund {
		t.Errorf("expected PARTIAL_REFUND, got %s", resp.Status.Payment)
	}
	if f.gateway.LastRefund.Amount != 300 {
		t.Errorf("expected gateway refund of 300.00, got %.2f", f.gateway.LastRefund.Amount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestRefundProcess_ExceedsRemainingRejectedBeforeGateway(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.bookings.AddBooking(settledBooking("bk-1"))
	// 800 already refunded; only 200 remains.
	f.refunds.AddRequest(&domain.RefundRequest{
		ID: "req-0", BookingID: "bk-1", Amount: 800, Status: domain.RefundStatusProcessed,
	})
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 500))

	_, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID: "req-1",
	})
	if !errors.Is(err, service.ErrRefundExceedsRemaining) {
		t.Fatalf("expected ErrRefundExceedsRemaining, got %v", err)
	}
	if f.gateway.RefundCallCount != 0 {
		t.Errorf("over-limit request must not reach the gateway, got %d calls", f.gateway.RefundCallCount)
	}
}

func TestRefundProcess_OnlyApprovedRequestsProcessable(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.bookings.AddBooking(settledBooking("bk-1"))
	f.refunds.AddRequest(&domain.RefundRequest{
		ID: "req-1", BookingID: "bk-1", Amount: 100, Status: domain.RefundStatusPending,
	})
	f.refunds.AddRequest(&domain.RefundRequest{
		ID: "req-2", BookingID: "bk-1", Amount: 100, Status: domain.RefundStatusRejected,
	})

	for _, id := range []string{"req-1", "req-2"} {
		_, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{RequestID: id})
		if !errors.Is(err, service.ErrRefundNotApproved) {
			t.Errorf("request %s: expected ErrRefundNotApproved, got %v", id, err)
		}
	}
	if f.gateway.RefundCallCount != 0 {
		t.Errorf("unapproved requests must not reach the gateway, got %d calls", f.gateway.RefundCallCount)
	}
}

func TestRefundProcess_IdempotentOnceProcessed(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.bookings.AddBooking(settledBooking("bk-1"))
	f.refunds.AddRequest(&domain.RefundRequest{
		ID:          "req-1",
		BookingID:   "bk-1",
		Amount:      300,
		Status:      domain.RefundStatusProcessed,
		RefundTxnID: "re_done",
		ProcessedAt: time.Now(),
	})

	resp, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Request.RefundTxnID != "re_done" {
		t.Errorf("expected the stored result back, got %q", resp.Request.RefundTxnID)
	}
	if f.gateway.RefundCallCount != 0 {
		t.Errorf("re-processing must not reach the gateway, got %d calls", f.gateway.RefundCallCount)
	}
	if f.refunds.UpdateCallCount != 0 {
		t.Errorf("re-processing must not rewrite the request, got %d updates", f.refunds.UpdateCallCount)
	}
}

func TestRefundProcess_ReversalClawsBackHostShare(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refund_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET refunded_total").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO host_balances").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f := newRefundFixture(db)
	booking := settledBooking("bk-1")
	booking.HostTransferID = "tr_host1"
	booking.HostPayout = 800
	f.bookings.AddBooking(booking)
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 500))

	resp, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID:       "req-1",
		ReverseTransfer: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 500 of a 1000 capture, 800 of which went to the host: 400 clawed back.
	if f.gateway.ReversalCallCount != 1 {
		t.Fatalf("expected 1 reversal call, got %d", f.gateway.ReversalCallCount)
	}
	if f.gateway.LastReversal.TransferID != "tr_host1" {
		t.Errorf("unexpected transfer %q", f.gateway.LastReversal.TransferID)
	}
	if f.gateway.LastReversal.Amount != 400 {
		t.Errorf("expected reversal of 400.00, got %.2f", f.gateway.LastReversal.Amount)
	}
	if resp.Request.ReversalTxnID == "" {
		t.Error("expected the reversal id recorded")
	}
	if resp.Request.ReversalError != "" {
		t.Errorf("expected no reversal error, got %q", resp.Request.ReversalError)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestRefundProcess_ReversalFailureStillProcessed(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// No host_balances write: the ledger only moves when the reversal
	// actually succeeded.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refund_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET refunded_total").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f := newRefundFixture(db)
	booking := settledBooking("bk-1")
	booking.HostTransferID = "tr_host1"
	booking.HostPayout = 800
	f.bookings.AddBooking(booking)
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 500))
	f.gateway.ReversalError = ErrMockGatewayDown

	resp, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID:       "req-1",
		ReverseTransfer: true,
	})
	if err != nil {
		t.Fatalf("reversal failure must not fail the refund: %v", err)
	}

	if resp.Request.Status != domain.RefundStatusProcessed {
		t.Errorf("expected PROCESSED despite reversal failure, got %s", resp.Request.Status)
	}
	if resp.Request.ReversalError == "" {
		t.Error("expected the reversal failure recorded for follow-up")
	}
	if resp.Request.ReversalTxnID != "" {
		t.Errorf("expected no reversal id, got %q", resp.Request.ReversalTxnID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestRefundProcess_GatewayRefundErrorLeavesRequestApproved(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.bookings.AddBooking(settledBooking("bk-1"))
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 300))
	f.gateway.RefundError = ErrMockGatewayDown

	_, err := f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID: "req-1",
	})
	if !errors.Is(err, ErrMockGatewayDown) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}

	// Nothing was committed; the request is retriable as APPROVED.
	if f.refunds.UpdateCallCount != 0 {
		t.Errorf("request must not be rewritten on gateway failure, got %d updates", f.refunds.UpdateCallCount)
	}
	stored := f.refunds.GetRequest("req-1")
	if stored.Status != domain.RefundStatusApproved {
		t.Errorf("expected request still APPROVED, got %s", stored.Status)
	}
}

func TestHostBalance_ReadThroughLedger(t *testing.T) {
	t.Parallel()

	f := newRefundFixture(nil)
	f.ledger.SetBalance("host-1", 1250.75)

	balance, err := f.svc.GetHostBalance(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Balance != 1250.75 {
		t.Errorf("expected balance 1250.75, got %.2f", balance.Balance)
	}

	_, err = f.svc.GetHostBalance(context.Background(), "")
	if !errors.Is(err, service.ErrInvalidHostID) {
		t.Errorf("expected ErrInvalidHostID, got %v", err)
	}
}

func TestRefundProcess_NoReversalWhenPaymentNotSplit(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refund_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET refunded_total").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f := newRefundFixture(db)
	// No HostTransferID: the original payment was never split.
	f.bookings.AddBooking(settledBooking("bk-1"))
	f.refunds.AddRequest(approvedRequest("req-1", "bk-1", 300))

	_, err = f.svc.ProcessRequest(context.Background(), service.ProcessRefundRequest{
		RequestID:       "req-1",
		ReverseTransfer: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.gateway.ReversalCallCount != 0 {
		t.Errorf("unsplit payment must not be reversed, got %d calls", f.gateway.ReversalCallCount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}
