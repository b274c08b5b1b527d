package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"settlement/internal/domain"
	"settlement/internal/gateway"
	"settlement/internal/redis"
	"settlement/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	UpdateStatusCallCount int32

	// Error injection
	GetError                 error
	UpdateStatusError        error
	UpdateRefundedTotalError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
}

// GetBooking returns the stored booking for verification.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookings[id]
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, status domain.SettlementStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = time.Now()
	return nil
}

func (m *MockBookingRepository) UpdateRefundedTotal(ctx context.Context, id string, refundedTotal float64) error {
	if m.UpdateRefundedTotalError != nil {
		return m.UpdateRefundedTotalError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	booking.RefundedTotal = refundedTotal
	booking.UpdatedAt = time.Now()
	return nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT ATTEMPT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentAttemptRepository is a mock implementation of
// PaymentAttemptRepository. Attempts keep insertion order so ListByBooking
// matches the real oldest-first query.
type MockPaymentAttemptRepository struct {
	mu       sync.RWMutex
	attempts []*domain.PaymentAttempt

	// Counters for verification
	CreateCallCount        int32
	UpdateOutcomeCallCount int32

	// Error injection
	CreateError        error
	GetError           error
	ListError          error
	UpdateOutcomeError error
}

// NewMockPaymentAttemptRepository creates a new mock attempt repository.
func NewMockPaymentAttemptRepository() *MockPaymentAttemptRepository {
	return &MockPaymentAttemptRepository{}
}

// AddAttempt seeds an attempt into the mock repository.
func (m *MockPaymentAttemptRepository) AddAttempt(attempt *domain.PaymentAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
}

// CountAttempts returns the number of stored attempts.
func (m *MockPaymentAttemptRepository) CountAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.attempts)
}

// GetAttempt returns the stored attempt for verification.
func (m *MockPaymentAttemptRepository) GetAttempt(id string) *domain.PaymentAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *MockPaymentAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *attempt
	m.attempts = append(m.attempts, &copy)
	return nil
}

func (m *MockPaymentAttemptRepository) GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.ID == id {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentAttemptRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.IdempotencyKey == key {
			copy := *a
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentAttemptRepository) GetSucceededByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.BookingID == bookingID && a.Outcome == domain.PaymentOutcomeSucceeded {
			copy := *a
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentAttemptRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.PaymentAttempt, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentAttempt
	for _, a := range m.attempts {
		if a.BookingID == bookingID {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *MockPaymentAttemptRepository) UpdateOutcome(ctx context.Context, id string, outcome domain.PaymentOutcome, chargeID, failureReason string) error {
	atomic.AddInt32(&m.UpdateOutcomeCallCount, 1)
	if m.UpdateOutcomeError != nil {
		return m.UpdateOutcomeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id {
			a.Outcome = outcome
			a.ChargeID = chargeID
			a.FailureReason = failureReason
			return nil
		}
	}
	return repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK WAIVE / ADJUSTMENT REPOSITORIES
// ──────────────────────────────────────────────

// MockWaiveRepository is a mock implementation of WaiveRepository.
type MockWaiveRepository struct {
	mu      sync.RWMutex
	records []*domain.WaiveRecord

	CreateCallCount int32
	CreateError     error
}

// NewMockWaiveRepository creates a new mock waive repository.
func NewMockWaiveRepository() *MockWaiveRepository {
	return &MockWaiveRepository{}
}

// CountRecords returns the number of stored waive records.
func (m *MockWaiveRepository) CountRecords() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MockWaiveRepository) Create(ctx context.Context, record *domain.WaiveRecord) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *record
	m.records = append(m.records, &copy)
	return nil
}

func (m *MockWaiveRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.WaiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.WaiveRecord
	for _, r := range m.records {
		if r.BookingID == bookingID {
			copy := *r
			out = append(out, &copy)
		}
	}
	return out, nil
}

// MockAdjustmentRepository is a mock implementation of AdjustmentRepository.
type MockAdjustmentRepository struct {
	mu      sync.RWMutex
	records []*domain.AdjustmentRecord

	CreateCallCount int32
	CreateError     error
}

// NewMockAdjustmentRepository creates a new mock adjustment repository.
func NewMockAdjustmentRepository() *MockAdjustmentRepository {
	return &MockAdjustmentRepository{}
}

func (m *MockAdjustmentRepository) Create(ctx context.Context, record *domain.AdjustmentRecord) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *record
	m.records = append(m.records, &copy)
	return nil
}

func (m *MockAdjustmentRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.AdjustmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AdjustmentRecord
	for _, r := range m.records {
		if r.BookingID == bookingID {
			copy := *r
			out = append(out, &copy)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK REFUND REQUEST REPOSITORY
// ──────────────────────────────────────────────

// MockRefundRequestRepository is a mock implementation of
// RefundRequestRepository.
type MockRefundRequestRepository struct {
	mu       sync.RWMutex
	requests []*domain.RefundRequest

	CreateCallCount int32
	UpdateCallCount int32

	CreateError error
	UpdateError error
	SumError    error
}

// NewMockRefundRequestRepository creates a new mock refund repository.
func NewMockRefundRequestRepository() *MockRefundRequestRepository {
	return &MockRefundRequestRepository{}
}

// AddRequest seeds a refund request into the mock repository.
func (m *MockRefundRequestRepository) AddRequest(request *domain.RefundRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, request)
}

// GetRequest returns the stored request for verification.
func (m *MockRefundRequestRepository) GetRequest(id string) *domain.RefundRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *MockRefundRequestRepository) Create(ctx context.Context, request *domain.RefundRequest) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *request
	m.requests = append(m.requests, &copy)
	return nil
}

func (m *MockRefundRequestRepository) GetByID(ctx context.Context, id string) (*domain.RefundRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.ID == id {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRefundRequestRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.RefundRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.RefundRequest
	for _, r := range m.requests {
		if r.BookingID == bookingID {
			copy := *r
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *MockRefundRequestRepository) Update(ctx context.Context, request *domain.RefundRequest) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.requests {
		if r.ID == request.ID {
			copy := *request
			m.requests[i] = &copy
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockRefundRequestRepository) SumProcessedByBooking(ctx context.Context, bookingID string) (float64, error) {
	if m.SumError != nil {
		return 0, m.SumError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, r := range m.requests {
		if r.BookingID == bookingID && r.Status == domain.RefundStatusProcessed {
			total += r.Amount
		}
	}
	return total, nil
}

// ──────────────────────────────────────────────
// MOCK LEDGER REPOSITORY
// ──────────────────────────────────────────────

// MockLedgerRepository is a mock implementation of LedgerRepository.
type MockLedgerRepository struct {
	mu       sync.RWMutex
	balances map[string]float64

	AdjustBalanceCallCount int32
	AdjustBalanceError     error
}

// NewMockLedgerRepository creates a new mock ledger repository.
func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		balances: make(map[string]float64),
	}
}

// SetBalance seeds a host balance.
func (m *MockLedgerRepository) SetBalance(hostID string, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[hostID] = balance
}

// Balance returns the stored balance for verification.
func (m *MockLedgerRepository) Balance(hostID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[hostID]
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, hostID string) (*domain.HostBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &domain.HostBalance{
		HostID:  hostID,
		Balance: m.balances[hostID],
	}, nil
}

func (m *MockLedgerRepository) AdjustBalance(ctx context.Context, hostID string, delta float64) error {
	atomic.AddInt32(&m.AdjustBalanceCallCount, 1)
	if m.AdjustBalanceError != nil {
		return m.AdjustBalanceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[hostID] += delta
	return nil
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Control behavior: Contended makes every acquire fail as if another
	// capture holds the lock.
	Contended    bool
	AcquireError error

	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireSettlementLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Contended || m.locks[bookingID] {
		return false, nil
	}
	m.locks[bookingID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseSettlementLock(ctx context.Context, bookingID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, bookingID)
	return nil
}

// MockCacheStore is a mock implementation of CacheStoreInterface.
type MockCacheStore struct {
	mu      sync.RWMutex
	entries map[string]*redis.CachedSettlement

	InvalidateCallCount int32
	SetCallCount        int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		entries: make(map[string]*redis.CachedSettlement),
	}
}

// AddEntry seeds a cached settlement.
func (m *MockCacheStore) AddEntry(cached *redis.CachedSettlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cached.BookingID] = cached
}

// HasEntry reports whether a cached settlement exists for the booking.
func (m *MockCacheStore) HasEntry(bookingID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[bookingID]
	return ok
}

func (m *MockCacheStore) GetSettlement(ctx context.Context, bookingID string) (*redis.CachedSettlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cached, ok := m.entries[bookingID]
	if !ok {
		return nil, nil
	}
	copy := *cached
	return &copy, nil
}

func (m *MockCacheStore) SetSettlement(ctx context.Context, cached *redis.CachedSettlement) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *cached
	m.entries[cached.BookingID] = &copy
	return nil
}

func (m *MockCacheStore) InvalidateSettlement(ctx context.Context, bookingID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, bookingID)
	return nil
}

// ──────────────────────────────────────────────
// FAKE PAYMENT GATEWAY
// ──────────────────────────────────────────────

// FakeGateway is a scriptable implementation of PaymentGateway. By default
// every operation succeeds; tests script declines, challenges, and transport
// failures per operation.
type FakeGateway struct {
	mu sync.Mutex

	// Control behavior
	CaptureOutcome       domain.PaymentOutcome // defaults to SUCCEEDED when empty
	CaptureFailureReason string
	CaptureError         error
	RefundError          error
	ReversalError        error

	// Counters
	CaptureCallCount  int32
	RefundCallCount   int32
	ReversalCallCount int32

	// Last requests seen, for verification
	LastCapture  gateway.ChargeRequest
	LastRefund   gateway.RefundRequest
	LastReversal gateway.ReversalRequest
}

// NewFakeGateway creates a gateway that approves everything.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (f *FakeGateway) Capture(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	atomic.AddInt32(&f.CaptureCallCount, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastCapture = req
	if f.CaptureError != nil {
		return nil, f.CaptureError
	}
	outcome := f.CaptureOutcome
	if outcome == "" {
		outcome = domain.PaymentOutcomeSucceeded
	}
	result := &gateway.ChargeResult{
		ChargeID: "ch_" + req.IdempotencyKey,
		Outcome:  outcome,
		Amount:   req.Amount,
	}
	if outcome != domain.PaymentOutcomeSucceeded {
		result.ChargeID = ""
		result.FailureReason = f.CaptureFailureReason
	}
	return result, nil
}

func (f *FakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	atomic.AddInt32(&f.RefundCallCount, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRefund = req
	if f.RefundError != nil {
		return nil, f.RefundError
	}
	return &gateway.RefundResult{
		RefundID: "re_" + req.IdempotencyKey,
		Amount:   req.Amount,
	}, nil
}

func (f *FakeGateway) ReverseTransfer(ctx context.Context, req gateway.ReversalRequest) (*gateway.ReversalResult, error) {
	atomic.AddInt32(&f.ReversalCallCount, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastReversal = req
	if f.ReversalError != nil {
		return nil, f.ReversalError
	}
	return &gateway.ReversalResult{
		ReversalID: "trr_" + req.IdempotencyKey,
		Amount:     req.Amount,
	}, nil
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockGatewayDown = errors.New("mock: gateway unreachable")
	ErrMockDBFailure   = errors.New("mock: database failure")
)
