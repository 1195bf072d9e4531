package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/stretchr/testify/mock"
)

// FakeClock is a hand-settable clock so window expiry is tested by moving
// time, not by sleeping.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockGatewayClient is a testify mock for the gateway port.
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*application.GatewaySession, error) {
	args := m.Called(ctx, amountMinor, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.GatewaySession), args.Error(1)
}

// RecordingQueue captures enqueued release retries for assertions.
type RecordingQueue struct {
	mu       sync.Mutex
	orderIDs []uuid.UUID
}

func NewRecordingQueue() *RecordingQueue {
	return &RecordingQueue{}
}

func (q *RecordingQueue) Enqueue(orderID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.orderIDs = append(q.orderIDs, orderID)
}

func (q *RecordingQueue) Enqueued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]uuid.UUID, len(q.orderIDs))
	copy(out, q.orderIDs)
	return out
}

// CountingReleaser wraps a releaser and counts invocations, used to assert
// the at-most-once release guarantee end to end.
type CountingReleaser struct {
	mu    sync.Mutex
	inner application.ReservationReleaser
	calls int
}

func NewCountingReleaser(inner application.ReservationReleaser) *CountingReleaser {
	return &CountingReleaser{inner: inner}
}

func (r *CountingReleaser) Release(ctx context.Context, orderID uuid.UUID) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.inner.Release(ctx, orderID)
}

func (r *CountingReleaser) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// DefaultCreateOrderCommand returns a valid order creation command.
func DefaultCreateOrderCommand() services.CreateOrderCommand {
	return services.CreateOrderCommand{
		DisplayID:        "QK-" + uuid.New().String()[:8],
		AmountMinorUnits: 249900,
		Currency:         "INR",
	}
}
