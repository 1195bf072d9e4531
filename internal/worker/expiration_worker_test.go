package worker_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/infrastructure/persistence/memory"
	"github.com/quickkart/orderpay/internal/inventory"
	"github.com/quickkart/orderpay/internal/window"
	"github.com/quickkart/orderpay/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type noopQueue struct{}

func (noopQueue) Enqueue(uuid.UUID) {}

type sweepFixture struct {
	clock        *fakeClock
	orders       *memory.OrderRepository
	reservations *memory.ReservationRepository
	orderService *services.OrderService
	lifecycle    *services.LifecycleService
	worker       *worker.ExpirationWorker
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	orders := memory.NewOrderRepository()
	reservations := memory.NewReservationRepository()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	releaser := inventory.NewReleaser(reservations, clock, logger)
	lifecycle := services.NewLifecycleService(orders, releaser, noopQueue{}, 3, logger)
	windowMgr := window.NewManager(clock)
	orderService := services.NewOrderService(
		orders, reservations, lifecycle, windowMgr, 15*time.Minute, clock, logger)

	return &sweepFixture{
		clock:        clock,
		orders:       orders,
		reservations: reservations,
		orderService: orderService,
		lifecycle:    lifecycle,
		worker:       worker.NewExpirationWorker(orders, lifecycle, clock, time.Minute, 100, logger),
	}
}

func (f *sweepFixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := f.orderService.Create(context.Background(), services.CreateOrderCommand{
		DisplayID:        "QK-" + uuid.New().String()[:8],
		AmountMinorUnits: 9900,
		Currency:         "INR",
	})
	require.NoError(t, err)
	return order
}

func TestRunOnce_ExpiresOverdueOrders(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)
	overdue := f.createOrder(t)

	f.clock.Advance(10 * time.Minute)
	fresh := f.createOrder(t)

	f.clock.Advance(6 * time.Minute) // overdue past 15m, fresh at 6m

	f.worker.RunOnce(ctx)

	stored, err := f.orders.FindByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	assert.True(t, f.reservations.IsReleased(overdue.ID))

	stored, err = f.orders.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, stored.Status)
	assert.False(t, f.reservations.IsReleased(fresh.ID))
}

func TestRunOnce_OverlappingSweeps_ReleaseOnce(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)
	order := f.createOrder(t)

	f.clock.Advance(16 * time.Minute)

	f.worker.RunOnce(ctx)
	f.worker.RunOnce(ctx)

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	assert.Equal(t, 1, f.reservations.ReleaseCount())
}

func TestRunOnce_ClientRacesSweep_SingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)
	order := f.createOrder(t)

	f.clock.Advance(16 * time.Minute)

	// A client-driven expiry lands between the sweep's scan and its write.
	_, err := f.lifecycle.ApplyFresh(ctx, order.ID, domain.EventWindowExpired)
	require.NoError(t, err)

	f.worker.RunOnce(ctx)

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	assert.Equal(t, 1, f.reservations.ReleaseCount())
}

func TestRunOnce_SweepsAllLiveStatuses(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	created := f.createOrder(t)

	awaiting := f.createOrder(t)
	_, err := f.lifecycle.ApplyFresh(ctx, awaiting.ID, domain.EventOpenSession)
	require.NoError(t, err)

	retryOpen := f.createOrder(t)
	for _, event := range []domain.Event{
		domain.EventOpenSession, domain.EventCallbackReceived,
		domain.EventSignatureInvalid, domain.EventWithinWindow,
	} {
		_, err := f.lifecycle.ApplyFresh(ctx, retryOpen.ID, event)
		require.NoError(t, err)
	}

	f.clock.Advance(16 * time.Minute)
	f.worker.RunOnce(ctx)

	for _, id := range []uuid.UUID{created.ID, awaiting.ID, retryOpen.ID} {
		stored, err := f.orders.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusExpired, stored.Status)
		assert.True(t, f.reservations.IsReleased(id))
	}
}
