package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/window"
)

// OrderService covers the operations around the lifecycle core: creating an
// order with its reservation and payment window, reading it for countdown
// rendering, and administrative cancellation.
type OrderService struct {
	orders        application.OrderRepository
	reservations  application.ReservationRepository
	lifecycle     *LifecycleService
	window        *window.Manager
	paymentWindow time.Duration
	clock         application.Clock
	logger        *slog.Logger
}

func NewOrderService(
	orders application.OrderRepository,
	reservations application.ReservationRepository,
	lifecycle *LifecycleService,
	windowMgr *window.Manager,
	paymentWindow time.Duration,
	clock application.Clock,
	logger *slog.Logger,
) *OrderService {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &OrderService{
		orders:        orders,
		reservations:  reservations,
		lifecycle:     lifecycle,
		window:        windowMgr,
		paymentWindow: paymentWindow,
		clock:         clock,
		logger:        logger,
	}
}

type CreateOrderCommand struct {
	DisplayID        string
	AmountMinorUnits int64
	Currency         string
}

// Create records an order whose amount was already resolved upstream. The
// payment deadline is fixed here, once, from the server clock.
func (s *OrderService) Create(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	now := s.clock.Now()
	order, err := domain.NewOrder(cmd.DisplayID, cmd.AmountMinorUnits, cmd.Currency, now, s.paymentWindow)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.reservations.Create(ctx, order.ID, now); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"display_id", order.DisplayID,
		"amount_minor", order.AmountMinorUnits,
		"payment_expires_at", order.PaymentExpiresAt,
	)
	return order, nil
}

// OrderView is the client-facing snapshot. Remaining is derived server-side
// so the browser countdown never becomes authoritative.
type OrderView struct {
	Order     *domain.Order
	Remaining time.Duration
}

func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderView{
		Order:     order,
		Remaining: s.window.Remaining(order),
	}, nil
}

// Cancel force-terminates a non-terminal order and releases its
// reservation. Cancelling an already-cancelled order is a no-op.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.lifecycle.ApplyFresh(ctx, orderID, domain.EventAdminCancel)
}
