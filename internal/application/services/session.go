package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/observability"
	"github.com/quickkart/orderpay/internal/window"
)

// SessionService brokers gateway sessions: one active session per order,
// a brand-new attempt per retry, never a reused rejected session.
type SessionService struct {
	orders    application.OrderRepository
	attempts  application.AttemptRepository
	gateway   application.GatewayClient
	lifecycle *LifecycleService
	window    *window.Manager
	clock     application.Clock
	logger    *slog.Logger
}

func NewSessionService(
	orders application.OrderRepository,
	attempts application.AttemptRepository,
	gateway application.GatewayClient,
	lifecycle *LifecycleService,
	windowMgr *window.Manager,
	clock application.Clock,
	logger *slog.Logger,
) *SessionService {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &SessionService{
		orders:    orders,
		attempts:  attempts,
		gateway:   gateway,
		lifecycle: lifecycle,
		window:    windowMgr,
		clock:     clock,
		logger:    logger,
	}
}

// OpenSessionResult is what the client needs to hand off to the gateway and
// render its countdown. PaymentExpiresAt is advisory UI input only; the
// server re-checks the window on every request.
type OpenSessionResult struct {
	GatewayOrderID   string
	AmountMinorUnits int64
	Currency         string
	PaymentExpiresAt time.Time
}

// Open creates a gateway session for the order. Safe to call again after
// RETRY_OPEN; each call produces a new attempt. Fails with
// AlreadyActiveSessionError while a PENDING attempt exists, and with
// WindowExpiredError once the payment window closed (forcing the order to
// EXPIRED as a side effect).
func (s *SessionService) Open(ctx context.Context, orderID uuid.UUID) (*OpenSessionResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.IsTerminal() {
		return nil, application.NewWindowExpiredError()
	}

	if s.window.IsExpired(order) {
		if _, err := s.lifecycle.ApplyFresh(ctx, orderID, domain.EventWindowExpired); err != nil {
			return nil, err
		}
		return nil, application.NewWindowExpiredError()
	}

	if pending, err := s.attempts.FindPendingByOrderID(ctx, orderID); err == nil && pending != nil {
		return nil, application.NewAlreadyActiveSessionError(pending.GatewayOrderID)
	}

	attempt := domain.NewPaymentAttempt(orderID, s.clock.Now())
	if err := s.attempts.Create(ctx, attempt); err != nil {
		// Lost the race against a concurrent open: the store's uniqueness
		// guarantee makes the duplicate visible here.
		if errors.Is(err, application.ErrDuplicatePendingAttempt) {
			return nil, application.NewAlreadyActiveSessionError("")
		}
		return nil, application.NewInternalError(err)
	}

	session, err := s.gateway.CreateOrder(ctx, order.AmountMinorUnits, order.Currency, order.DisplayID)
	if err != nil {
		// The session may still exist gateway-side; killing the local
		// attempt keeps the next open clean, and the gateway order is
		// unreferenced so a callback for it can never match.
		s.failAttempt(ctx, attempt)
		return nil, application.NewGatewayUnavailableError(err)
	}

	attempt.GatewayOrderID = session.GatewayOrderID
	attempt.UpdatedAt = s.clock.Now()
	if err := s.attempts.Update(ctx, attempt); err != nil {
		s.failAttempt(ctx, attempt)
		return nil, application.NewInternalError(err)
	}

	if _, err := s.lifecycle.Apply(ctx, orderID, domain.EventOpenSession, order.Version); err != nil {
		if !application.IsConcurrencyConflict(err) {
			return nil, err
		}
		// Another writer moved the order first; re-apply against fresh
		// state and honor where it landed. If the expiration sweep beat us
		// the session must not be handed out.
		fresh, err := s.lifecycle.ApplyFresh(ctx, orderID, domain.EventOpenSession)
		if err != nil {
			return nil, err
		}
		if fresh.IsTerminal() {
			s.failAttempt(ctx, attempt)
			return nil, application.NewWindowExpiredError()
		}
	}

	observability.SessionsOpened.Inc()
	s.logger.Info("payment session opened",
		"order_id", orderID,
		"gateway_order_id", session.GatewayOrderID,
		"amount_minor", order.AmountMinorUnits,
	)

	return &OpenSessionResult{
		GatewayOrderID:   session.GatewayOrderID,
		AmountMinorUnits: order.AmountMinorUnits,
		Currency:         order.Currency,
		PaymentExpiresAt: order.PaymentExpiresAt,
	}, nil
}

func (s *SessionService) failAttempt(ctx context.Context, attempt *domain.PaymentAttempt) {
	if err := attempt.Reject(s.clock.Now()); err != nil {
		return
	}
	if err := s.attempts.Update(ctx, attempt); err != nil {
		s.logger.Error("failed to reject dangling attempt",
			"attempt_id", attempt.ID,
			"order_id", attempt.OrderID,
			"error", err,
		)
	}
}
