package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/observability"
	"github.com/quickkart/orderpay/internal/signature"
	"github.com/quickkart/orderpay/internal/window"
)

// VerifyCommand is the gateway confirmation relayed verbatim by the client
// (redirect callback) or delivered by the gateway webhook.
type VerifyCommand struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// VerifyResult reports the order after processing the callback. Verified is
// false for forged or rejected callbacks; the order status tells the client
// whether a retry is still on the table.
type VerifyResult struct {
	Order    *domain.Order
	Verified bool
}

// VerifyService consumes gateway callbacks: it validates the payload against
// the order's current attempt, checks the signature, records the outcome and
// drives the lifecycle to its next state. Duplicate and late callbacks are
// answered with the current status and no side effects.
type VerifyService struct {
	orders    application.OrderRepository
	attempts  application.AttemptRepository
	lifecycle *LifecycleService
	window    *window.Manager
	secret    string
	clock     application.Clock
	logger    *slog.Logger
}

func NewVerifyService(
	orders application.OrderRepository,
	attempts application.AttemptRepository,
	lifecycle *LifecycleService,
	windowMgr *window.Manager,
	secret string,
	clock application.Clock,
	logger *slog.Logger,
) *VerifyService {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &VerifyService{
		orders:    orders,
		attempts:  attempts,
		lifecycle: lifecycle,
		window:    windowMgr,
		secret:    secret,
		clock:     clock,
		logger:    logger,
	}
}

func (s *VerifyService) Verify(ctx context.Context, orderID uuid.UUID, cmd VerifyCommand) (*VerifyResult, error) {
	if cmd.GatewayOrderID == "" || cmd.GatewayPaymentID == "" || cmd.Signature == "" {
		return nil, application.NewInvalidInputError(domain.NewValidationError("gatewayOrderId, gatewayPaymentId and signature are required"))
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current, err := s.currentAttempt(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// A payload for a superseded session is a structural error, not a
	// candidate for re-processing.
	if cmd.GatewayOrderID != current.GatewayOrderID {
		return nil, application.NewInvalidInputError(
			domain.NewAttemptMismatchError(cmd.GatewayOrderID, current.GatewayOrderID))
	}

	// Duplicate or late call against a settled order: answer with the
	// status we already hold.
	if order.IsTerminal() {
		return &VerifyResult{
			Order:    order,
			Verified: current.Outcome == domain.OutcomeVerified,
		}, nil
	}

	if s.window.IsExpired(order) {
		expired, err := s.lifecycle.ApplyFresh(ctx, orderID, domain.EventWindowExpired)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Order: expired}, nil
	}

	order, claimed, err := s.claimVerification(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Someone else holds the verification, or the order moved on;
		// this call carries no new information.
		return &VerifyResult{Order: order, Verified: order.Status == domain.StatusPaid}, nil
	}

	if signature.Verify(cmd.GatewayOrderID, cmd.GatewayPaymentID, cmd.Signature, s.secret) {
		return s.settleVerified(ctx, order, current, cmd)
	}
	return s.settleRejected(ctx, order, current, cmd)
}

func (s *VerifyService) settleVerified(ctx context.Context, order *domain.Order, attempt *domain.PaymentAttempt, cmd VerifyCommand) (*VerifyResult, error) {
	if err := attempt.Settle(domain.OutcomeVerified, cmd.GatewayPaymentID, cmd.Signature, s.clock.Now()); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.attempts.Update(ctx, attempt); err != nil {
		if errors.Is(err, application.ErrAttemptAlreadySettled) {
			return nil, application.NewConcurrencyError(order.ID.String(), order.Version)
		}
		return nil, application.NewInternalError(err)
	}

	paid, err := s.lifecycle.ApplyFresh(ctx, order.ID, domain.EventSignatureValid)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment verified",
		"order_id", order.ID,
		"gateway_order_id", cmd.GatewayOrderID,
		"gateway_payment_id", cmd.GatewayPaymentID,
	)
	return &VerifyResult{Order: paid, Verified: true}, nil
}

func (s *VerifyService) settleRejected(ctx context.Context, order *domain.Order, attempt *domain.PaymentAttempt, cmd VerifyCommand) (*VerifyResult, error) {
	observability.SignatureFailures.Inc()
	s.logger.Warn("signature verification failed",
		"order_id", order.ID,
		"gateway_order_id", cmd.GatewayOrderID,
		"gateway_payment_id", cmd.GatewayPaymentID,
	)

	if err := attempt.Settle(domain.OutcomeRejected, cmd.GatewayPaymentID, cmd.Signature, s.clock.Now()); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.attempts.Update(ctx, attempt); err != nil {
		if errors.Is(err, application.ErrAttemptAlreadySettled) {
			return nil, application.NewConcurrencyError(order.ID.String(), order.Version)
		}
		return nil, application.NewInternalError(err)
	}

	failed, err := s.lifecycle.ApplyFresh(ctx, order.ID, domain.EventSignatureInvalid)
	if err != nil {
		return nil, err
	}

	// Resolve the retry window immediately so the client learns whether a
	// retry is offered.
	next := s.window.Coerce(failed, domain.EventWithinWindow)
	resolved, err := s.lifecycle.ApplyFresh(ctx, order.ID, next)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Order: resolved, Verified: false}, nil
}

// claimVerification drives the order into VERIFYING and reports whether this
// call performed the transition. Moving the state is how a caller claims the
// settle: a concurrent duplicate finds the order already in VERIFYING, gets
// claimed=false and must answer with the current status instead of settling
// the attempt a second time.
func (s *VerifyService) claimVerification(ctx context.Context, orderID uuid.UUID) (*domain.Order, bool, error) {
	var lastErr error

	for i := 0; i < DefaultApplyBudget; i++ {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		if order.Status != domain.StatusAwaitingPayment {
			return order, false, nil
		}

		claimed, err := s.lifecycle.Apply(ctx, orderID, domain.EventCallbackReceived, order.Version)
		if err == nil {
			return claimed, true, nil
		}
		if !application.IsConcurrencyConflict(err) {
			return nil, false, err
		}
		lastErr = err
	}

	return nil, false, lastErr
}

// currentAttempt returns the order's most recent attempt.
func (s *VerifyService) currentAttempt(ctx context.Context, orderID uuid.UUID) (*domain.PaymentAttempt, error) {
	all, err := s.attempts.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, application.NewInvalidInputError(domain.NewAttemptNotFoundError(orderID.String()))
	}

	current := all[0]
	for _, a := range all[1:] {
		if a.CreatedAt.After(current.CreatedAt) {
			current = a
		}
	}
	return current, nil
}
