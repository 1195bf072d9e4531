package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/observability"
)

// DefaultApplyBudget bounds local retries after a lost version race.
const DefaultApplyBudget = 3

// LifecycleService is the authoritative state holder for orders. Every
// status mutation in the system goes through Apply.
type LifecycleService struct {
	orders       application.OrderRepository
	releaser     application.ReservationReleaser
	releaseQueue application.ReleaseQueue
	applyBudget  int
	logger       *slog.Logger
}

func NewLifecycleService(
	orders application.OrderRepository,
	releaser application.ReservationReleaser,
	releaseQueue application.ReleaseQueue,
	applyBudget int,
	logger *slog.Logger,
) *LifecycleService {
	if applyBudget <= 0 {
		applyBudget = DefaultApplyBudget
	}
	return &LifecycleService{
		orders:       orders,
		releaser:     releaser,
		releaseQueue: releaseQueue,
		applyBudget:  applyBudget,
		logger:       logger,
	}
}

// Apply transitions the order per the lifecycle table, guarded by
// expectedVersion. A pair (status, event) outside the table is a no-op that
// returns the current order unchanged, which makes duplicate callbacks,
// double-clicked retries and racing webhooks harmless. Transitions into
// EXPIRED or CANCELLED release the order's reservation before returning;
// a failed release is queued for asynchronous retry and does not block the
// settlement write.
func (s *LifecycleService) Apply(ctx context.Context, orderID uuid.UUID, event domain.Event, expectedVersion int64) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Version != expectedVersion {
		observability.ConcurrencyConflicts.Inc()
		return nil, application.NewConcurrencyError(orderID.String(), expectedVersion)
	}

	next, ok := order.NextStatus(event)
	if !ok {
		s.logger.Debug("lifecycle event ignored",
			"order_id", orderID,
			"status", order.Status,
			"event", event,
		)
		return order, nil
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, next, expectedVersion)
	if err != nil {
		var conflict *application.VersionConflictError
		if errors.As(err, &conflict) {
			observability.ConcurrencyConflicts.Inc()
			return nil, application.NewConcurrencyError(orderID.String(), expectedVersion)
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("order transitioned",
		"order_id", orderID,
		"from", order.Status,
		"to", next,
		"event", event,
	)

	if updated.IsTerminal() {
		observability.Settlements.WithLabelValues(string(updated.Status)).Inc()
	}

	if domain.ReleasesReservation(next) {
		if err := s.releaser.Release(ctx, orderID); err != nil {
			s.logger.Error("reservation release failed, queueing retry",
				"order_id", orderID,
				"error", err,
			)
			s.releaseQueue.Enqueue(orderID)
		}
	}

	return updated, nil
}

// ApplyFresh re-reads the order and applies the event against its current
// version, retrying lost races up to the configured budget. Callers that
// already hold a version use Apply directly.
func (s *LifecycleService) ApplyFresh(ctx context.Context, orderID uuid.UUID, event domain.Event) (*domain.Order, error) {
	var lastErr error

	for attempt := 0; attempt < s.applyBudget; attempt++ {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}

		updated, err := s.Apply(ctx, orderID, event, order.Version)
		if err == nil {
			return updated, nil
		}
		if !application.IsConcurrencyConflict(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}
