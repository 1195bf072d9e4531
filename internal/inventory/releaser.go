// Package inventory returns reserved stock when an order ends without
// payment.
package inventory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/observability"
)

// Releaser frees an order's reservation. It may be invoked more than once
// for the same order (state machine plus reconciliation sweep); the store's
// released-at guard ensures stock is credited at most once.
type Releaser struct {
	reservations application.ReservationRepository
	clock        application.Clock
	logger       *slog.Logger
}

func NewReleaser(reservations application.ReservationRepository, clock application.Clock, logger *slog.Logger) *Releaser {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Releaser{
		reservations: reservations,
		clock:        clock,
		logger:       logger,
	}
}

func (r *Releaser) Release(ctx context.Context, orderID uuid.UUID) error {
	released, err := r.reservations.Release(ctx, orderID, r.clock.Now())
	if err != nil {
		observability.ReservationReleases.WithLabelValues("error").Inc()
		return err
	}

	if released {
		observability.ReservationReleases.WithLabelValues("released").Inc()
		r.logger.Info("reservation released", "order_id", orderID)
	} else {
		observability.ReservationReleases.WithLabelValues("already_released").Inc()
	}
	return nil
}
