// Package worker runs the background loops behind the payment lifecycle:
// the expiration sweep, reservation release retries and the reconciliation
// pass that recovers releases the queue lost.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/domain"
)

// ExpirationWorker sweeps orders whose payment window closed without a
// settlement and drives them to EXPIRED through the state machine. Because
// the transition runs through Apply, the reservation release happens exactly
// once even when sweeps overlap or a client races the sweep.
type ExpirationWorker struct {
	orders    application.OrderRepository
	lifecycle *services.LifecycleService
	clock     application.Clock
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewExpirationWorker(
	orders application.OrderRepository,
	lifecycle *services.LifecycleService,
	clock application.Clock,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &ExpirationWorker{
		orders:    orders,
		lifecycle: lifecycle,
		clock:     clock,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep. Exposed for tests and reconciliation
// triggers.
func (w *ExpirationWorker) RunOnce(ctx context.Context) {
	expired, err := w.orders.FindExpiredPayable(ctx, w.clock.Now(), w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch expired orders", "error", err)
		return
	}

	if len(expired) == 0 {
		return
	}

	var processed, marked int
	for _, order := range expired {
		result, err := w.lifecycle.Apply(ctx, order.ID, domain.EventWindowExpired, order.Version)
		if err != nil {
			if application.IsConcurrencyConflict(err) {
				// Someone settled or expired the order between the scan and
				// the write; the next sweep sees the fresh state.
				continue
			}
			w.logger.Error("failed to expire order",
				"order_id", order.ID,
				"error", err)
			continue
		}
		processed++
		if result.Status == domain.StatusExpired {
			marked++
		}
	}

	w.logger.Info("expiration sweep finished",
		"scanned", len(expired),
		"processed", processed,
		"marked_expired", marked,
	)
}
