package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

// ReconcileWorker is the backstop behind the release queue. It scans for
// reservations still held by settled orders and releases them, so a release
// lost to a full queue or to exhausted retries is recovered on the next pass
// instead of leaking stock forever.
type ReconcileWorker struct {
	orders       application.OrderRepository
	reservations application.ReservationRepository
	releaser     application.ReservationReleaser
	interval     time.Duration
	batchSize    int
	logger       *slog.Logger
}

func NewReconcileWorker(
	orders application.OrderRepository,
	reservations application.ReservationRepository,
	releaser application.ReservationReleaser,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		orders:       orders,
		reservations: reservations,
		releaser:     releaser,
		interval:     interval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	w.logger.Info("reconcile worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation pass.
func (w *ReconcileWorker) RunOnce(ctx context.Context) {
	held, err := w.reservations.FindUnreleased(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to scan held reservations", "error", err)
		return
	}

	var released int
	for _, orderID := range held {
		order, err := w.orders.FindByID(ctx, orderID)
		if err != nil {
			w.logger.Error("failed to load order for held reservation",
				"order_id", orderID,
				"error", err)
			continue
		}
		// PAID keeps its reservation; only expired and cancelled orders
		// give stock back.
		if !domain.ReleasesReservation(order.Status) {
			continue
		}

		if err := w.releaser.Release(ctx, orderID); err != nil {
			w.logger.Error("reconcile release failed",
				"order_id", orderID,
				"error", err)
			continue
		}
		released++
	}

	if released > 0 {
		w.logger.Warn("reconcile sweep recovered leaked releases",
			"scanned", len(held),
			"released", released,
		)
	}
}
