package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
)

// ReleaseWorker retries reservation releases that failed during settlement.
// The state machine never blocks a settlement on the releaser; it hands the
// order here and this loop grinds until the store confirms. Enqueue is
// non-blocking so a slow worker can't stall Apply.
type ReleaseWorker struct {
	releaser   application.ReservationReleaser
	queue      chan uuid.UUID
	baseDelay  time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewReleaseWorker(
	releaser application.ReservationReleaser,
	queueSize int,
	baseDelay time.Duration,
	maxRetries int,
	logger *slog.Logger,
) *ReleaseWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &ReleaseWorker{
		releaser:   releaser,
		queue:      make(chan uuid.UUID, queueSize),
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Enqueue implements application.ReleaseQueue.
func (w *ReleaseWorker) Enqueue(orderID uuid.UUID) {
	select {
	case w.queue <- orderID:
	default:
		// Queue full: drop. The reconcile sweep finds the held reservation
		// on its next pass and releases it then.
		w.logger.Warn("release queue full, dropping", "order_id", orderID)
	}
}

func (w *ReleaseWorker) Start(ctx context.Context) {
	w.logger.Info("release worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("release worker stopping")
			return
		case orderID := <-w.queue:
			w.retryRelease(ctx, orderID)
		}
	}
}

func (w *ReleaseWorker) retryRelease(ctx context.Context, orderID uuid.UUID) {
	var lastErr error

	for attempt := 0; attempt < w.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.releaser.Release(ctx, orderID); err == nil {
			w.logger.Info("queued reservation release succeeded",
				"order_id", orderID,
				"attempt", attempt+1)
			return
		} else {
			lastErr = err
		}

		if attempt < w.maxRetries-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff(attempt)):
			}
		}
	}

	// The reservation stays held; the reconcile sweep picks it up.
	w.logger.Error("reservation release exhausted retries",
		"order_id", orderID,
		"error", lastErr,
	)
}

// Backoff calculation with exponential delay and jitter
func (w *ReleaseWorker) backoff(attempt int) time.Duration {
	base := w.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
