// Package window enforces the server-authoritative payment retry window.
package window

import (
	"time"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

// Manager decides whether an order may still be paid or retried. Decisions
// come from the server clock and the order's immutable PaymentExpiresAt;
// client-reported time is never consulted.
type Manager struct {
	clock application.Clock
}

func NewManager(clock application.Clock) *Manager {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Manager{clock: clock}
}

// Remaining returns the time left in the order's payment window, clamped to
// zero once the deadline passes.
func (m *Manager) Remaining(order *domain.Order) time.Duration {
	remaining := order.PaymentExpiresAt.Sub(m.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *Manager) IsExpired(order *domain.Order) bool {
	return m.Remaining(order) == 0
}

// Coerce downgrades a requested event to windowExpired when the order's
// window has closed. Clients may ask for retries or deliver callbacks as
// long as they like; an expired window wins.
func (m *Manager) Coerce(order *domain.Order, requested domain.Event) domain.Event {
	if m.IsExpired(order) {
		return domain.EventWindowExpired
	}
	return requested
}
