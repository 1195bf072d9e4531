// Package domain defines the order payment lifecycle model and its
// transition rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents where an order sits in its payment lifecycle.
type OrderStatus string

const (
	StatusCreated         OrderStatus = "CREATED"
	StatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	StatusVerifying       OrderStatus = "VERIFYING"
	StatusPaid            OrderStatus = "PAID"
	StatusFailed          OrderStatus = "FAILED"
	StatusRetryOpen       OrderStatus = "RETRY_OPEN"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// Event is a lifecycle trigger fed into the state machine.
type Event string

const (
	EventOpenSession      Event = "openSession"
	EventCallbackReceived Event = "callbackReceived"
	EventSignatureValid   Event = "signatureValid"
	EventSignatureInvalid Event = "signatureInvalid"
	EventWithinWindow     Event = "withinWindow"
	EventWindowExpired    Event = "windowExpired"
	EventAdminCancel      Event = "adminCancel"
)

// Order is the persistent financial record. Amount and PaymentExpiresAt are
// immutable once set; Status is mutated only through the state machine with
// Version as the concurrency token.
type Order struct {
	ID        uuid.UUID
	DisplayID string

	AmountMinorUnits int64
	Currency         string

	Status           OrderStatus
	PaymentExpiresAt time.Time
	Version          int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder creates an order in CREATED with the payment window anchored to
// the creation time. The window is a server policy, never client input.
func NewOrder(displayID string, amountMinorUnits int64, currency string, now time.Time, window time.Duration) (*Order, error) {
	if amountMinorUnits <= 0 {
		return nil, NewInvalidAmountError(amountMinorUnits)
	}
	if currency == "" {
		return nil, NewValidationError("currency is required")
	}
	if displayID == "" {
		return nil, NewValidationError("display id is required")
	}

	return &Order{
		ID:               uuid.New(),
		DisplayID:        displayID,
		AmountMinorUnits: amountMinorUnits,
		Currency:         currency,
		Status:           StatusCreated,
		PaymentExpiresAt: now.Add(window),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NextStatus resolves the transition table for the given event. The second
// return is false when the pair (current status, event) is not in the table;
// callers treat that as an idempotent no-op, never as state change.
//
// Valid transitions are:
//   - Created → AwaitingPayment (openSession)
//   - AwaitingPayment → Verifying (callbackReceived)
//   - Verifying → Paid (signatureValid), Failed (signatureInvalid)
//   - Failed → RetryOpen (withinWindow), Expired (windowExpired)
//   - RetryOpen → AwaitingPayment (openSession), Expired (windowExpired)
//   - any non-terminal → Cancelled (adminCancel)
//
// Terminal states (Paid, Expired, Cancelled) accept no events.
func (o *Order) NextStatus(event Event) (OrderStatus, bool) {
	if o.IsTerminal() {
		return o.Status, false
	}

	if event == EventAdminCancel {
		return StatusCancelled, true
	}

	switch o.Status {
	case StatusCreated:
		if event == EventOpenSession {
			return StatusAwaitingPayment, true
		}
		if event == EventWindowExpired {
			return StatusExpired, true
		}

	case StatusAwaitingPayment:
		if event == EventCallbackReceived {
			return StatusVerifying, true
		}
		if event == EventWindowExpired {
			return StatusExpired, true
		}

	case StatusVerifying:
		if event == EventSignatureValid {
			return StatusPaid, true
		}
		if event == EventSignatureInvalid {
			return StatusFailed, true
		}

	case StatusFailed:
		if event == EventWithinWindow {
			return StatusRetryOpen, true
		}
		if event == EventWindowExpired {
			return StatusExpired, true
		}

	case StatusRetryOpen:
		if event == EventOpenSession {
			return StatusAwaitingPayment, true
		}
		if event == EventWindowExpired {
			return StatusExpired, true
		}
	}

	return o.Status, false
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusPaid, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// ReleasesReservation reports whether entering the status must return the
// order's reserved stock.
func ReleasesReservation(s OrderStatus) bool {
	return s == StatusExpired || s == StatusCancelled
}
