package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome is the result of one gateway session.
type AttemptOutcome string

const (
	OutcomePending  AttemptOutcome = "PENDING"
	OutcomeVerified AttemptOutcome = "VERIFIED"
	OutcomeRejected AttemptOutcome = "REJECTED"
)

// PaymentAttempt is one gateway session tied to an order. Attempts are
// append-only: a retry creates a new row, it never reuses an old one.
// At most one attempt per order may be PENDING at any time.
type PaymentAttempt struct {
	ID      uuid.UUID
	OrderID uuid.UUID

	GatewayOrderID   string
	GatewayPaymentID *string
	Signature        *string

	Outcome   AttemptOutcome
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPaymentAttempt opens a fresh PENDING attempt for the order.
func NewPaymentAttempt(orderID uuid.UUID, now time.Time) *PaymentAttempt {
	return &PaymentAttempt{
		ID:        uuid.New(),
		OrderID:   orderID,
		Outcome:   OutcomePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Settle records the verification result. An attempt settles once; settling
// a non-pending attempt is an invalid transition.
func (a *PaymentAttempt) Settle(outcome AttemptOutcome, gatewayPaymentID, signature string, now time.Time) error {
	if a.Outcome != OutcomePending {
		return NewInvalidAttemptStateError(a.Outcome)
	}
	if outcome != OutcomeVerified && outcome != OutcomeRejected {
		return NewValidationError("attempt can only settle to VERIFIED or REJECTED")
	}

	a.Outcome = outcome
	a.GatewayPaymentID = &gatewayPaymentID
	a.Signature = &signature
	a.UpdatedAt = now
	return nil
}

// Reject marks an attempt dead without a callback, e.g. when the gateway
// session could not be confirmed.
func (a *PaymentAttempt) Reject(now time.Time) error {
	if a.Outcome != OutcomePending {
		return NewInvalidAttemptStateError(a.Outcome)
	}
	a.Outcome = OutcomeRejected
	a.UpdatedAt = now
	return nil
}

func (a *PaymentAttempt) IsPending() bool {
	return a.Outcome == OutcomePending
}
