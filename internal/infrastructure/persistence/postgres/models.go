package postgres

import (
	"time"

	"github.com/google/uuid"
)

type OrderModel struct {
	ID               uuid.UUID
	DisplayID        string
	AmountMinorUnits int64
	Currency         string
	Status           string
	PaymentExpiresAt time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AttemptModel struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID *string
	Signature        *string
	Outcome          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
