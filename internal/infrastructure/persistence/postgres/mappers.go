package postgres

import (
	"github.com/quickkart/orderpay/internal/domain"
)

// toDomainOrder: maps db model to domain entity
func toDomainOrder(m OrderModel) *domain.Order {
	return &domain.Order{
		ID:               m.ID,
		DisplayID:        m.DisplayID,
		AmountMinorUnits: m.AmountMinorUnits,
		Currency:         m.Currency,
		Status:           domain.OrderStatus(m.Status),
		PaymentExpiresAt: m.PaymentExpiresAt,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// toDomainAttempt: maps db model to domain entity
func toDomainAttempt(m AttemptModel) *domain.PaymentAttempt {
	return &domain.PaymentAttempt{
		ID:               m.ID,
		OrderID:          m.OrderID,
		GatewayOrderID:   m.GatewayOrderID,
		GatewayPaymentID: m.GatewayPaymentID,
		Signature:        m.Signature,
		Outcome:          domain.AttemptOutcome(m.Outcome),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
