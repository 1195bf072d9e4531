package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

type AttemptRepository struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]*domain.PaymentAttempt
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{
		attempts: make(map[uuid.UUID]*domain.PaymentAttempt),
	}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.IsPending() {
		for _, a := range r.attempts {
			if a.OrderID == attempt.OrderID && a.IsPending() {
				return application.ErrDuplicatePendingAttempt
			}
		}
	}

	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *AttemptRepository) Update(ctx context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.attempts[attempt.ID]
	if !ok {
		return domain.NewAttemptNotFoundError(attempt.OrderID.String())
	}
	// Settled rows are immutable; a stale copy cannot overwrite the
	// outcome that won.
	if !stored.IsPending() {
		return application.ErrAttemptAlreadySettled
	}
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *AttemptRepository) FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.attempts {
		if a.OrderID == orderID && a.IsPending() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.NewAttemptNotFoundError(orderID.String())
}

func (r *AttemptRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.attempts {
		if a.GatewayOrderID == gatewayOrderID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.NewAttemptNotFoundError(gatewayOrderID)
}

func (r *AttemptRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.PaymentAttempt
	for _, a := range r.attempts {
		if a.OrderID == orderID {
			cp := *a
			results = append(results, &cp)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}
