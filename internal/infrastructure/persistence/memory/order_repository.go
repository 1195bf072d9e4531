// Package memory holds in-process implementations of the persistence ports
// with the same concurrency semantics as the Postgres store. They back unit
// tests and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[uuid.UUID]*domain.Order),
	}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFoundError(id.String())
	}
	cp := *order
	return &cp, nil
}

// UpdateStatus mirrors the store-level compare-and-swap: the mutex makes the
// version check and the write a single atomic step, so racing callers see
// exactly one winner.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, expectedVersion int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFoundError(id.String())
	}
	if order.Version != expectedVersion {
		return nil, &application.VersionConflictError{OrderID: id, ExpectedVersion: expectedVersion}
	}

	order.Status = status
	order.Version++
	order.UpdatedAt = time.Now()

	cp := *order
	return &cp, nil
}

func (r *OrderRepository) FindExpiredPayable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Order
	for _, order := range r.orders {
		if order.IsTerminal() {
			continue
		}
		if order.PaymentExpiresAt.Before(cutoff) {
			cp := *order
			results = append(results, &cp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PaymentExpiresAt.Before(results[j].PaymentExpiresAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
