package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type reservation struct {
	createdAt  time.Time
	releasedAt *time.Time
}

type ReservationRepository struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*reservation
	releases     int
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{
		reservations: make(map[uuid.UUID]*reservation),
	}
}

func (r *ReservationRepository) Create(ctx context.Context, orderID uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[orderID]; ok {
		return nil
	}
	r.reservations[orderID] = &reservation{createdAt: now}
	return nil
}

func (r *ReservationRepository) Release(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[orderID]
	if !ok || res.releasedAt != nil {
		return false, nil
	}
	res.releasedAt = &now
	r.releases++
	return true, nil
}

// FindUnreleased lists orders whose reservation is still held. The memory
// store has no view of order status, so callers filter to settled orders
// themselves.
func (r *ReservationRepository) FindUnreleased(ctx context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for id, res := range r.reservations {
		if res.releasedAt != nil {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// ReleaseCount reports how many reservations were actually credited back,
// used by tests asserting the at-most-once guarantee.
func (r *ReservationRepository) ReleaseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releases
}

// IsReleased reports whether the order's reservation has been freed.
func (r *ReservationRepository) IsReleased(orderID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[orderID]
	return ok && res.releasedAt != nil
}
