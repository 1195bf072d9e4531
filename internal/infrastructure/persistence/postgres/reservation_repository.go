package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReservationRepository tracks the inventory hold backing each order. The
// released_at guard makes Release idempotent at the store level: only the
// first call flips the row, every later call sees zero rows affected.
type ReservationRepository struct {
	db *DB
}

func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, orderID uuid.UUID, now time.Time) error {
	query := `
		INSERT INTO reservations (order_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (order_id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, orderID, now)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) Release(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET released_at = $1
		WHERE order_id = $2 AND released_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, now, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to release reservation: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// FindUnreleased returns reservations still held by settled orders, oldest
// first. It feeds the reconciliation sweep that catches releases lost to a
// full retry queue or exhausted retries.
func (r *ReservationRepository) FindUnreleased(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT r.order_id
		FROM reservations r
		JOIN orders o ON o.id = r.order_id
		WHERE r.released_at IS NULL
		  AND o.status IN ('EXPIRED', 'CANCELLED')
		ORDER BY r.created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unreleased reservations: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
		var id uuid.UUID
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan unreleased reservations: %w", err)
	}

	return ids, nil
}
