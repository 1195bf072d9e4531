package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, display_id, amount_minor_units, currency, status,
			payment_expires_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		order.ID,
		order.DisplayID,
		order.AmountMinorUnits,
		order.Currency,
		string(order.Status),
		order.PaymentExpiresAt,
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT id, display_id, amount_minor_units, currency, status,
		       payment_expires_at, version, created_at, updated_at
		FROM orders WHERE id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, id)
	return scanOrder(row, id)
}

// UpdateStatus is the single mutation path for order status. The write is a
// compare-and-swap on (id, version): a concurrent mutation since the read
// leaves zero rows affected, surfaced as a VersionConflictError.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, expectedVersion int64) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING id, display_id, amount_minor_units, currency, status,
		          payment_expires_at, version, created_at, updated_at
	`

	row := r.db.Pool.QueryRow(ctx, query, string(status), id, expectedVersion)

	var m OrderModel
	err := row.Scan(
		&m.ID, &m.DisplayID, &m.AmountMinorUnits, &m.Currency, &m.Status,
		&m.PaymentExpiresAt, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &application.VersionConflictError{OrderID: id, ExpectedVersion: expectedVersion}
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	return toDomainOrder(m), nil
}

// FindExpiredPayable returns non-terminal orders whose payment window closed
// before the cutoff, oldest deadline first.
func (r *OrderRepository) FindExpiredPayable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	query := `
		SELECT id, display_id, amount_minor_units, currency, status,
		       payment_expires_at, version, created_at, updated_at
		FROM orders
		WHERE status NOT IN ('PAID', 'EXPIRED', 'CANCELLED')
		  AND payment_expires_at < $1
		ORDER BY payment_expires_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired orders: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		var m OrderModel
		err := row.Scan(
			&m.ID, &m.DisplayID, &m.AmountMinorUnits, &m.Currency, &m.Status,
			&m.PaymentExpiresAt, &m.Version, &m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainOrder(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan expired orders: %w", err)
	}

	return results, nil
}

func scanOrder(row pgx.Row, id uuid.UUID) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID, &m.DisplayID, &m.AmountMinorUnits, &m.Currency, &m.Status,
		&m.PaymentExpiresAt, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewOrderNotFoundError(id.String())
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return toDomainOrder(m), nil
}
