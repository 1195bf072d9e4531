package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

// AttemptRepository stores payment attempts. Rows are append-only; a partial
// unique index on (order_id) WHERE outcome = 'PENDING' enforces the
// single-active-attempt invariant even across processes.
type AttemptRepository struct {
	db *DB
}

func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (
			id, order_id, gateway_order_id, gateway_payment_id, signature,
			outcome, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.OrderID,
		attempt.GatewayOrderID,
		attempt.GatewayPaymentID,
		attempt.Signature,
		string(attempt.Outcome),
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return application.ErrDuplicatePendingAttempt
		}
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}

	return nil
}

// Update writes the attempt back while the stored row is still PENDING. The
// outcome guard makes the settle a compare-and-swap: a caller holding a stale
// copy sees zero rows and can never overwrite an outcome that already won.
func (r *AttemptRepository) Update(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		UPDATE payment_attempts
		SET gateway_order_id = $1, gateway_payment_id = $2, signature = $3,
		    outcome = $4, updated_at = $5
		WHERE id = $6 AND outcome = 'PENDING'
	`

	result, err := r.db.Pool.Exec(ctx, query,
		attempt.GatewayOrderID,
		attempt.GatewayPaymentID,
		attempt.Signature,
		string(attempt.Outcome),
		attempt.UpdatedAt,
		attempt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		checkErr := r.db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE id = $1)`,
			attempt.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to update payment attempt: %w", checkErr)
		}
		if exists {
			return application.ErrAttemptAlreadySettled
		}
		return domain.NewAttemptNotFoundError(attempt.OrderID.String())
	}

	return nil
}

func (r *AttemptRepository) FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.PaymentAttempt, error) {
	query := `
		SELECT id, order_id, gateway_order_id, gateway_payment_id, signature,
		       outcome, created_at, updated_at
		FROM payment_attempts
		WHERE order_id = $1 AND outcome = 'PENDING'
	`

	row := r.db.Pool.QueryRow(ctx, query, orderID)
	return scanAttempt(row, orderID)
}

func (r *AttemptRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT id, order_id, gateway_order_id, gateway_payment_id, signature,
		       outcome, created_at, updated_at
		FROM payment_attempts
		WHERE gateway_order_id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, gatewayOrderID)

	var m AttemptModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.GatewayOrderID, &m.GatewayPaymentID, &m.Signature,
		&m.Outcome, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewAttemptNotFoundError(gatewayOrderID)
		}
		return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
	}
	return toDomainAttempt(m), nil
}

func (r *AttemptRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT id, order_id, gateway_order_id, gateway_payment_id, signature,
		       outcome, created_at, updated_at
		FROM payment_attempts
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query attempts by order_id: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PaymentAttempt, error) {
		var m AttemptModel
		err := row.Scan(
			&m.ID, &m.OrderID, &m.GatewayOrderID, &m.GatewayPaymentID, &m.Signature,
			&m.Outcome, &m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainAttempt(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan attempts: %w", err)
	}

	return results, nil
}

func scanAttempt(row pgx.Row, orderID uuid.UUID) (*domain.PaymentAttempt, error) {
	var m AttemptModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.GatewayOrderID, &m.GatewayPaymentID, &m.Signature,
		&m.Outcome, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewAttemptNotFoundError(orderID.String())
		}
		return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
	}
	return toDomainAttempt(m), nil
}
