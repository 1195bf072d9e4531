package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/domain"
)

// ErrDuplicatePendingAttempt is returned by attempt stores when a create
// would violate the one-PENDING-attempt-per-order rule.
var ErrDuplicatePendingAttempt = errors.New("order already has a pending attempt")

// ErrAttemptAlreadySettled is returned by attempt stores when an update
// targets a row that is no longer PENDING. Settled attempts are immutable,
// so a racing settle can never overwrite the outcome that won.
var ErrAttemptAlreadySettled = errors.New("attempt already settled")

// VersionConflictError is returned by repositories when a conditional status
// write matches zero rows. Services translate it into a ConcurrencyError.
type VersionConflictError struct {
	OrderID         uuid.UUID
	ExpectedVersion int64
}

func (e *VersionConflictError) Error() string {
	return "order version conflict"
}

// OrderRepository persists orders. UpdateStatus is the only mutation path
// for Status/Version and must be an atomic compare-and-swap on
// (id, expectedVersion); a miss returns *VersionConflictError.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, expectedVersion int64) (*domain.Order, error)
	// FindExpiredPayable returns non-terminal orders whose payment window
	// closed before the cutoff, oldest first.
	FindExpiredPayable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
}

// AttemptRepository persists payment attempts. Rows are append-only; the
// store enforces at most one PENDING attempt per order.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	// Update writes the attempt back only while the stored row is still
	// PENDING; once settled the row is immutable and the store returns
	// ErrAttemptAlreadySettled.
	Update(ctx context.Context, attempt *domain.PaymentAttempt) error
	FindPendingByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.PaymentAttempt, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.PaymentAttempt, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.PaymentAttempt, error)
}

// GatewaySession is the gateway-side order reference backing one attempt.
type GatewaySession struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
}

// GatewayClient opens sessions against the external payment gateway. It is
// injected so the session broker and its tests never need network access.
type GatewayClient interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewaySession, error)
}

// ReservationReleaser returns reserved stock on terminal non-paid outcomes.
// Release is idempotent; releasing an already-released reservation succeeds.
type ReservationReleaser interface {
	Release(ctx context.Context, orderID uuid.UUID) error
}

// ReservationRepository tracks inventory held against orders. Release
// reports whether this call actually freed the reservation, so stock is
// never credited twice.
type ReservationRepository interface {
	Create(ctx context.Context, orderID uuid.UUID, now time.Time) error
	Release(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error)
	// FindUnreleased returns order ids whose reservation is still held, up
	// to limit. Stores may pre-filter to orders that already settled;
	// callers must still check the order state before releasing.
	FindUnreleased(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ReleaseQueue hands reservation releases that failed during settlement to a
// background worker for retry.
type ReleaseQueue interface {
	Enqueue(orderID uuid.UUID)
}

// Clock abstracts time so the retry window is testable without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
