package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/application/services/testhelpers"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	testDB          *testhelpers.TestDatabase
	orderRepo       *postgres.OrderRepository
	attemptRepo     *postgres.AttemptRepository
	reservationRepo *postgres.ReservationRepository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (suite *RepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.orderRepo = postgres.NewOrderRepository(suite.testDB.DB)
	suite.attemptRepo = postgres.NewAttemptRepository(suite.testDB.DB)
	suite.reservationRepo = postgres.NewReservationRepository(suite.testDB.DB)
}

func (suite *RepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RepositoryTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RepositoryTestSuite) createOrder() *domain.Order {
	t := suite.T()
	now := time.Now().UTC()
	order, err := domain.NewOrder("QK-"+uuid.New().String()[:8], 249900, "INR", now, 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, suite.orderRepo.Create(context.Background(), order))
	return order
}

func (suite *RepositoryTestSuite) Test_OrderRoundTrip() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()

	stored, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, order.DisplayID, stored.DisplayID)
	assert.Equal(t, order.AmountMinorUnits, stored.AmountMinorUnits)
	assert.Equal(t, order.Currency, stored.Currency)
	assert.Equal(t, domain.StatusCreated, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.WithinDuration(t, order.PaymentExpiresAt, stored.PaymentExpiresAt, time.Millisecond)
}

func (suite *RepositoryTestSuite) Test_FindByID_Unknown() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.orderRepo.FindByID(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
}

func (suite *RepositoryTestSuite) Test_UpdateStatus_CompareAndSwap() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()

	updated, err := suite.orderRepo.UpdateStatus(ctx, order.ID, domain.StatusAwaitingPayment, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	// The stale version loses.
	_, err = suite.orderRepo.UpdateStatus(ctx, order.ID, domain.StatusCancelled, 1)
	require.Error(t, err)
	var conflict *application.VersionConflictError
	assert.True(t, errors.As(err, &conflict))

	stored, err := suite.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func (suite *RepositoryTestSuite) Test_FindExpiredPayable() {
	ctx := context.Background()
	t := suite.T()
	now := time.Now().UTC()

	expired := suite.createOrder()
	suite.createOrder() // still inside its window
	settled := suite.createOrder()

	// Push the deadlines into the past for the expired and settled orders.
	_, err := suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE orders SET payment_expires_at = $1 WHERE id = ANY($2)",
		now.Add(-time.Minute), []uuid.UUID{expired.ID, settled.ID})
	require.NoError(t, err)
	_, err = suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE orders SET status = 'PAID' WHERE id = $1", settled.ID)
	require.NoError(t, err)

	results, err := suite.orderRepo.FindExpiredPayable(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, expired.ID, results[0].ID)
}

func (suite *RepositoryTestSuite) Test_AttemptCreate_SecondPendingRejected() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()
	now := time.Now().UTC()

	first := domain.NewPaymentAttempt(order.ID, now)
	require.NoError(t, suite.attemptRepo.Create(ctx, first))

	second := domain.NewPaymentAttempt(order.ID, now)
	err := suite.attemptRepo.Create(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrDuplicatePendingAttempt)

	// Once the first settles, a new pending attempt is allowed again.
	require.NoError(t, first.Reject(now))
	require.NoError(t, suite.attemptRepo.Update(ctx, first))
	require.NoError(t, suite.attemptRepo.Create(ctx, second))
}

func (suite *RepositoryTestSuite) Test_AttemptRoundTrip() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()
	now := time.Now().UTC()

	attempt := domain.NewPaymentAttempt(order.ID, now)
	attempt.GatewayOrderID = "gw_order_1"
	require.NoError(t, suite.attemptRepo.Create(ctx, attempt))

	require.NoError(t, attempt.Settle(domain.OutcomeVerified, "gw_pay_1", "cafebabe", now))
	require.NoError(t, suite.attemptRepo.Update(ctx, attempt))

	stored, err := suite.attemptRepo.FindByGatewayOrderID(ctx, "gw_order_1")
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, stored.ID)
	assert.Equal(t, domain.OutcomeVerified, stored.Outcome)
	require.NotNil(t, stored.GatewayPaymentID)
	assert.Equal(t, "gw_pay_1", *stored.GatewayPaymentID)
	require.NotNil(t, stored.Signature)
	assert.Equal(t, "cafebabe", *stored.Signature)
}

func (suite *RepositoryTestSuite) Test_FindPendingByOrderID() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()
	now := time.Now().UTC()

	_, err := suite.attemptRepo.FindPendingByOrderID(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound))

	attempt := domain.NewPaymentAttempt(order.ID, now)
	require.NoError(t, suite.attemptRepo.Create(ctx, attempt))

	pending, err := suite.attemptRepo.FindPendingByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, pending.ID)
}

func (suite *RepositoryTestSuite) Test_ReservationRelease_OnlyFirstCallWins() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()
	now := time.Now().UTC()

	require.NoError(t, suite.reservationRepo.Create(ctx, order.ID, now))
	// Creating again is a no-op, not an error.
	require.NoError(t, suite.reservationRepo.Create(ctx, order.ID, now))

	released, err := suite.reservationRepo.Release(ctx, order.ID, now)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = suite.reservationRepo.Release(ctx, order.ID, now)
	require.NoError(t, err)
	assert.False(t, released, "stock must never be credited twice")
}

func (suite *RepositoryTestSuite) Test_AttemptUpdate_SettledRowIsImmutable() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()
	now := time.Now().UTC()

	attempt := domain.NewPaymentAttempt(order.ID, now)
	attempt.GatewayOrderID = "gw_order_race"
	require.NoError(t, suite.attemptRepo.Create(ctx, attempt))

	// Two callers fetch the same PENDING row.
	winner, err := suite.attemptRepo.FindByGatewayOrderID(ctx, "gw_order_race")
	require.NoError(t, err)
	loser, err := suite.attemptRepo.FindByGatewayOrderID(ctx, "gw_order_race")
	require.NoError(t, err)

	require.NoError(t, winner.Settle(domain.OutcomeVerified, "gw_pay_1", "cafebabe", now))
	require.NoError(t, suite.attemptRepo.Update(ctx, winner))

	// The stale copy settles the other way; the store must refuse it.
	require.NoError(t, loser.Settle(domain.OutcomeRejected, "gw_pay_1", "deadbeef", now))
	err = suite.attemptRepo.Update(ctx, loser)
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrAttemptAlreadySettled)

	stored, err := suite.attemptRepo.FindByGatewayOrderID(ctx, "gw_order_race")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeVerified, stored.Outcome, "the outcome that won must survive")
}

func (suite *RepositoryTestSuite) Test_AttemptUpdate_MissingRow() {
	ctx := context.Background()
	t := suite.T()
	order := suite.createOrder()
	now := time.Now().UTC()

	attempt := domain.NewPaymentAttempt(order.ID, now)
	err := suite.attemptRepo.Update(ctx, attempt)
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound))
}

func (suite *RepositoryTestSuite) Test_FindUnreleased_SettledOrdersOnly() {
	ctx := context.Background()
	t := suite.T()
	now := time.Now().UTC()

	leaked := suite.createOrder()
	paid := suite.createOrder()
	alreadyReleased := suite.createOrder()
	live := suite.createOrder()

	for _, o := range []*domain.Order{leaked, paid, alreadyReleased, live} {
		require.NoError(t, suite.reservationRepo.Create(ctx, o.ID, now))
	}

	_, err := suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE orders SET status = 'EXPIRED' WHERE id = ANY($1)",
		[]uuid.UUID{leaked.ID, alreadyReleased.ID})
	require.NoError(t, err)
	_, err = suite.testDB.DB.Pool.Exec(ctx,
		"UPDATE orders SET status = 'PAID' WHERE id = $1", paid.ID)
	require.NoError(t, err)

	released, err := suite.reservationRepo.Release(ctx, alreadyReleased.ID, now)
	require.NoError(t, err)
	require.True(t, released)

	held, err := suite.reservationRepo.FindUnreleased(ctx, 100)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, leaked.ID, held[0])
}
