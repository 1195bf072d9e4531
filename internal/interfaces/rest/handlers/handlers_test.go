package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/application/services/testhelpers"
	"github.com/quickkart/orderpay/internal/infrastructure/persistence/memory"
	"github.com/quickkart/orderpay/internal/interfaces/rest/handlers"
	"github.com/quickkart/orderpay/internal/inventory"
	"github.com/quickkart/orderpay/internal/signature"
	"github.com/quickkart/orderpay/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	gatewaySecret = "whsec_handler_suite"
	webhookSecret = "whsec_webhook_suite"
)

type fixture struct {
	mux          *http.ServeMux
	clock        *testhelpers.FakeClock
	mockGateway  *testhelpers.MockGatewayClient
	reservations *memory.ReservationRepository
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := testhelpers.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	orders := memory.NewOrderRepository()
	attempts := memory.NewAttemptRepository()
	reservations := memory.NewReservationRepository()
	mockGateway := &testhelpers.MockGatewayClient{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	releaser := inventory.NewReleaser(reservations, clock, logger)
	lifecycle := services.NewLifecycleService(orders, releaser, testhelpers.NewRecordingQueue(), 3, logger)
	windowMgr := window.NewManager(clock)

	orderService := services.NewOrderService(
		orders, reservations, lifecycle, windowMgr, 15*time.Minute, clock, logger)
	sessionService := services.NewSessionService(
		orders, attempts, mockGateway, lifecycle, windowMgr, clock, logger)
	verifyService := services.NewVerifyService(
		orders, attempts, lifecycle, windowMgr, gatewaySecret, clock, logger)

	h := handlers.NewHandlers(orderService, sessionService, verifyService, webhookSecret, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &fixture{
		mux:          mux,
		clock:        clock,
		mockGateway:  mockGateway,
		reservations: reservations,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func (f *fixture) createOrder(t *testing.T) string {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, "/orders", map[string]any{
		"displayId":        "QK-1001",
		"amountMinorUnits": 249900,
		"currency":         "INR",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		OrderID string `json:"orderId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.OrderID
}

func (f *fixture) expectGatewayOrder(gatewayOrderID string) {
	f.mockGateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&application.GatewaySession{
			GatewayOrderID: gatewayOrderID,
			AmountMinor:    249900,
			Currency:       "INR",
		}, nil).
		Once()
}

func (f *fixture) openSession(t *testing.T, orderID, gatewayOrderID string) {
	t.Helper()
	f.expectGatewayOrder(gatewayOrderID)
	rec, _ := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-session", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/orders", map[string]any{
		"displayId":        "QK-1001",
		"amountMinorUnits": 249900,
		"currency":         "INR",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		OrderID          string `json:"orderId"`
		Status           string `json:"status"`
		RemainingSeconds int64  `json:"remainingSeconds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.OrderID)
	assert.Equal(t, "CREATED", data.Status)
	assert.InDelta(t, 900, data.RemainingSeconds, 5)
}

func TestCreateOrder_InvalidAmount(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/orders", map[string]any{
		"displayId":        "QK-1001",
		"amountMinorUnits": -5,
		"currency":         "INR",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)

	f.clock.Advance(5 * time.Minute)

	rec, env := f.do(t, http.MethodGet, "/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Status           string `json:"status"`
		RemainingSeconds int64  `json:"remainingSeconds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "CREATED", data.Status)
	assert.Equal(t, int64(600), data.RemainingSeconds)
}

func TestGetOrder_Unknown(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/orders/a68b4f7e-9a1d-4f55-9e91-0f8e24f4a6c1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ORDER_NOT_FOUND", env.Error.Code)
}

func TestGetOrder_BadID(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/orders/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestOpenSession(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.expectGatewayOrder("gw_order_1")

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-session", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		GatewayOrderID   string `json:"gatewayOrderId"`
		AmountMinorUnits int64  `json:"amountMinorUnits"`
		Currency         string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "gw_order_1", data.GatewayOrderID)
	assert.Equal(t, int64(249900), data.AmountMinorUnits)
	assert.Equal(t, "INR", data.Currency)
}

func TestOpenSession_AlreadyActive(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-session", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SESSION_ACTIVE", env.Error.Code)
}

func TestOpenSession_WindowExpired(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)

	f.clock.Advance(16 * time.Minute)

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-session", nil)
	require.Equal(t, http.StatusGone, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "WINDOW_EXPIRED", env.Error.Code)
}

func TestVerify_ValidSignature(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-verify", map[string]string{
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        signature.Sign("gw_order_1", "gw_pay_1", gatewaySecret),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Status   string `json:"status"`
		Verified bool   `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "PAID", data.Status)
	assert.True(t, data.Verified)
}

func TestVerify_ForgedSignature(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-verify", map[string]string{
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        "deadbeef",
	})

	// A forged callback is a handled outcome, not a transport error.
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Status   string `json:"status"`
		Verified bool   `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "RETRY_OPEN", data.Status)
	assert.False(t, data.Verified)
}

func TestVerify_StaleGatewayOrder(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	// Fail the first session, then open a second one.
	rec, _ := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-verify", map[string]string{
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        "deadbeef",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	f.clock.Advance(30 * time.Second)
	f.openSession(t, orderID, "gw_order_2")

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-verify", map[string]string{
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_2",
		"signature":        signature.Sign("gw_order_1", "gw_pay_2", gatewaySecret),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ATTEMPT_MISMATCH", env.Error.Code)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)

	rec, env := f.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "CANCELLED", data.Status)

	// Cancelling twice stays settled.
	rec, _ = f.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_BadSignature(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	body, err := json.Marshal(map[string]string{
		"orderId":          orderID,
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        signature.Sign("gw_order_1", "gw_pay_1", gatewaySecret),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", "forged")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "WEBHOOK_UNAUTHENTICATED", env.Error.Code)

	// The order is untouched.
	_, orderEnv := f.do(t, http.MethodGet, "/orders/"+orderID, nil)
	var data struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(orderEnv.Data, &data))
	assert.Equal(t, "AWAITING_PAYMENT", data.Status)
}

func TestWebhook_Authenticated(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	body, err := json.Marshal(map[string]string{
		"orderId":          orderID,
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        signature.Sign("gw_order_1", "gw_pay_1", gatewaySecret),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", signature.SignPayload(body, webhookSecret))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var data struct {
		Status   string `json:"status"`
		Verified bool   `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "PAID", data.Status)
	assert.True(t, data.Verified)
}

func TestWebhook_DuplicateAfterClientCallback(t *testing.T) {
	f := newFixture(t)
	orderID := f.createOrder(t)
	f.openSession(t, orderID, "gw_order_1")

	sig := signature.Sign("gw_order_1", "gw_pay_1", gatewaySecret)
	rec, _ := f.do(t, http.MethodPost, "/orders/"+orderID+"/payment-verify", map[string]string{
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        sig,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := json.Marshal(map[string]string{
		"orderId":          orderID,
		"gatewayOrderId":   "gw_order_1",
		"gatewayPaymentId": "gw_pay_1",
		"signature":        sig,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", signature.SignPayload(body, webhookSecret))
	webhookRec := httptest.NewRecorder()
	f.mux.ServeHTTP(webhookRec, req)

	require.Equal(t, http.StatusOK, webhookRec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(webhookRec.Body.Bytes(), &env))
	var data struct {
		Status   string `json:"status"`
		Verified bool   `json:"verified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "PAID", data.Status)
	assert.True(t, data.Verified)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/orders/%s", "a68b4f7e-9a1d-4f55-9e91-0f8e24f4a6c1"), nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
