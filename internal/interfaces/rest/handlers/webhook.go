package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/domain"
	"github.com/quickkart/orderpay/internal/signature"
)

// WebhookRequest is the gateway's asynchronous notification. It can arrive
// before, after or instead of the client's redirect callback; the lifecycle
// state machine makes the race harmless.
type WebhookRequest struct {
	OrderID          string `json:"orderId" validate:"required"`
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// HandleWebhook authenticates the raw body against the shared webhook
// secret before anything is parsed. An unauthenticated webhook is dropped
// with 401 and no state change.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, domain.NewValidationError("unable to read request body"))
		return
	}

	sig := r.Header.Get("X-Gateway-Signature")
	if !signature.VerifyPayload(body, sig, h.webhookSecret) {
		h.logger.Warn("webhook rejected: bad signature", "remote_addr", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(APIResponse{
			Success: false,
			Error:   &APIError{Code: "WEBHOOK_UNAUTHENTICATED", Message: "webhook signature verification failed"},
		})
		return
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondWithError(w, domain.NewValidationError("invalid webhook body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, domain.NewValidationError(err.Error()))
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondWithError(w, domain.NewValidationError("orderId must be a valid uuid"))
		return
	}

	result, err := h.verifyService.Verify(r.Context(), orderID, services.VerifyCommand{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, VerifyResponse{
		Status:   string(result.Order.Status),
		Verified: result.Verified,
	})
}
