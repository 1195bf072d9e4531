package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/domain"
)

type VerifyRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

type VerifyResponse struct {
	Status   string `json:"status"`
	Verified bool   `json:"verified"`
}

// HandleVerify consumes the gateway confirmation relayed by the client.
// Duplicate and late calls get 200 with the settled status; only structural
// problems (unknown order, mismatched attempt, malformed body) are errors.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, domain.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, domain.NewValidationError(err.Error()))
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
