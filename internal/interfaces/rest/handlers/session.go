package handlers

import (
	"net/http"
	"time"
)

type SessionResponse struct {
	GatewayOrderID   string    `json:"gatewayOrderId"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	Currency         string    `json:"currency"`
	PaymentExpiresAt time.Time `json:"paymentExpiresAt"`
}

// HandleOpenSession opens or reopens a gateway session for the order.
// Responds 409 while a session is active and 410 once the payment window
// has expired; a gateway outage is 502 and leaves the order untouched.
func (h *Handlers) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	result, err := h.sessionService.Open(r.Context(), orderID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, SessionResponse{
		GatewayOrderID:   result.GatewayOrderID,
		AmountMinorUnits: result.AmountMinorUnits,
		Currency:         result.Currency,
		PaymentExpiresAt: result.PaymentExpiresAt,
	})
}
