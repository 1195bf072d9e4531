package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/quickkart/orderpay/internal/application/services"
	"github.com/quickkart/orderpay/internal/domain"
)

type CreateOrderRequest struct {
	DisplayID        string `json:"displayId" validate:"required"`
	AmountMinorUnits int64  `json:"amountMinorUnits" validate:"required,gt=0"`
	Currency         string `json:"currency" validate:"required,len=3"`
}

type OrderResponse struct {
	OrderID          string    `json:"orderId"`
	DisplayID        string    `json:"displayId"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PaymentExpiresAt time.Time `json:"paymentExpiresAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

func toOrderResponse(order *domain.Order, remaining time.Duration) OrderResponse {
	return OrderResponse{
		OrderID:          order.ID.String(),
		DisplayID:        order.DisplayID,
		AmountMinorUnits: order.AmountMinorUnits,
		Currency:         order.Currency,
		Status:           string(order.Status),
		PaymentExpiresAt: order.PaymentExpiresAt,
		RemainingSeconds: int64(remaining / time.Second),
	}
}

// HandleCreateOrder records an order whose amount was computed upstream and
// starts its payment window.
func (h *Handlers) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, domain.NewValidationError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, domain.NewValidationError(err.Error()))
		return
	}

	order, err := h.orderService.Create(r.Context(), services.CreateOrderCommand{
		DisplayID:        req.DisplayID,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toOrderResponse(order, order.PaymentExpiresAt.Sub(order.CreatedAt)))
}

// HandleGetOrder serves the countdown view. The browser renders
// paymentExpiresAt, the server keeps deciding it.
func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	view, err := h.orderService.Get(r.Context(), orderID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(view.Order, view.Remaining))
}

func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.Cancel(r.Context(), orderID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(order, 0))
}

func orderIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, domain.NewValidationError("order id must be a valid uuid"))
		return uuid.Nil, false
	}
	return orderID, true
}
