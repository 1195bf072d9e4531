// Package handlers exposes the payment lifecycle over HTTP.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quickkart/orderpay/internal/application/services"
)

type Handlers struct {
	orderService   *services.OrderService
	sessionService *services.SessionService
	verifyService  *services.VerifyService
	webhookSecret  string
	validate       *validator.Validate
	logger         *slog.Logger
}

func NewHandlers(
	orderService *services.OrderService,
	sessionService *services.SessionService,
	verifyService *services.VerifyService,
	webhookSecret string,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		sessionService: sessionService,
		verifyService:  verifyService,
		webhookSecret:  webhookSecret,
		validate:       validator.New(),
		logger:         logger,
	}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.HandleCreateOrder)
	mux.HandleFunc("GET /orders/{id}", h.HandleGetOrder)
	mux.HandleFunc("POST /orders/{id}/payment-session", h.HandleOpenSession)
	mux.HandleFunc("POST /orders/{id}/payment-verify", h.HandleVerify)
	mux.HandleFunc("POST /orders/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("POST /webhooks/gateway", h.HandleWebhook)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
