package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quickkart/orderpay/internal/application"
	"github.com/quickkart/orderpay/internal/domain"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	code := "INTERNAL_ERROR"
	message := err.Error()
	status := http.StatusInternalServerError

	var svcErr *application.ServiceError
	var domainErr *domain.DomainError

	switch {
	case errors.As(err, &svcErr):
		code = svcErr.Code
		message = svcErr.Message
		status = svcErr.HTTPStatus
		// Wrapped domain detail wins over the generic envelope message.
		if errors.As(svcErr.Err, &domainErr) {
			code = domainErr.Code
			message = domainErr.Message
		}

	case errors.As(err, &domainErr):
		code = domainErr.Code
		message = domainErr.Message
		status = domainStatus(domainErr.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

func domainStatus(code string) int {
	switch code {
	case domain.ErrCodeValidation, domain.ErrCodeInvalidAmount, domain.ErrCodeAttemptMismatch:
		return http.StatusBadRequest
	case domain.ErrCodeOrderNotFound, domain.ErrCodeAttemptNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidAttemptState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
