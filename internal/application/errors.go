package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeSessionActive       = "SESSION_ACTIVE"
	ErrCodeWindowExpired       = "WINDOW_EXPIRED"
	ErrCodeGatewayUnavailable  = "GATEWAY_UNAVAILABLE"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidInput        = "INVALID_INPUT"
)

// NewConcurrencyError signals a lost version race. Transient: callers retry
// with fresh state, bounded, before surfacing it.
func NewConcurrencyError(orderID string, expectedVersion int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeConcurrencyConflict,
		Message:    fmt.Sprintf("order %s changed concurrently (expected version %d)", orderID, expectedVersion),
		HTTPStatus: http.StatusConflict,
	}
}

// NewAlreadyActiveSessionError tells the client to reuse the existing gateway
// session instead of opening another.
func NewAlreadyActiveSessionError(gatewayOrderID string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeSessionActive,
		Message:    fmt.Sprintf("a payment session is already active (gateway order %s)", gatewayOrderID),
		HTTPStatus: http.StatusConflict,
	}
}

func NewWindowExpiredError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeWindowExpired,
		Message:    "the payment window for this order has expired",
		HTTPStatus: http.StatusGone,
	}
}

func NewGatewayUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayUnavailable,
		Message:    "payment gateway is unavailable, please retry",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// IsConcurrencyConflict reports whether err is a lost version race.
func IsConcurrencyConflict(err error) bool {
	svcErr, ok := IsServiceError(err)
	return ok && svcErr.Code == ErrCodeConcurrencyConflict
}
