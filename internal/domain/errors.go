package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business rule violation.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeAttemptNotFound     = "ATTEMPT_NOT_FOUND"
	ErrCodeInvalidAttemptState = "INVALID_ATTEMPT_STATE"
	ErrCodeAttemptMismatch     = "ATTEMPT_MISMATCH"
)

func NewValidationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("amount must be a positive number of minor units, got %d", amount),
	}
}

func NewOrderNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order %s not found", id),
	}
}

func NewAttemptNotFoundError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAttemptNotFound,
		Message: fmt.Sprintf("no payment attempt found for order %s", orderID),
	}
}

func NewInvalidAttemptStateError(outcome AttemptOutcome) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAttemptState,
		Message: fmt.Sprintf("attempt already settled as %s", outcome),
	}
}

// NewAttemptMismatchError covers callbacks that reference a gateway order
// other than the order's current attempt, e.g. a stale payload from a
// superseded session.
func NewAttemptMismatchError(got, want string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAttemptMismatch,
		Message: fmt.Sprintf("callback references gateway order %s, current attempt is %s", got, want),
	}
}

// IsErrorCode reports whether err is a DomainError carrying the given code.
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
