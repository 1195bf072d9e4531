package gateway

import (
	"errors"
	"fmt"
)

type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
}

type GatewayErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

// IsRetryable reports whether the client may safely retry the session open.
// Session opens are idempotent on our side: a duplicate is caught by the
// active-session guard.
func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}
