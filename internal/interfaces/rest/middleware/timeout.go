package middleware

import (
	"context"
	"net/http"
	"time"
)

const timeoutBody = `{"success":false,"error":{"code":"TIMEOUT","message":"the request did not complete in time"}}`

// Timeout bounds request handling. The deadline rides on the request context
// so in-flight store and gateway calls are cancelled along with the
// response, and the client gets the standard error envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := http.TimeoutHandler(next, timeout, timeoutBody)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			guarded.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
