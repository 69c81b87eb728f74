package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/trackwise/trackwise/internal/api/response"
)

// Recovery is middleware that recovers from panics and returns an opaque 500.
// The panic value and stack only go to the server log.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				requestID := GetRequestID(r.Context())
				slog.Error("panic recovered", "error", err, "requestId", requestID, "stack", string(debug.Stack()))
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
