// Panic recovery middleware
//
// Prevents a single handler panic from crashing the server:
// - Panic catching
// - Error logging with stack trace
// - 500 response to the client
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/eyevinn/sgai-proxy/internal/telemetry"
)

// Recovery returns a middleware that recovers from panics in the handler
// chain, logs them, and returns a 500 instead of taking down the server.
func Recovery(logger telemetry.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
