// API request handlers
//
// Generic admin endpoints shared by any deployment of the proxy: process
// health and config introspection. The domain /status endpoint (insertion
// mode, break counts, live-edge state) lives in internal/proxy since it
// needs access to the scheduler and live-edge tracker.
package api

import (
	"net/http"
	"runtime"
	"time"
)

// HealthHandler returns a handler for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":     "ok",
			"uptime":     time.Since(startTime).String(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		}
		WriteJSON(w, http.StatusOK, health)
	}
}

// ConfigHandler returns a handler for the /config endpoint.
func ConfigHandler(configGetter func() interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, configGetter())
	}
}

var startTime = time.Now()
