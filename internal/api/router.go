// API routes definition
//
// Management API routing built on chi:
// - Route definitions
// - Handler mapping
// - Version reporting
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router manages the management/admin routes (health, version, metrics,
// config),
// as opposed to the domain HTTP surface served by internal/proxy.
type Router struct {
	mux *chi.Mux
}

// NewRouter creates a new API router.
func NewRouter() *Router {
	return &Router{mux: chi.NewRouter()}
}

// Handler returns the HTTP handler for the router.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// RegisterHealthCheck registers a health check endpoint.
func (r *Router) RegisterHealthCheck() {
	r.mux.Get("/health", HealthHandler())
}

// RegisterConfigEndpoint registers a read-only config introspection
// endpoint, backed by a caller-supplied getter so sensitive fields (e.g.
// credentials) can be scrubbed before exposure.
func (r *Router) RegisterConfigEndpoint(configGetter func() interface{}) {
	r.mux.Get("/config", ConfigHandler(configGetter))
}

// RegisterPrometheusHandler mounts a promhttp handler at /metrics.
func (r *Router) RegisterPrometheusHandler(h http.Handler) {
	r.mux.Handle("/metrics", h)
}

// RegisterVersionEndpoint registers a version endpoint.
func (r *Router) RegisterVersionEndpoint(version, buildTime, gitCommit string) {
	r.mux.Get("/version", func(w http.ResponseWriter, req *http.Request) {
		info := map[string]string{
			"version":   version,
			"buildTime": buildTime,
			"gitCommit": gitCommit,
		}
		WriteJSON(w, http.StatusOK, info)
	})
}
