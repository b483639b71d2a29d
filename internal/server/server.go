// Main HTTP server implementation
//
// Wires the proxy's playlist/asset-list/command handler and the admin
// router (health, metrics, version) behind the shared middleware chain,
// and owns the listener's lifecycle.
package server

import (
	"context"
	"net/http"

	"github.com/eyevinn/sgai-proxy/internal/api"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/middleware"
	"github.com/eyevinn/sgai-proxy/internal/telemetry"
)

// Server owns the proxy's HTTP listener.
type Server struct {
	http *http.Server
	cfg  config.ServerConfig
}

// New builds a Server. proxyHandler serves the domain routes described in
// the HTTP surface (playlists, asset-list, command, status); adminRouter
// serves /health, /metrics, /version and /config.
func New(cfg config.ServerConfig, proxyHandler http.Handler, adminRouter *api.Router, logger telemetry.Logger, metrics telemetry.Metrics) *Server {
	chain := middleware.NewChain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.Metrics(metrics),
	)

	mux := http.NewServeMux()
	mux.Handle("/health", adminRouter.Handler())
	mux.Handle("/metrics", adminRouter.Handler())
	mux.Handle("/version", adminRouter.Handler())
	mux.Handle("/config", adminRouter.Handler())
	mux.Handle("/", chain.Then(proxyHandler))

	return &Server{
		http: newHTTPServer(Options{Config: cfg, Handler: mux}),
		cfg:  cfg,
	}
}

// ListenAndServe starts serving and blocks until the listener stops.
// http.ErrServerClosed is swallowed, since it's the expected result of
// a graceful Shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, honoring cfg.ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	return shutdown(ctx, s.http, s.cfg)
}
