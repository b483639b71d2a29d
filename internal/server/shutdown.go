// Graceful shutdown implementation
//
// Stops accepting new connections and waits for in-flight requests to
// finish, bounded by config.ServerConfig.ShutdownTimeout.
package server

import (
	"context"
	"net/http"

	"github.com/eyevinn/sgai-proxy/internal/config"
)

func shutdown(ctx context.Context, httpServer *http.Server, cfg config.ServerConfig) error {
	shutdownCtx := ctx
	if cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()
	}
	return httpServer.Shutdown(shutdownCtx)
}
