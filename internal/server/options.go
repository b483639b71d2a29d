// Server configuration options
//
// Translates config.ServerConfig into the concrete http.Server fields:
// listen address, timeouts, and handler.
package server

import (
	"fmt"
	"net/http"

	"github.com/eyevinn/sgai-proxy/internal/config"
)

// Options bundles what's needed to construct an http.Server.
type Options struct {
	Config  config.ServerConfig
	Handler http.Handler
}

func newHTTPServer(opts Options) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Config.Address, opts.Config.Port),
		Handler:      opts.Handler,
		ReadTimeout:  opts.Config.ReadTimeout,
		WriteTimeout: opts.Config.WriteTimeout,
		IdleTimeout:  opts.Config.IdleTimeout,
	}
}
