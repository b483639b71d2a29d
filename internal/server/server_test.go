package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/config"
)

func TestNewHTTPServer_AppliesConfig(t *testing.T) {
	cfg := config.ServerConfig{
		Address:      "127.0.0.1",
		Port:         9999,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	}
	mux := http.NewServeMux()
	srv := newHTTPServer(Options{Config: cfg, Handler: mux})

	require.Equal(t, "127.0.0.1:9999", srv.Addr)
	require.Equal(t, 1*time.Second, srv.ReadTimeout)
	require.Equal(t, 2*time.Second, srv.WriteTimeout)
	require.Equal(t, 3*time.Second, srv.IdleTimeout)
}

func TestShutdown_StopsServerGracefully(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpServer := &http.Server{Handler: http.NewServeMux()}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(ln) }()

	// give the goroutine a moment to start accepting.
	time.Sleep(10 * time.Millisecond)

	err = shutdown(context.Background(), httpServer, config.ServerConfig{ShutdownTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, http.ErrServerClosed, <-serveErr)
}

func TestShutdown_HonorsZeroTimeoutAsNoDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpServer := &http.Server{Handler: http.NewServeMux()}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(ln) }()
	time.Sleep(10 * time.Millisecond)

	err = shutdown(context.Background(), httpServer, config.ServerConfig{ShutdownTimeout: 0})
	require.NoError(t, err)
	require.Equal(t, http.ErrServerClosed, <-serveErr)
}
