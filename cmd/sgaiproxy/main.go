// Main entry point for the HLS server-guided ad insertion proxy.
//
// Responsibilities:
// - Parse command line flags and positional arguments
// - Load and validate configuration
// - Initialize logging, metrics, origin client, scheduler, live-edge
//   tracker, VAST client and asset-list resolver
// - Set up signal handling for graceful shutdown
// - Start the server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/eyevinn/sgai-proxy/internal/api"
	"github.com/eyevinn/sgai-proxy/internal/assetlist"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/liveedge"
	"github.com/eyevinn/sgai-proxy/internal/origin"
	"github.com/eyevinn/sgai-proxy/internal/proxy"
	"github.com/eyevinn/sgai-proxy/internal/redis"
	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/internal/server"
	"github.com/eyevinn/sgai-proxy/internal/session"
	"github.com/eyevinn/sgai-proxy/internal/telemetry"
	"github.com/eyevinn/sgai-proxy/internal/vast"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cmd := &cobra.Command{
		Use:   "sgaiproxy <listen-addr> <listen-port> <master-playlist-url> <ad-server-endpoint>",
		Short: "HLS server-guided ad insertion proxy",
		Args:  cobra.ArbitraryArgs,
		RunE:  run,
	}
	config.BindFlags(cmd)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &cliError{code: 2, err: err}
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd, args)
	if err != nil {
		return &cliError{code: 2, err: err}
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	metrics := telemetry.NewMetrics()

	originClient := origin.New(cfg.Origin, logger, metrics)
	liveEdgeTracker := liveedge.New(cfg.Origin.StaleAfterMultiple)
	sched := scheduler.New(cfg.Insertion)
	vastClient := vast.New(cfg.VAST)

	sessionStore, sessionCounter := buildSessionStore(cfg, logger)
	resolver := assetlist.New(sched, vastClient, sessionStore, cfg.VAST, cfg.Session.TTL)

	handler, err := proxy.NewHandler(proxy.HandlerOptions{
		Config:         cfg,
		Origin:         originClient,
		LiveEdge:       liveEdgeTracker,
		Scheduler:      sched,
		Resolver:       resolver,
		Logger:         logger,
		Metrics:        metrics,
		SessionCounter: sessionCounter,
	})
	if err != nil {
		return &cliError{code: 2, err: err}
	}

	adminRouter := api.NewRouter()
	adminRouter.RegisterHealthCheck()
	adminRouter.RegisterVersionEndpoint(version, buildTime, gitCommit)
	adminRouter.RegisterConfigEndpoint(func() interface{} { return sanitizedConfig(cfg) })
	if cfg.Metrics.Enabled {
		adminRouter.RegisterPrometheusHandler(promhttp.HandlerFor(telemetry.RegistryOf(metrics), promhttp.HandlerOpts{}))
	}

	gcCron := scheduler.StartGCCron("@every "+cfg.Insertion.GCInterval.String(), logger, func() {
		if _, targetDuration, ok := liveEdgeTracker.AnyTargetDuration(); ok {
			sched.SweepGC(time.Now(), targetDuration)
		}
	})
	defer gcCron.Stop()

	httpServer := server.New(cfg.Server, handler, adminRouter, logger, metrics)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", cfg.Server.Address, "port", cfg.Server.Port, "mode", cfg.Insertion.Mode)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return &cliError{code: 1, err: err}
		}
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return &cliError{code: 1, err: err}
		}
	}
	return nil
}

// buildSessionStore wires a Redis-backed session store with automatic
// in-memory fallback when persisted sessions are enabled, or a plain
// in-memory store otherwise.
func buildSessionStore(cfg *config.Config, logger telemetry.Logger) (session.Store, func() int) {
	memStore := session.NewMemoryStore()
	counter := func() int {
		if sizer, ok := memStore.(interface{ Size() int }); ok {
			return sizer.Size()
		}
		return 0
	}
	if !cfg.Session.Enabled {
		return memStore, counter
	}

	client := redis.NewClient(cfg.Session)
	health := redis.NewHealthChecker(client, 5*time.Second, 2*time.Second, logger)
	go health.Run(context.Background())

	// counter still reports the in-memory fallback's size: it's a lower
	// bound while Redis is healthy (requests served from Redis don't
	// touch it) but the only count available without a Redis SCAN.
	return redis.NewStore(client, health, logger, memStore), counter
}

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return 1
}

// sanitizedConfig returns the subset of cfg safe to expose over /config,
// omitting session-store credentials.
func sanitizedConfig(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"server":    cfg.Server,
		"origin":    cfg.Origin,
		"insertion": cfg.Insertion,
		"vast": map[string]interface{}{
			"endpoint": cfg.VAST.Endpoint,
			"timeout":  cfg.VAST.Timeout,
		},
		"session": map[string]interface{}{
			"enabled": cfg.Session.Enabled,
			"address": cfg.Session.Address,
			"port":    cfg.Session.Port,
			"ttl":     cfg.Session.TTL,
		},
		"log":     cfg.Log,
		"metrics": cfg.Metrics,
	}
}
