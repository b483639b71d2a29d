// Redis health monitoring
//
// Tracks whether the persisted session store is reachable so the session
// store can fail open to an in-memory fallback instead of failing every
// asset-list request when Redis is briefly unavailable.
package redis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/eyevinn/sgai-proxy/internal/telemetry"
)

// HealthChecker periodically pings a Client and exposes the last known
// status via Healthy().
type HealthChecker struct {
	client   *Client
	interval time.Duration
	timeout  time.Duration
	logger   telemetry.Logger

	healthy atomic.Bool
}

// NewHealthChecker creates a checker that pings every interval.
func NewHealthChecker(client *Client, interval, timeout time.Duration, logger telemetry.Logger) *HealthChecker {
	h := &HealthChecker{client: client, interval: interval, timeout: timeout, logger: logger}
	h.healthy.Store(true)
	return h
}

// Healthy reports the last observed connectivity state.
func (h *HealthChecker) Healthy() bool { return h.healthy.Load() }

// Run blocks, pinging on each interval until ctx is cancelled.
func (h *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.client.Ping(ctx, h.timeout)
			wasHealthy := h.healthy.Load()
			h.healthy.Store(err == nil)
			if err != nil && wasHealthy {
				h.logger.Warn("session store unreachable, failing open to memory", "error", err.Error())
			} else if err == nil && !wasHealthy {
				h.logger.Info("session store reachable again")
			}
		}
	}
}
