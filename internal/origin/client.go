// Origin client
//
// Talks to the upstream HLS origin:
// - Request formation against the configured master/media URLs
// - Retry with exponential backoff on transient failures
// - Error mapping into the proxy's error-kind taxonomy
// - Persistent connection pooling via a tuned http.Transport
package origin

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/telemetry"
	"github.com/eyevinn/sgai-proxy/pkg/hls"
)

// Client fetches and parses playlists from the upstream origin.
type Client struct {
	cfg        config.OriginConfig
	httpClient *http.Client
	logger     telemetry.Logger
	metrics    telemetry.Metrics
}

// New creates an origin Client using the teacher's connection-pool shape:
// a dedicated http.Transport sized for a proxy fronting many concurrent
// playlist fetches against a small set of origin hosts.
func New(cfg config.OriginConfig, logger telemetry.Logger, metrics telemetry.Metrics) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:          cfg.MaxIdleConns,
				MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
				MaxConnsPerHost:       cfg.MaxConnsPerHost,
				IdleConnTimeout:       cfg.IdleConnTimeout,
				TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
				ExpectContinueTimeout: cfg.ExpectContinueTimeout,
			},
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Result carries a parsed playlist alongside the absolute URL it was
// fetched from, so callers can resolve relative variant/segment URIs.
type Result struct {
	Playlist *hls.Playlist
	BaseURL  *url.URL
}

// FetchMaster fetches and parses the master playlist at rawURL.
func (c *Client) FetchMaster(ctx context.Context, rawURL string) (*Result, error) {
	return c.fetch(ctx, rawURL)
}

// FetchMedia fetches and parses the media playlist at absoluteURL,
// preserving any query parameters forwarded by the caller.
func (c *Client) FetchMedia(ctx context.Context, absoluteURL string) (*Result, error) {
	return c.fetch(ctx, absoluteURL)
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Result, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("invalid origin URL %q: %w", rawURL, err))
	}

	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apierr.Wrap(apierr.KindTimeout, ctx.Err())
			}
		}

		start := time.Now()
		body, resolvedBase, statusCode, fetchErr := c.do(ctx, target)
		if c.metrics != nil {
			c.metrics.ObserveOriginDuration(target.Host, time.Since(start))
		}

		if fetchErr == nil {
			pl, parseErr := hls.New().Parse(body)
			body.Close()
			if parseErr != nil {
				return nil, apierr.Wrap(apierr.KindMalformedPlaylist, fmt.Errorf("parsing playlist from %s: %w", rawURL, parseErr))
			}
			if pl.IsMedia() {
				pl.ComputeEffectivePDTs(time.Now())
			}
			return &Result{Playlist: pl, BaseURL: resolvedBase}, nil
		}

		lastErr = fetchErr
		if !isRetryable(statusCode, fetchErr) {
			break
		}
		if c.logger != nil {
			c.logger.Warn("origin fetch retrying", "url", rawURL, "attempt", attempt, "error", fetchErr.Error())
		}
	}

	if ctx.Err() != nil {
		return nil, apierr.Wrap(apierr.KindTimeout, ctx.Err())
	}
	return nil, apierr.Wrap(apierr.KindOriginClientError, fmt.Errorf("fetching %s: %w", rawURL, lastErr))
}

func (c *Client) do(ctx context.Context, target *url.URL) (io.ReadCloser, *url.URL, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, nil, resp.StatusCode, fmt.Errorf("origin returned status %d", resp.StatusCode)
	}

	base := resp.Request.URL
	return resp.Body, base, resp.StatusCode, nil
}

// isRetryable reports whether a failed fetch should be retried: network
// errors and 408/429/5xx are transient, any other 4xx is not.
func isRetryable(statusCode int, err error) bool {
	if statusCode == 0 {
		return true
	}
	if statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests {
		return true
	}
	if statusCode >= 500 {
		return true
	}
	return false
}
