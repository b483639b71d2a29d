package vast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/config"
)

// Client fetches and parses VAST documents from a configured ad server.
type Client struct {
	cfg        config.VASTConfig
	httpClient *http.Client
}

// New creates a Client bound to the given VAST configuration.
func New(cfg config.VASTConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// TemplateParams are the break-derived values substituted into the
// configured ad-server endpoint before it is requested.
type TemplateParams struct {
	Duration  float64
	SessionID string
	Pod       int
	// Forwarded holds additional query parameters appended to the
	// ad-server URL alongside whatever query it already carries. The HTTP
	// surface fills it from the asset-list request's own query, minus the
	// _HLS_* parameters; the master-playlist request's parameters are not
	// captured.
	Forwarded url.Values
}

// BuildURL substitutes [template.*] tokens in cfg.Endpoint and appends
// any forwarded query parameters. Substitution is a first-pass textual
// scan, performed before URL parsing, so templated values never need
// escaping awareness of the surrounding query syntax.
func (c *Client) BuildURL(p TemplateParams) (string, error) {
	raw := c.cfg.Endpoint
	raw = strings.ReplaceAll(raw, "[template.duration]", strconv.FormatFloat(p.Duration, 'f', -1, 64))
	raw = strings.ReplaceAll(raw, "[template.sessionId]", p.SessionID)
	raw = strings.ReplaceAll(raw, "[template.pod]", strconv.Itoa(p.Pod))

	if len(p.Forwarded) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("vast: malformed ad-server endpoint %q: %w", raw, err)
	}
	q := u.Query()
	for k, vs := range p.Forwarded {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch requests and parses a VAST document from adServerURL.
func (c *Client) Fetch(ctx context.Context, adServerURL string) (*VAST, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, adServerURL, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamAdError, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Wrap(apierr.KindTimeout, ctx.Err())
		}
		return nil, apierr.Wrap(apierr.KindUpstreamAdError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.Wrap(apierr.KindUpstreamAdError, fmt.Errorf("ad server returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamAdError, err)
	}

	var doc VAST
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamAdError, fmt.Errorf("malformed VAST response: %w", err))
	}

	return &doc, nil
}

// FetchTimeout is a convenience for callers that want to bound the
// overall resolution step rather than just the HTTP round trip.
func (c *Client) FetchTimeout() time.Duration {
	return c.cfg.Timeout
}
