package assetlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/internal/session"
	"github.com/eyevinn/sgai-proxy/internal/vast"
)

// breakLookup is the subset of *scheduler.Scheduler the resolver needs,
// narrowed so tests can supply a fake without building a whole Scheduler.
type breakLookup interface {
	Lookup(id string) (scheduler.AdBreak, bool)
}

// Resolver implements the asset-list resolution algorithm: break lookup,
// session-memoized ad-server call, VAST parsing and creative selection,
// and start-offset trimming.
type Resolver struct {
	breaks       breakLookup
	vastClient   *vast.Client
	store        session.Store
	ttl          time.Duration
	testAssetURL string

	group singleflight.Group
}

// New creates a Resolver. ttl bounds how long a resolved asset list is
// memoized per session before the ad server is called again.
func New(breaks breakLookup, vastClient *vast.Client, store session.Store, cfg config.VASTConfig, ttl time.Duration) *Resolver {
	return &Resolver{
		breaks:       breaks,
		vastClient:   vastClient,
		store:        store,
		ttl:          ttl,
		testAssetURL: cfg.TestAssetURL,
	}
}

// Request carries the inputs to one asset-list resolution, decoded from
// the interstitials.m3u8 query string by the HTTP surface.
type Request struct {
	InterstitialID string
	SessionKey     string
	StartOffset    float64
	Forwarded      url.Values
}

// Resolve returns the asset list for req, calling the ad server at most
// once per (SessionKey, InterstitialID) even under concurrent requests.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Response, error) {
	brk, ok := r.breaks.Lookup(req.InterstitialID)
	if !ok {
		return Response{}, apierr.Wrap(apierr.KindNotFound, fmt.Errorf("unknown interstitial id %q", req.InterstitialID))
	}

	key := session.Key{SessionID: req.SessionKey, InterstitialID: req.InterstitialID}
	if cached, ok := r.store.Get(key); ok {
		return decodeAndTrim(cached.Assets, req.StartOffset)
	}

	groupKey := req.SessionKey + "|" + req.InterstitialID
	v, err, _ := r.group.Do(groupKey, func() (interface{}, error) {
		// Re-check the cache inside the coalescing gate: a sibling
		// request may have populated it while this one waited to run.
		if cached, ok := r.store.Get(key); ok {
			return cached.Assets, nil
		}

		body, resolveErr := r.resolve(ctx, brk, req)
		if resolveErr != nil {
			return nil, resolveErr
		}

		r.store.Put(key, &session.Resolved{Assets: body, CreatedAt: time.Now()}, r.ttl)
		return body, nil
	})
	if err != nil {
		return Response{}, err
	}

	return decodeAndTrim(v.([]byte), req.StartOffset)
}

// resolve performs the actual ad-server call and VAST normalization,
// returning the full (untrimmed) asset list as marshaled JSON so it can
// be cached once and trimmed per-request thereafter (different viewers
// resuming at different offsets into the same break must not corrupt
// each other's cached copy).
func (r *Resolver) resolve(ctx context.Context, brk scheduler.AdBreak, req Request) ([]byte, error) {
	adServerURL, err := r.vastClient.BuildURL(vast.TemplateParams{
		Duration:  brk.Duration,
		SessionID: req.SessionKey,
		Pod:       brk.PodCount,
		Forwarded: req.Forwarded,
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamAdError, err)
	}

	doc, err := r.vastClient.Fetch(ctx, adServerURL)
	if err != nil {
		return nil, err
	}

	creatives := vast.SelectCreatives(doc, r.testAssetURL)
	resp := Response{Assets: make([]Asset, 0, len(creatives))}
	for _, c := range creatives {
		asset := Asset{URI: c.URI, Duration: c.Duration}
		if c.Signaling != nil {
			if raw, err := json.Marshal(c.Signaling); err == nil {
				asset.Signaling = raw
			}
		}
		resp.Assets = append(resp.Assets, asset)
	}

	return json.Marshal(resp)
}

// decodeAndTrim unmarshals a cached/fresh asset-list body and, if
// offset > 0, applies the _HLS_start_offset trimming rule: creatives
// whose cumulative duration is entirely before offset are dropped, and
// the creative straddling offset has its URI annotated with the
// remaining offset into it.
func decodeAndTrim(body []byte, offset float64) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, apierr.Wrap(apierr.KindInternal, err)
	}
	if offset <= 0 {
		return resp, nil
	}

	var elapsed float64
	trimmed := make([]Asset, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		next := elapsed + a.Duration
		if next <= offset {
			elapsed = next
			continue
		}
		remainder := offset - elapsed
		if remainder > 0 {
			a.URI = appendQuery(a.URI, "_HLS_start_offset", remainder)
		}
		trimmed = append(trimmed, a)
		elapsed = next
	}
	resp.Assets = trimmed
	return resp, nil
}

func appendQuery(rawURL, key string, value float64) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, fmt.Sprintf("%g", value))
	u.RawQuery = q.Encode()
	return u.String()
}
