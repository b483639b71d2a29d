// Package proxy implements the HTTP surface: request routing between
// master/media playlist passthrough-with-insertion, asset-list
// resolution, the dynamic break command endpoint, and status reporting.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/eyevinn/sgai-proxy/internal/api"
	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/assetlist"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/liveedge"
	"github.com/eyevinn/sgai-proxy/internal/origin"
	"github.com/eyevinn/sgai-proxy/internal/rewriter"
	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/internal/session"
	"github.com/eyevinn/sgai-proxy/internal/telemetry"
	"github.com/eyevinn/sgai-proxy/pkg/hls"
)

// Handler serves the HLS SGAI proxy's routes.
type Handler struct {
	cfg        *config.Config
	originBase *url.URL
	masterPath string

	origin    *origin.Client
	liveEdge  *liveedge.Tracker
	scheduler *scheduler.Scheduler
	resolver  *assetlist.Resolver
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	lastLiveEdge    atomic.Pointer[time.Time]
	lastOriginFetch atomic.Pointer[time.Time]
	primaryMediaURL atomic.Pointer[string]
	sessionCounter  func() int
}

// HandlerOptions bundles everything the handler needs to construct.
type HandlerOptions struct {
	Config    *config.Config
	Origin    *origin.Client
	LiveEdge  *liveedge.Tracker
	Scheduler *scheduler.Scheduler
	Resolver  *assetlist.Resolver
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	// SessionCounter reports the number of distinct sessions currently
	// tracked, for the /status endpoint; nil reports 0.
	SessionCounter func() int
}

// NewHandler creates a Handler. It parses the configured master-playlist
// URL once so every request can cheaply compare against it.
func NewHandler(opts HandlerOptions) (*Handler, error) {
	base, err := url.Parse(opts.Config.Origin.MasterPlaylistURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid master playlist URL: %w", err)
	}

	h := &Handler{
		cfg:            opts.Config,
		originBase:     base,
		masterPath:     base.Path,
		origin:         opts.Origin,
		liveEdge:       opts.LiveEdge,
		scheduler:      opts.Scheduler,
		resolver:       opts.Resolver,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		sessionCounter: opts.SessionCounter,
	}
	return h, nil
}

// ServeHTTP dispatches to the four route families described in the HTTP
// surface section: playlists, the asset-list endpoint, the dynamic
// command endpoint, and status.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveRequestDuration(r.URL.Path, time.Since(start))
	}()

	if d := h.cfg.Server.RequestDeadline; d > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		r = r.WithContext(ctx)
	}

	switch {
	case r.URL.Path == "/interstitials.m3u8":
		h.handleInterstitials(w, r)
	case r.URL.Path == "/command":
		h.handleCommand(w, r)
	case r.URL.Path == "/status":
		h.handleStatus(w, r)
	case strings.HasSuffix(r.URL.Path, ".m3u8"):
		h.handlePlaylist(w, r)
	default:
		h.writeErr(w, r, apierr.Wrap(apierr.KindNotFound, fmt.Errorf("no route for %s", r.URL.Path)))
	}
}

func (h *Handler) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == h.masterPath {
		h.handleMaster(w, r)
		return
	}
	h.handleMedia(w, r)
}

func (h *Handler) handleMaster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.origin.FetchMaster(ctx, h.cfg.Origin.MasterPlaylistURL)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	now := time.Now()
	h.lastOriginFetch.Store(&now)

	opts := h.rewriteOptions(r)
	rewriter.RebaseMaster(result.Playlist, result.BaseURL, opts)

	h.writePlaylist(w, result.Playlist)
}

func (h *Handler) handleMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target := &url.URL{
		Scheme:   h.originBase.Scheme,
		Host:     h.originBase.Host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}

	result, err := h.origin.FetchMedia(ctx, target.String())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	now := time.Now()
	h.lastOriginFetch.Store(&now)

	mediaURL := target.String()
	h.primaryMediaURL.Store(&mediaURL)
	h.liveEdge.Observe(mediaURL, &result.Playlist.Media, now)

	if !h.scheduler.EpochKnown() {
		if first := firstPDT(result.Playlist); first != nil {
			h.scheduler.ObserveEpoch(*first)
		}
	}

	opts := h.rewriteOptions(r)

	if result.Playlist.Media.PDTMissing {
		h.logger.Warn("media playlist has no PDT anchor, serving without insertion", "path", r.URL.Path)
		rewriter.RebaseMedia(result.Playlist, result.BaseURL, opts)
		h.writePlaylist(w, result.Playlist)
		return
	}

	winStart, winEnd, ok := result.Playlist.Media.Window()
	if ok {
		edge, mediaSeq, err := h.liveEdge.LiveEdge(mediaURL, now)
		if err != nil {
			h.logger.Warn("live-edge tracker stale, serving without insertion", "path", r.URL.Path, "error", err.Error())
		} else {
			edgeCopy := edge
			h.lastLiveEdge.Store(&edgeCopy)
			breaks := h.scheduler.Decide(winStart, winEnd, mediaSeq, result.Playlist.Media.TargetDuration)
			rewriter.InjectBreaks(result.Playlist, breaks, opts)
		}
	}

	rewriter.RebaseMedia(result.Playlist, result.BaseURL, opts)
	h.writePlaylist(w, result.Playlist)
}

func (h *Handler) handleInterstitials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("_HLS_interstitial_id")
	if id == "" {
		h.writeErr(w, r, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("missing _HLS_interstitial_id")))
		return
	}

	var offset float64
	if raw := q.Get("_HLS_start_offset"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeErr(w, r, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("invalid _HLS_start_offset: %w", err)))
			return
		}
		offset = parsed
	}

	forwarded := url.Values{}
	for k, vs := range q {
		switch k {
		case "_HLS_interstitial_id", "_HLS_primary_id", "_HLS_start_offset":
			continue
		}
		forwarded[k] = vs
	}

	req := assetlist.Request{
		InterstitialID: id,
		SessionKey:     session.DeriveKey(r),
		StartOffset:    offset,
		Forwarded:      forwarded,
	}

	resp, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		switch apierr.As(err) {
		case apierr.KindUpstreamAdError, apierr.KindOriginClientError, apierr.KindTimeout:
			h.logger.Warn("asset-list resolution failed upstream, serving empty list", "interstitial_id", id, "error", err.Error())
			h.writeJSON(w, http.StatusOK, assetlist.Empty())
		default:
			h.writeErr(w, r, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in, err := strconv.ParseFloat(q.Get("in"), 64)
	if err != nil {
		h.writeErr(w, r, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("invalid in: %w", err)))
		return
	}
	dur, err := strconv.ParseFloat(q.Get("dur"), 64)
	if err != nil {
		h.writeErr(w, r, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("invalid dur: %w", err)))
		return
	}
	pod := 1
	if raw := q.Get("pod"); raw != "" {
		pod, err = strconv.Atoi(raw)
		if err != nil {
			h.writeErr(w, r, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("invalid pod: %w", err)))
			return
		}
	}

	mediaURLPtr := h.primaryMediaURL.Load()
	if mediaURLPtr == nil {
		h.writeErr(w, r, apierr.Wrap(apierr.KindStale, fmt.Errorf("no media playlist observed yet")))
		return
	}
	liveEdge, _, err := h.liveEdge.LiveEdge(*mediaURLPtr, time.Now())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	id := fmt.Sprintf("cmd-%d", time.Now().UnixNano())
	brk, err := h.scheduler.AddDynamicBreak(id, liveEdge, in, dur, pod)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"id": brk.ID})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"mode":              h.scheduler.Mode(),
		"knownBreaks":       len(h.scheduler.Snapshot()),
		"lastLiveEdge":      timePtrString(h.lastLiveEdge.Load()),
		"lastOriginFetch":   timePtrString(h.lastOriginFetch.Load()),
		"sessionCount":      h.sessionCount(),
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) sessionCount() int {
	if h.sessionCounter == nil {
		return 0
	}
	return h.sessionCounter()
}

func (h *Handler) rewriteOptions(r *http.Request) rewriter.Options {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	proxyBase := fmt.Sprintf("%s://%s", scheme, r.Host)
	interstitialsBase := h.cfg.Server.InterstitialsBase
	if interstitialsBase == "" {
		interstitialsBase = proxyBase
	}
	return rewriter.Options{
		ProxyBase:         proxyBase,
		InterstitialsBase: interstitialsBase,
		ClientQuery:       r.URL.Query(),
		EmitResumeOffset:  h.cfg.Insertion.EmitResumeOffset,
	}
}

func (h *Handler) writePlaylist(w http.ResponseWriter, pl interface{ String() string }) {
	body := pl.String()
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write([]byte(body))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	api.WriteJSON(w, status, v)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := apierr.As(err)
	h.logger.Error("request failed", "path", r.URL.Path, "kind", kind.String(), "error", err.Error())
	h.metrics.IncCounter("error." + kind.String())
	api.WriteError(w, api.NewError(err.Error(), kind.String(), kind.Status()))
}

func timePtrString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// firstPDT returns the PDT of the first segment that carries one, used
// to capture the scheduler's static-mode epoch from the very first
// successful media fetch.
func firstPDT(pl *hls.Playlist) *time.Time {
	for _, seg := range pl.Media.Segments {
		if seg.PDT != nil {
			return seg.PDT
		}
	}
	return nil
}
