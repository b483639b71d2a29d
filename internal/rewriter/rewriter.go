// Package rewriter turns an origin playlist plus a scheduler's decision
// into the playlist actually served to the client: variant/segment URIs
// rebased behind the proxy, and (for media playlists) EXT-X-DATERANGE
// interstitial markers injected for each scheduled break in view.
package rewriter

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/pkg/hls"
)

// Options configures a single rewrite pass.
type Options struct {
	// ProxyBase is this proxy's own externally visible base URL, e.g.
	// "https://proxy.example.com".
	ProxyBase string
	// InterstitialsBase is the base URL advertised in X-ASSET-LIST links.
	InterstitialsBase string
	// ClientQuery holds query parameters from the client's original
	// request, propagated onto every rebased downstream link so session
	// identity (e.g. _HLS_primary_id) survives the hop.
	ClientQuery url.Values
	EmitResumeOffset bool
}

// RebaseMaster rewrites variant URIs in a master playlist to point back
// through this proxy, leaving everything else untouched.
func RebaseMaster(pl *hls.Playlist, originBase *url.URL, opts Options) {
	for i := range pl.Master.Variants {
		pl.Master.Variants[i].URI = rebase(originBase, pl.Master.Variants[i].URI, opts)
	}
	for i := range pl.Master.IFrameStreams {
		pl.Master.IFrameStreams[i].URI = rebase(originBase, pl.Master.IFrameStreams[i].URI, opts)
	}
	for i := range pl.Master.MediaGroups {
		if pl.Master.MediaGroups[i].URI != "" {
			pl.Master.MediaGroups[i].URI = rebase(originBase, pl.Master.MediaGroups[i].URI, opts)
		}
	}
}

// RebaseMedia rewrites segment, key and map URIs in a media playlist to
// point back through this proxy.
func RebaseMedia(pl *hls.Playlist, originBase *url.URL, opts Options) {
	for i := range pl.Media.Segments {
		seg := &pl.Media.Segments[i]
		seg.URI = rebase(originBase, seg.URI, opts)
		if seg.Key != nil && seg.Key.URI != "" {
			seg.Key.URI = rebase(originBase, seg.Key.URI, opts)
		}
		if seg.Map != nil && seg.Map.URI != "" {
			seg.Map.URI = rebase(originBase, seg.Map.URI, opts)
		}
	}
}

// rebase resolves uri against originBase (the URL the playlist itself was
// fetched from) to get an absolute origin URL, then re-roots it under
// proxyBase at the same path, carrying over the client's query parameters.
func rebase(originBase *url.URL, uri string, opts Options) string {
	if uri == "" {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	absolute := originBase.ResolveReference(ref)

	proxyBase, err := url.Parse(strings.TrimRight(opts.ProxyBase, "/"))
	if err != nil {
		return absolute.String()
	}

	out := &url.URL{
		Scheme: proxyBase.Scheme,
		Host:   proxyBase.Host,
		Path:   path.Join(proxyBase.Path, absolute.Path),
	}

	q := absolute.Query()
	for k, vs := range opts.ClientQuery {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	out.RawQuery = q.Encode()

	return out.String()
}

// InjectBreaks adds one EXT-X-DATERANGE per break to pl.Media.DateRanges.
// Breaks already present (by ID) are not duplicated, so repeated rewrites
// of the same playlist window are idempotent.
func InjectBreaks(pl *hls.Playlist, breaks []scheduler.AdBreak, opts Options) {
	existing := make(map[string]bool, len(pl.Media.DateRanges))
	for _, dr := range pl.Media.DateRanges {
		existing[dr.ID] = true
	}

	for _, b := range breaks {
		if existing[b.ID] {
			continue
		}
		dr := hls.DateRange{
			ID:        b.ID,
			Class:     hls.ClassInterstitial,
			StartDate: b.StartTime,
			Duration:  b.Duration,
			AssetList: assetListURL(opts.InterstitialsBase, b.ID),
			Restrict:  "SKIP,JUMP",
			Snap:      "IN,OUT",
		}
		if opts.EmitResumeOffset {
			offset := b.Duration
			dr.ResumeOffset = &offset
		}
		pl.Media.DateRanges = append(pl.Media.DateRanges, dr)
	}
}

func assetListURL(base, interstitialID string) string {
	return fmt.Sprintf("%s/interstitials.m3u8?_HLS_interstitial_id=%s", strings.TrimRight(base, "/"), interstitialID)
}
