package rewriter

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/pkg/hls"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRebaseMaster_RewritesVariantAndMediaGroupURIs(t *testing.T) {
	pl := &hls.Playlist{
		Master: hls.MasterPlaylist{
			Variants: []hls.Variant{{URI: "720p/index.m3u8"}},
			MediaGroups: []hls.MediaGroup{{URI: "audio/eng/index.m3u8"}, {URI: ""}},
		},
	}
	originBase := mustParse(t, "https://origin.example.com/live/master.m3u8")
	opts := Options{ProxyBase: "https://proxy.example.com"}

	RebaseMaster(pl, originBase, opts)

	require.Equal(t, "https://proxy.example.com/live/720p/index.m3u8", pl.Master.Variants[0].URI)
	require.Equal(t, "https://proxy.example.com/live/audio/eng/index.m3u8", pl.Master.MediaGroups[0].URI)
	require.Equal(t, "", pl.Master.MediaGroups[1].URI)
}

func TestRebaseMaster_CarriesClientQuery(t *testing.T) {
	pl := &hls.Playlist{Master: hls.MasterPlaylist{Variants: []hls.Variant{{URI: "720p/index.m3u8"}}}}
	originBase := mustParse(t, "https://origin.example.com/live/master.m3u8")
	opts := Options{
		ProxyBase:   "https://proxy.example.com",
		ClientQuery: url.Values{"_HLS_primary_id": []string{"viewer-1"}},
	}

	RebaseMaster(pl, originBase, opts)

	require.Equal(t, "https://proxy.example.com/live/720p/index.m3u8?_HLS_primary_id=viewer-1", pl.Master.Variants[0].URI)
}

func TestRebaseMedia_RewritesSegmentKeyAndMap(t *testing.T) {
	pl := &hls.Playlist{
		Media: hls.MediaPlaylist{
			Segments: []hls.Segment{{
				URI: "seg1.ts",
				Key: &hls.Key{URI: "key1.bin"},
				Map: &hls.Map{URI: "init.mp4"},
			}},
		},
	}
	originBase := mustParse(t, "https://origin.example.com/live/720p/index.m3u8")
	opts := Options{ProxyBase: "https://proxy.example.com"}

	RebaseMedia(pl, originBase, opts)

	require.Equal(t, "https://proxy.example.com/live/720p/seg1.ts", pl.Media.Segments[0].URI)
	require.Equal(t, "https://proxy.example.com/live/720p/key1.bin", pl.Media.Segments[0].Key.URI)
	require.Equal(t, "https://proxy.example.com/live/720p/init.mp4", pl.Media.Segments[0].Map.URI)
}

func TestInjectBreaks_AddsDateRangeAndIsIdempotent(t *testing.T) {
	pl := &hls.Playlist{Media: hls.MediaPlaylist{}}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaks := []scheduler.AdBreak{{ID: "brk1", StartTime: start, Duration: 15}}
	opts := Options{InterstitialsBase: "https://proxy.example.com"}

	InjectBreaks(pl, breaks, opts)
	require.Len(t, pl.Media.DateRanges, 1)
	require.Equal(t, "brk1", pl.Media.DateRanges[0].ID)
	require.Contains(t, pl.Media.DateRanges[0].AssetList, "_HLS_interstitial_id=brk1")
	require.Nil(t, pl.Media.DateRanges[0].ResumeOffset)

	InjectBreaks(pl, breaks, opts)
	require.Len(t, pl.Media.DateRanges, 1, "re-injecting the same break must not duplicate it")
}

func TestInjectBreaks_EmitsResumeOffsetWhenConfigured(t *testing.T) {
	pl := &hls.Playlist{Media: hls.MediaPlaylist{}}
	breaks := []scheduler.AdBreak{{ID: "brk1", StartTime: time.Now(), Duration: 15}}
	opts := Options{InterstitialsBase: "https://proxy.example.com", EmitResumeOffset: true}

	InjectBreaks(pl, breaks, opts)

	require.NotNil(t, pl.Media.DateRanges[0].ResumeOffset)
	require.Equal(t, 15.0, *pl.Media.DateRanges[0].ResumeOffset)
}
