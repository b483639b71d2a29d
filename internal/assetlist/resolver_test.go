package assetlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/internal/session"
	"github.com/eyevinn/sgai-proxy/internal/vast"
)

const testVAST = `<?xml version="1.0"?>
<VAST version="3.0">
  <Ad id="ad1">
    <InLine>
      <AdSystem>Test</AdSystem>
      <AdTitle>Test</AdTitle>
      <Creatives>
        <Creative id="c1">
          <Linear>
            <Duration>00:00:10</Duration>
            <MediaFiles>
              <MediaFile delivery="streaming" type="application/x-mpegURL">http://example.com/ad1.m3u8</MediaFile>
            </MediaFiles>
          </Linear>
        </Creative>
      </Creatives>
    </InLine>
  </Ad>
  <Ad id="ad2">
    <InLine>
      <AdSystem>Test</AdSystem>
      <AdTitle>Test</AdTitle>
      <Creatives>
        <Creative id="c2">
          <Linear>
            <Duration>00:00:10</Duration>
            <MediaFiles>
              <MediaFile delivery="streaming" type="application/x-mpegURL">http://example.com/ad2.m3u8</MediaFile>
            </MediaFiles>
          </Linear>
        </Creative>
      </Creatives>
    </InLine>
  </Ad>
</VAST>
`

type fakeBreaks struct {
	brk scheduler.AdBreak
	ok  bool
}

func (f fakeBreaks) Lookup(id string) (scheduler.AdBreak, bool) { return f.brk, f.ok }

func newTestResolver(t *testing.T, hitCounter *int32) (*Resolver, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hitCounter != nil {
			atomic.AddInt32(hitCounter, 1)
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(testVAST))
	}))

	vastClient := vast.New(config.VASTConfig{Endpoint: srv.URL, Timeout: time.Second})
	breaks := fakeBreaks{brk: scheduler.AdBreak{ID: "brk1", Duration: 20, PodCount: 2}, ok: true}
	store := session.NewMemoryStore()
	resolver := New(breaks, vastClient, store, config.VASTConfig{}, time.Minute)

	return resolver, srv.Close
}

func TestResolver_Resolve_ReturnsBothCreatives(t *testing.T) {
	resolver, closeSrv := newTestResolver(t, nil)
	defer closeSrv()

	resp, err := resolver.Resolve(context.Background(), Request{
		InterstitialID: "brk1",
		SessionKey:     "session-a",
	})
	require.NoError(t, err)
	require.Len(t, resp.Assets, 2)
	require.Equal(t, "http://example.com/ad1.m3u8", resp.Assets[0].URI)
	require.Equal(t, 10.0, resp.Assets[0].Duration)
}

func TestResolver_Resolve_UnknownInterstitial(t *testing.T) {
	resolver, closeSrv := newTestResolver(t, nil)
	defer closeSrv()
	resolver.breaks = fakeBreaks{ok: false}

	_, err := resolver.Resolve(context.Background(), Request{InterstitialID: "missing", SessionKey: "s"})
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.KindNotFound))
}

func TestResolver_Resolve_MemoizesPerSession(t *testing.T) {
	var hits int32
	resolver, closeSrv := newTestResolver(t, &hits)
	defer closeSrv()

	req := Request{InterstitialID: "brk1", SessionKey: "session-a"}
	_, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolver_Resolve_StartOffsetTrimsFirstAsset(t *testing.T) {
	resolver, closeSrv := newTestResolver(t, nil)
	defer closeSrv()

	resp, err := resolver.Resolve(context.Background(), Request{
		InterstitialID: "brk1",
		SessionKey:     "session-a",
		StartOffset:    5,
	})
	require.NoError(t, err)
	require.Len(t, resp.Assets, 2)
	require.Contains(t, resp.Assets[0].URI, "_HLS_start_offset=5")
}

func TestResolver_Resolve_StartOffsetDropsElapsedAssets(t *testing.T) {
	resolver, closeSrv := newTestResolver(t, nil)
	defer closeSrv()

	resp, err := resolver.Resolve(context.Background(), Request{
		InterstitialID: "brk1",
		SessionKey:     "session-a",
		StartOffset:    12,
	})
	require.NoError(t, err)
	require.Len(t, resp.Assets, 1)
	require.Equal(t, "http://example.com/ad2.m3u8?_HLS_start_offset=2", resp.Assets[0].URI)
}

func TestResolver_Resolve_DifferentOffsetsDoNotCorruptCache(t *testing.T) {
	resolver, closeSrv := newTestResolver(t, nil)
	defer closeSrv()

	respA, err := resolver.Resolve(context.Background(), Request{InterstitialID: "brk1", SessionKey: "session-a", StartOffset: 0})
	require.NoError(t, err)
	require.Len(t, respA.Assets, 2)

	respB, err := resolver.Resolve(context.Background(), Request{InterstitialID: "brk1", SessionKey: "session-a", StartOffset: 15})
	require.NoError(t, err)
	require.Len(t, respB.Assets, 1)

	respA2, err := resolver.Resolve(context.Background(), Request{InterstitialID: "brk1", SessionKey: "session-a", StartOffset: 0})
	require.NoError(t, err)
	require.Len(t, respA2.Assets, 2)
}

func TestEmpty_HasNoAssets(t *testing.T) {
	require.Empty(t, Empty().Assets)
}
