package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/assetlist"
	"github.com/eyevinn/sgai-proxy/internal/config"
	"github.com/eyevinn/sgai-proxy/internal/liveedge"
	"github.com/eyevinn/sgai-proxy/internal/origin"
	"github.com/eyevinn/sgai-proxy/internal/scheduler"
	"github.com/eyevinn/sgai-proxy/internal/session"
	"github.com/eyevinn/sgai-proxy/internal/telemetry"
	"github.com/eyevinn/sgai-proxy/internal/vast"
)

const testMaster = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-STREAM-INF:BANDWIDTH=2000000
720p/index.m3u8
`

const testMediaNoPDT = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXTINF:6.000,
seg1.ts
#EXTINF:6.000,
seg2.ts
`

// testMediaWithPDT carries a PROGRAM-DATE-TIME tag only on its first
// segment, the normal convention for a real origin playlist. Window()
// needs both the first and last segment's PDT, so this fixture only
// succeeds once the origin client backfills the trailing segments via
// Playlist.ComputeEffectivePDTs.
const testMediaWithPDT = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXT-X-PROGRAM-DATE-TIME:2026-01-01T00:00:00Z
#EXTINF:6.000,
seg1.ts
#EXTINF:6.000,
seg2.ts
#EXTINF:6.000,
seg3.ts
`

func newTestHandler(t *testing.T, originMux http.Handler) (*Handler, func()) {
	t.Helper()
	originSrv := httptest.NewServer(originMux)

	cfg := &config.Config{
		Server: config.ServerConfig{},
		Origin: config.OriginConfig{
			MasterPlaylistURL: originSrv.URL + "/master.m3u8",
			Timeout:           time.Second,
			MaxRetries:        0,
			StaleAfterMultiple: 4,
		},
		Insertion: config.InsertionConfig{Mode: "static", DefaultAdNumber: 10, DefaultPodCount: 1},
		VAST:      config.VASTConfig{Timeout: time.Second},
	}

	logger := telemetry.NewLogger("error", "json", "stderr")
	metrics := telemetry.NewMetrics()
	originClient := origin.New(cfg.Origin, logger, metrics)
	liveEdge := liveedge.New(cfg.Origin.StaleAfterMultiple)
	sched := scheduler.New(cfg.Insertion)
	vastClient := vast.New(cfg.VAST)
	store := session.NewMemoryStore()
	resolver := assetlist.New(sched, vastClient, store, cfg.VAST, time.Minute)

	h, err := NewHandler(HandlerOptions{
		Config:    cfg,
		Origin:    originClient,
		LiveEdge:  liveEdge,
		Scheduler: sched,
		Resolver:  resolver,
		Logger:    logger,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	return h, originSrv.Close
}

func defaultOriginMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testMaster))
	})
	mux.HandleFunc("/720p/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testMediaNoPDT))
	})
	return mux
}

func TestHandler_Master_RebasesVariantURIs(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/master.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http://example.com/720p/index.m3u8")
}

func pdtOriginMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testMaster))
	})
	mux.HandleFunc("/720p/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testMediaWithPDT))
	})
	return mux
}

// TestHandler_Media_BackfillsPDTAndInjectsBreak proves the origin client's
// ComputeEffectivePDTs call actually matters: testMediaWithPDT only carries
// an explicit PDT on its first segment, same as a real origin playlist, so
// Window() (and the live-edge tracker's Observe) can only succeed once the
// trailing segments' PDTs are backfilled. A scheduled break landing in that
// window should come out the other end as a DATERANGE tag.
func TestHandler_Media_BackfillsPDTAndInjectsBreak(t *testing.T) {
	h, closeSrv := newTestHandler(t, pdtOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/720p/index.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "seg3.ts")
	require.Contains(t, body, "EXT-X-DATERANGE")
}

func TestHandler_Media_PDTMissingPassesThrough(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/720p/index.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "EXT-X-DATERANGE")
	require.Contains(t, w.Body.String(), "seg1.ts")
}

func TestHandler_Interstitials_MissingID(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/interstitials.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Command_InvalidParams(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/command?in=notanumber&dur=10", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Command_NoMediaObservedYet(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/command?in=5&dur=15&pod=1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_UnknownRoute(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Status_ReportsScheduledMode(t *testing.T) {
	h, closeSrv := newTestHandler(t, defaultOriginMux())
	defer closeSrv()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"mode":"static"`)
}
