package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_PrefersQueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/interstitials.m3u8?_HLS_primary_id=viewer-1", nil)
	r.Header.Set("X-Playback-Session-Id", "should-not-be-used")
	require.Equal(t, "viewer-1", DeriveKey(r))
}

func TestDeriveKey_FallsBackToHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/interstitials.m3u8", nil)
	r.Header.Set("X-Playback-Session-Id", "viewer-2")
	require.Equal(t, "viewer-2", DeriveKey(r))
}

func TestDeriveKey_FabricatesWhenNeitherPresent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/interstitials.m3u8", nil)
	key := DeriveKey(r)
	require.NotEmpty(t, key)

	// Each call with no identity fabricates a distinct key.
	r2 := httptest.NewRequest(http.MethodGet, "/interstitials.m3u8", nil)
	require.NotEqual(t, key, DeriveKey(r2))
}

func TestMemoryStore_GetPutAndSize(t *testing.T) {
	store := NewMemoryStore()
	key := Key{SessionID: "s1", InterstitialID: "i1"}

	_, ok := store.Get(key)
	require.False(t, ok)

	store.Put(key, &Resolved{Assets: []byte(`{"ASSETS":[]}`), CreatedAt: time.Now()}, time.Minute)

	got, ok := store.Get(key)
	require.True(t, ok)
	require.Equal(t, `{"ASSETS":[]}`, string(got.Assets))

	sizer, ok := store.(interface{ Size() int })
	require.True(t, ok)
	require.Equal(t, 1, sizer.Size())
}
