package vast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/config"
)

func TestClient_BuildURL_Substitution(t *testing.T) {
	c := New(config.VASTConfig{
		Endpoint: "http://ads.example.com/vast?dur=[template.duration]&sid=[template.sessionId]&pod=[template.pod]",
		Timeout:  time.Second,
	})
	got, err := c.BuildURL(TemplateParams{Duration: 15.5, SessionID: "abc-123", Pod: 2})
	require.NoError(t, err)
	require.Equal(t, "http://ads.example.com/vast?dur=15.5&sid=abc-123&pod=2", got)
}

func TestClient_BuildURL_ForwardsQuery(t *testing.T) {
	c := New(config.VASTConfig{
		Endpoint: "http://ads.example.com/vast?dur=[template.duration]",
		Timeout:  time.Second,
	})
	got, err := c.BuildURL(TemplateParams{
		Duration:  10,
		Forwarded: url.Values{"gdpr": []string{"1"}},
	})
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "10", u.Query().Get("dur"))
	require.Equal(t, "1", u.Query().Get("gdpr"))
}

func TestClient_Fetch_ParsesVAST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleVAST))
	}))
	defer srv.Close()

	c := New(config.VASTConfig{Timeout: time.Second})
	doc, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, doc.Ads, 1)
	require.Equal(t, "TestAdServer", doc.Ads[0].InLine.AdSystem)
}

func TestClient_Fetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(config.VASTConfig{Timeout: time.Second})
	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}
