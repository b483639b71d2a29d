package liveedge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/pkg/hls"
)

func mediaPlaylist(pdt time.Time, segDur, targetDuration float64) *hls.MediaPlaylist {
	return &hls.MediaPlaylist{
		TargetDuration: targetDuration,
		MediaSequence:  10,
		Segments: []hls.Segment{
			{URI: "seg10.ts", Duration: segDur},
			{URI: "seg11.ts", Duration: segDur, PDT: &pdt},
		},
	}
}

func TestTracker_LiveEdge_ComputesFromLastSegment(t *testing.T) {
	tr := New(4)
	pdt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := pdt.Add(6 * time.Second)

	tr.Observe("u1", mediaPlaylist(pdt, 6, 6), now)

	edge, mediaSeq, err := tr.LiveEdge("u1", now)
	require.NoError(t, err)
	require.Equal(t, pdt.Add(6*time.Second), edge)
	require.Equal(t, uint64(11), mediaSeq)
}

func TestTracker_LiveEdge_NoObservationIsStale(t *testing.T) {
	tr := New(4)
	_, _, err := tr.LiveEdge("unknown", time.Now())
	require.True(t, apierr.Is(err, apierr.KindStale))
}

func TestTracker_LiveEdge_TooOldIsStale(t *testing.T) {
	tr := New(2)
	pdt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fetchedAt := pdt
	tr.Observe("u1", mediaPlaylist(pdt, 6, 6), fetchedAt)

	// staleAfter = 2 * 6s = 12s; 20s later is past it.
	_, _, err := tr.LiveEdge("u1", fetchedAt.Add(20*time.Second))
	require.True(t, apierr.Is(err, apierr.KindStale))
}

func TestTracker_Observe_IgnoresPlaylistWithoutAnyPDT(t *testing.T) {
	tr := New(4)
	pl := &hls.MediaPlaylist{
		TargetDuration: 6,
		Segments:       []hls.Segment{{URI: "seg1.ts", Duration: 6}},
	}
	tr.Observe("u1", pl, time.Now())

	_, _, err := tr.LiveEdge("u1", time.Now())
	require.Error(t, err)
}

func TestTracker_AnyTargetDuration(t *testing.T) {
	tr := New(4)
	_, _, ok := tr.AnyTargetDuration()
	require.False(t, ok)

	pdt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.Observe("u1", mediaPlaylist(pdt, 6, 6), pdt)

	url, td, ok := tr.AnyTargetDuration()
	require.True(t, ok)
	require.Equal(t, "u1", url)
	require.Equal(t, 6.0, td)
}
