// Package liveedge tracks, per distinct media playlist URL, where the
// live edge of that playlist currently is, from the most recent successful
// origin fetch. The scheduler consults this to decide which ad breaks fall
// inside the current playlist window.
package liveedge

import (
	"sync"
	"time"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/pkg/hls"
)

// snapshot is never mutated once stored: an observation replaces the map
// entry with a fresh snapshot under the write lock, so readers never
// observe a half-updated state.
type snapshot struct {
	mediaSequence  uint64
	lastSegmentPDT time.Time
	lastSegmentDur float64
	targetDuration float64
	fetchedAt      time.Time
}

// Tracker holds one snapshot per media playlist URL.
type Tracker struct {
	mu         sync.RWMutex
	byURL      map[string]*snapshot
	staleAfterMultiple float64
}

// New creates a Tracker. staleAfterMultiple is applied to a playlist's
// target duration to decide when its last update is too old to trust.
func New(staleAfterMultiple float64) *Tracker {
	if staleAfterMultiple <= 0 {
		staleAfterMultiple = 4
	}
	return &Tracker{byURL: make(map[string]*snapshot), staleAfterMultiple: staleAfterMultiple}
}

// Observe records the state of a freshly fetched, PDT-computed media
// playlist for url. Call this once per successful origin fetch.
func (t *Tracker) Observe(url string, pl *hls.MediaPlaylist, fetchedAt time.Time) {
	if len(pl.Segments) == 0 {
		return
	}
	last := pl.Segments[len(pl.Segments)-1]
	if last.PDT == nil {
		return
	}

	snap := &snapshot{
		mediaSequence:  pl.MediaSequence + uint64(len(pl.Segments)) - 1,
		lastSegmentPDT: *last.PDT,
		lastSegmentDur: last.Duration,
		targetDuration: pl.TargetDuration,
		fetchedAt:      fetchedAt,
	}

	t.mu.Lock()
	t.byURL[url] = snap
	t.mu.Unlock()
}

// LiveEdge returns the absolute time of the live edge and the media
// sequence it corresponds to. It returns a Stale-kind error if the tracker
// either has no observation yet or the last observation is older than
// staleAfterMultiple * targetDuration.
func (t *Tracker) LiveEdge(url string, now time.Time) (time.Time, uint64, error) {
	t.mu.RLock()
	snap, ok := t.byURL[url]
	t.mu.RUnlock()

	if !ok {
		return time.Time{}, 0, apierr.Wrap(apierr.KindStale, errNoObservation)
	}

	staleAfter := time.Duration(snap.targetDuration*t.staleAfterMultiple) * time.Second
	if staleAfter > 0 && now.Sub(snap.fetchedAt) > staleAfter {
		return time.Time{}, 0, apierr.Wrap(apierr.KindStale, errStale)
	}

	edge := snap.lastSegmentPDT.Add(time.Duration(snap.lastSegmentDur * float64(time.Second)))
	return edge, snap.mediaSequence, nil
}

// TargetDuration returns the last-observed target duration for url, and
// false if url has not been observed yet.
func (t *Tracker) TargetDuration(url string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.byURL[url]
	if !ok {
		return 0, false
	}
	return snap.targetDuration, true
}

// AnyTargetDuration returns the URL and target duration of an arbitrary
// currently-tracked playlist, for a background GC sweep that has no
// specific request to derive a retention window from. Since a single
// proxy instance serves one channel, any tracked variant's target
// duration is representative of the others.
func (t *Tracker) AnyTargetDuration() (url string, targetDuration float64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for u, snap := range t.byURL {
		return u, snap.targetDuration, true
	}
	return "", 0, false
}
