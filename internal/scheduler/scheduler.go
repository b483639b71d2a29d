// Package scheduler decides which ad breaks fall inside a given media
// playlist window.
//
// In static mode the proxy materializes a repeating series of breaks once
// it has observed the origin's epoch (the first PDT seen on the first
// successful origin fetch). In dynamic mode breaks are created one at a
// time via the /command endpoint. Both modes share the same decision and
// garbage-collection protocol.
//
// The break set is held behind a copy-on-write snapshot: writers (command
// handling, static materialization, GC) build a new slice and atomically
// publish it, so concurrent decision calls never block on a writer and
// never observe a torn update.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/config"
)

// Scheduler owns one playlist's break set.
type Scheduler struct {
	cfg config.InsertionConfig

	epoch atomic.Pointer[time.Time]

	mu     sync.Mutex // serializes writers only; readers use the atomic snapshot
	byID   map[string]bool
	breaks atomic.Pointer[[]AdBreak]

	// emittedMu guards emitted, observability-only bookkeeping of which
	// media sequences a break has been advertised in. It is separate from
	// mu so recording an emission on the Decide hot path never contends
	// with break-set writers, and never mutates anything reachable from
	// the published *[]AdBreak snapshot.
	emittedMu sync.Mutex
	emitted   map[string]map[uint64]bool
}

// New creates a Scheduler for the given insertion configuration.
func New(cfg config.InsertionConfig) *Scheduler {
	s := &Scheduler{cfg: cfg, byID: make(map[string]bool), emitted: make(map[string]map[uint64]bool)}
	empty := []AdBreak{}
	s.breaks.Store(&empty)
	return s
}

// ObserveEpoch records the first PDT seen on the origin playlist, once.
// Subsequent calls are no-ops: the epoch is fixed for the lifetime of the
// scheduler. Until this is called, static mode has nothing to materialize
// and decisions pass playlists through unmodified.
func (s *Scheduler) ObserveEpoch(firstPDT time.Time) {
	if s.epoch.Load() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch.Load() != nil {
		return
	}
	t := firstPDT
	s.epoch.Store(&t)
	if s.cfg.Mode == "static" {
		s.materializeStaticLocked()
	}
}

// materializeStaticLocked builds the full repeating-break template. Called
// with mu held.
func (s *Scheduler) materializeStaticLocked() {
	epoch := *s.epoch.Load()
	n := s.cfg.DefaultAdNumber
	if n <= 0 {
		n = 1
	}
	pod := s.cfg.DefaultPodCount
	if pod <= 0 {
		pod = 1
	}

	breaks := make([]AdBreak, 0, n)
	for i := 0; i < n; i++ {
		start := epoch.Add(time.Duration(float64(i) * s.cfg.DefaultRepeatingCycle * float64(time.Second)))
		breaks = append(breaks, AdBreak{
			ID:        fmt.Sprintf("static-%d", i),
			StartTime: start,
			Duration:  s.cfg.DefaultAdDuration,
			PodCount:  pod,
			Origin:    OriginStatic,
		})
	}
	s.breaks.Store(&breaks)
}

// AddDynamicBreak creates a break starting `in` seconds ahead of the
// current live edge, with the given duration and pod count. Breaks are
// deduplicated by id for idempotency: a call whose id is already in the
// set returns the existing break unchanged, whatever in/dur/pod it carries.
func (s *Scheduler) AddDynamicBreak(id string, liveEdge time.Time, in, dur float64, pod int) (AdBreak, error) {
	if in < 0 {
		return AdBreak{}, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("in must be >= 0, got %v", in))
	}
	if dur <= 0 {
		return AdBreak{}, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("dur must be > 0, got %v", dur))
	}
	if pod < 1 {
		return AdBreak{}, apierr.Wrap(apierr.KindBadRequest, fmt.Errorf("pod must be >= 1, got %v", pod))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byID[id] {
		for _, b := range *s.breaks.Load() {
			if b.ID == id {
				return b, nil
			}
		}
	}

	brk := AdBreak{
		ID:        id,
		StartTime: liveEdge.Add(time.Duration(in * float64(time.Second))),
		Duration:  dur,
		PodCount:  pod,
		Origin:    OriginCommand,
	}

	current := *s.breaks.Load()
	next := make([]AdBreak, len(current), len(current)+1)
	copy(next, current)
	next = append(next, brk)
	s.breaks.Store(&next)
	s.byID[id] = true

	return brk, nil
}

// Decide returns the breaks whose start-time falls within [winStart,
// winEnd), ordered by start-time then id, and marks each with mediaSeq in
// its emitted-set. It also opportunistically garbage-collects breaks that
// have fully scrolled out of relevance.
func (s *Scheduler) Decide(winStart, winEnd time.Time, mediaSeq uint64, targetDuration float64) []AdBreak {
	current := *s.breaks.Load()

	selected := make([]AdBreak, 0, len(current))
	for _, b := range current {
		if b.StartTime.Before(winStart) || !b.StartTime.Before(winEnd) {
			continue
		}
		s.recordEmitted(b.ID, mediaSeq)
		selected = append(selected, b)
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].StartTime.Equal(selected[j].StartTime) {
			return selected[i].StartTime.Before(selected[j].StartTime)
		}
		return selected[i].ID < selected[j].ID
	})

	s.gc(winStart, targetDuration)

	return selected
}

// recordEmitted notes that break id has been advertised in mediaSeq, for
// observability. Guarded by its own lock so the Decide hot path, called
// concurrently for every in-flight media-playlist request, never mutates
// state reachable from the atomically-published break snapshot.
func (s *Scheduler) recordEmitted(id string, mediaSeq uint64) {
	s.emittedMu.Lock()
	defer s.emittedMu.Unlock()
	seqs, ok := s.emitted[id]
	if !ok {
		seqs = make(map[uint64]bool)
		s.emitted[id] = seqs
	}
	seqs[mediaSeq] = true
}

// EmittedSequences returns the media sequences break id has been
// advertised in, for observability.
func (s *Scheduler) EmittedSequences(id string) map[uint64]bool {
	s.emittedMu.Lock()
	defer s.emittedMu.Unlock()
	return s.emitted[id]
}

// gc drops breaks that ended more than retentionSlack*targetDuration
// before winStart.
func (s *Scheduler) gc(winStart time.Time, targetDuration float64) {
	slackMultiple := s.cfg.RetentionSlackMultiple
	if slackMultiple <= 0 {
		slackMultiple = 2
	}
	retentionSlack := time.Duration(targetDuration * slackMultiple * float64(time.Second))
	cutoff := winStart.Add(-retentionSlack)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.breaks.Load()
	kept := make([]AdBreak, 0, len(current))
	for _, b := range current {
		if b.EndTime().Before(cutoff) {
			delete(s.byID, b.ID)
			s.emittedMu.Lock()
			delete(s.emitted, b.ID)
			s.emittedMu.Unlock()
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) != len(current) {
		s.breaks.Store(&kept)
	}
}

// SweepGC runs the same garbage collection Decide performs opportunistically,
// for a background cron job to call against playlists that aren't
// currently being requested (so Decide never runs for them).
func (s *Scheduler) SweepGC(winStart time.Time, targetDuration float64) {
	s.gc(winStart, targetDuration)
}

// Snapshot returns the current break set for observability (/status).
func (s *Scheduler) Snapshot() []AdBreak {
	current := *s.breaks.Load()
	out := make([]AdBreak, len(current))
	copy(out, current)
	return out
}

// Lookup finds a break by id, for asset-list resolution.
func (s *Scheduler) Lookup(id string) (AdBreak, bool) {
	for _, b := range *s.breaks.Load() {
		if b.ID == id {
			return b, true
		}
	}
	return AdBreak{}, false
}

// Mode reports the scheduler's configured insertion mode.
func (s *Scheduler) Mode() string { return s.cfg.Mode }

// EpochKnown reports whether ObserveEpoch has captured the origin epoch
// yet. Static-mode decisions should pass playlists through unmodified
// until this is true.
func (s *Scheduler) EpochKnown() bool { return s.epoch.Load() != nil }
