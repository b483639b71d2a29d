package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eyevinn/sgai-proxy/internal/apierr"
	"github.com/eyevinn/sgai-proxy/internal/config"
)

func TestScheduler_StaticMode_MaterializesOnEpoch(t *testing.T) {
	s := New(config.InsertionConfig{
		Mode:                  "static",
		DefaultAdDuration:     15,
		DefaultRepeatingCycle: 60,
		DefaultAdNumber:       3,
		DefaultPodCount:       1,
	})
	require.False(t, s.EpochKnown())

	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.ObserveEpoch(epoch)
	require.True(t, s.EpochKnown())

	breaks := s.Snapshot()
	require.Len(t, breaks, 3)
	require.Equal(t, epoch, breaks[0].StartTime)
	require.Equal(t, epoch.Add(60*time.Second), breaks[1].StartTime)
}

func TestScheduler_ObserveEpoch_IsOnlyAppliedOnce(t *testing.T) {
	s := New(config.InsertionConfig{Mode: "static", DefaultAdNumber: 1, DefaultRepeatingCycle: 30})
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	s.ObserveEpoch(first)
	s.ObserveEpoch(second)

	require.Equal(t, first, s.Snapshot()[0].StartTime)
}

func TestScheduler_Decide_WindowInclusion(t *testing.T) {
	s := New(config.InsertionConfig{})
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.AddDynamicBreak("before-window", epoch, -30, 10, 1)
	require.Error(t, err) // in must be >= 0

	_, err = s.AddDynamicBreak("in-window", epoch, 10, 10, 1)
	require.NoError(t, err)
	_, err = s.AddDynamicBreak("at-window-end", epoch, 20, 10, 1)
	require.NoError(t, err)

	winStart := epoch.Add(5 * time.Second)
	winEnd := epoch.Add(20 * time.Second)
	selected := s.Decide(winStart, winEnd, 1, 6)

	require.Len(t, selected, 1)
	require.Equal(t, "in-window", selected[0].ID)
}

func TestScheduler_AddDynamicBreak_ValidatesInputs(t *testing.T) {
	s := New(config.InsertionConfig{})
	now := time.Now()

	_, err := s.AddDynamicBreak("b1", now, -1, 10, 1)
	require.True(t, apierr.Is(err, apierr.KindBadRequest))

	_, err = s.AddDynamicBreak("b2", now, 0, 0, 1)
	require.True(t, apierr.Is(err, apierr.KindBadRequest))

	_, err = s.AddDynamicBreak("b3", now, 0, 10, 0)
	require.True(t, apierr.Is(err, apierr.KindBadRequest))
}

func TestScheduler_AddDynamicBreak_DeduplicatesByID(t *testing.T) {
	s := New(config.InsertionConfig{})
	now := time.Now()

	first, err := s.AddDynamicBreak("cmd-1", now, 5, 10, 1)
	require.NoError(t, err)

	second, err := s.AddDynamicBreak("cmd-1", now.Add(time.Minute), 99, 99, 2)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, s.Snapshot(), 1)
}

func TestScheduler_Decide_GarbageCollectsExpiredBreaks(t *testing.T) {
	s := New(config.InsertionConfig{RetentionSlackMultiple: 1})
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.AddDynamicBreak("old", epoch, 0, 10, 1)
	require.NoError(t, err)

	// Window far enough past the break's end that it falls outside the
	// target-duration retention slack.
	winStart := epoch.Add(time.Hour)
	winEnd := winStart.Add(6 * time.Second)
	s.Decide(winStart, winEnd, 100, 6)

	require.Empty(t, s.Snapshot())
}

func TestScheduler_Lookup(t *testing.T) {
	s := New(config.InsertionConfig{})
	brk, err := s.AddDynamicBreak("findme", time.Now(), 0, 10, 1)
	require.NoError(t, err)

	got, ok := s.Lookup("findme")
	require.True(t, ok)
	require.Equal(t, brk.ID, got.ID)

	_, ok = s.Lookup("missing")
	require.False(t, ok)
}
