package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interval(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return Interval{Start: s, End: e}
}

func TestIntervalOverlaps(t *testing.T) {
	base := interval(t, "2026-09-07T09:00:00Z", "2026-09-07T11:00:00Z")

	assert.True(t, base.Overlaps(interval(t, "2026-09-07T10:00:00Z", "2026-09-07T12:00:00Z")))
	assert.True(t, base.Overlaps(interval(t, "2026-09-07T08:00:00Z", "2026-09-07T09:30:00Z")))
	assert.True(t, base.Overlaps(interval(t, "2026-09-07T09:30:00Z", "2026-09-07T10:30:00Z")))
	assert.True(t, base.Overlaps(interval(t, "2026-09-07T08:00:00Z", "2026-09-07T12:00:00Z")))
}

func TestIntervalAbuttingDoesNotOverlap(t *testing.T) {
	base := interval(t, "2026-09-07T09:00:00Z", "2026-09-07T11:00:00Z")

	assert.False(t, base.Overlaps(interval(t, "2026-09-07T11:00:00Z", "2026-09-07T12:00:00Z")))
	assert.False(t, base.Overlaps(interval(t, "2026-09-07T08:00:00Z", "2026-09-07T09:00:00Z")))
}

func TestMergeIntervals(t *testing.T) {
	merged := MergeIntervals([]Interval{
		interval(t, "2026-09-07T13:00:00Z", "2026-09-07T14:00:00Z"),
		interval(t, "2026-09-07T09:00:00Z", "2026-09-07T10:30:00Z"),
		interval(t, "2026-09-07T10:00:00Z", "2026-09-07T11:00:00Z"),
		interval(t, "2026-09-07T11:00:00Z", "2026-09-07T12:00:00Z"),
	})

	require.Len(t, merged, 2)
	assert.Equal(t, interval(t, "2026-09-07T09:00:00Z", "2026-09-07T12:00:00Z"), merged[0])
	assert.Equal(t, interval(t, "2026-09-07T13:00:00Z", "2026-09-07T14:00:00Z"), merged[1])
}

func TestMergeIntervalsEmptyAndSingle(t *testing.T) {
	assert.Empty(t, MergeIntervals(nil))

	one := []Interval{interval(t, "2026-09-07T09:00:00Z", "2026-09-07T10:00:00Z")}
	assert.Equal(t, one, MergeIntervals(one))
}

func TestBookingStatusTransitions(t *testing.T) {
	assert.True(t, BookingTentative.CanTransition(BookingConfirmed))
	assert.True(t, BookingTentative.CanTransition(BookingCancelled))
	assert.True(t, BookingConfirmed.CanTransition(BookingCancelled))

	assert.False(t, BookingConfirmed.CanTransition(BookingTentative))
	assert.False(t, BookingCancelled.CanTransition(BookingConfirmed))
	assert.False(t, BookingCancelled.CanTransition(BookingTentative))
}
