package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantOffset int
	}{
		{"utc", "UTC", 0},
		{"plus offset", "+05:00", 5 * 3600},
		{"compact minus", "-0330", -(3*3600 + 30*60)},
		{"utc prefix", "UTC+5", 5 * 3600},
		{"gmt prefix", "GMT-03:00", -3 * 3600},
	}

	ref := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.input)
			require.NoError(t, err)
			_, offset := ref.In(loc).Zone()
			assert.Equal(t, tt.wantOffset, offset)
		})
	}

	t.Run("empty is local", func(t *testing.T) {
		loc, err := LoadLocation("")
		require.NoError(t, err)
		assert.Equal(t, time.Local, loc)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := LoadLocation("Mars/Olympus_Mons")
		assert.Error(t, err)
	})
}

func TestCalendar(t *testing.T) {
	loc := time.FixedZone("test", 5*3600)
	// Среда 2026-10-21 01:30 локального времени, во вторник по UTC.
	at := time.Date(2026, 10, 20, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 10, 21, 0, 0, 0, 0, loc), StartOfDay(at, loc))
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, loc), StartOfWeek(at, loc))
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, loc), StartOfMonth(at, loc))
	assert.Equal(t, time.Date(2026, 10, 22, 0, 0, 0, 0, loc), NextMidnight(at, loc))

	assert.False(t, IsSameDay(at, time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC), loc))
	assert.True(t, IsSameDay(at, time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC), loc))
}

func TestStartOfWeek_Sunday(t *testing.T) {
	sunday := time.Date(2026, 10, 25, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), StartOfWeek(sunday, time.UTC))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 10, 21, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 10, 22, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b, time.UTC))
	assert.Equal(t, -1, DaysBetween(b, a, time.UTC))
	assert.Equal(t, 0, DaysBetween(a, a, time.UTC))
	assert.Equal(t, 365, DaysBetween(
		time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC),
		time.UTC,
	))
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-30 * time.Hour), "yesterday"},
		{now.Add(-5 * 24 * time.Hour), "5d ago"},
		{now.Add(-65 * 24 * time.Hour), "2mo ago"},
		{now.Add(-400 * 24 * time.Hour), "1y ago"},
		{now.Add(2 * time.Hour), "in 2h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRelative(tt.at, now))
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())

	var _ Clock = SystemClock{}
	var _ Clock = ClockFunc(func() time.Time { return start })
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "4s", FormatDuration(4*time.Second))
	assert.Equal(t, "1m30s", FormatDuration(90*time.Second))
	assert.Equal(t, "0s", FormatDuration(-time.Second))
}
