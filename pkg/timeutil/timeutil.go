// Package timeutil provides clock and calendar helpers shared by the tracker,
// the notification center and the CLI.
// Day boundaries are always computed in an explicit location: the tracker
// decides "today" in the user's configured zone, not in the server's.
package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Common date/time layouts.
const (
	FormatDate     = "2006-01-02"
	FormatMonth    = "2006-01"
	FormatTime     = "15:04"
	FormatDateTime = "2006-01-02 15:04"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// ManualClock is a settable clock for tests and CLI time travel.
type ManualClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewManualClock creates a clock frozen at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{t: t}
}

// Now returns the frozen time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCATIONS
// ══════════════════════════════════════════════════════════════════════════════

// LoadLocation resolves an IANA zone name. Empty and "Local" map to time.Local,
// "UTC" to time.UTC. Fixed offsets like "+05:00" or "UTC-3" are accepted too.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "", "local":
		return time.Local, nil
	case "utc", "z":
		return time.UTC, nil
	}

	if loc, ok := parseOffset(name); ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// parseOffset accepts "+05:00", "-0300", "UTC+5" and "GMT-03:30".
func parseOffset(s string) (*time.Location, bool) {
	upper := strings.ToUpper(s)
	upper = strings.TrimPrefix(upper, "UTC")
	upper = strings.TrimPrefix(upper, "GMT")
	if len(upper) < 2 || (upper[0] != '+' && upper[0] != '-') {
		return nil, false
	}
	sign := 1
	if upper[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(upper[1:], ":", "")

	var hours, mins int
	switch len(body) {
	case 1, 2:
		if _, err := fmt.Sscanf(body, "%d", &hours); err != nil {
			return nil, false
		}
	case 3, 4:
		if _, err := fmt.Sscanf(body[:len(body)-2], "%d", &hours); err != nil {
			return nil, false
		}
		if _, err := fmt.Sscanf(body[len(body)-2:], "%d", &mins); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	if hours > 14 || mins > 59 {
		return nil, false
	}

	offset := sign * (hours*3600 + mins*60)
	return time.FixedZone(s, offset), true
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns local midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns Monday 00:00 of t's week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc)
}

// NextMidnight returns the next local midnight strictly after t.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}

// IsSameDay checks if two instants fall on the same calendar day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return StartOfDay(t1, loc).Equal(StartOfDay(t2, loc))
}

// DaysBetween returns the number of calendar days from t1 to t2 in loc.
// Negative if t2 is before t1.
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	a := StartOfDay(t1, loc)
	b := StartOfDay(t2, loc)
	// Через UTC, чтобы переход на летнее время не давал 23/25 часов.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

// FormatRelative describes t relative to now ("just now", "5m ago", "in 2h").
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return formatFuture(-d)
	}
	return formatPast(d)
}

func formatPast(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		months := int(d.Hours() / 24 / 30)
		if months < 12 {
			return fmt.Sprintf("%dmo ago", months)
		}
		return fmt.Sprintf("%dy ago", months/12)
	}
}

func formatFuture(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}

// FormatDuration renders a short duration for notification timers ("4s", "1m30s").
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
