// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// InstallationID identifies one tracker installation (one progress record).
type InstallationID string

// Accepts UUIDs as well as legacy "chu_<millis>_<suffix>" ids.
var installationIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// IsValid checks the ID format.
func (id InstallationID) IsValid() bool {
	return installationIDRegex.MatchString(string(id))
}

// String returns the string representation.
func (id InstallationID) String() string {
	return string(id)
}

// NewInstallationID creates an InstallationID with validation.
func NewInstallationID(raw string) (InstallationID, error) {
	id := InstallationID(strings.TrimSpace(raw))
	if !id.IsValid() {
		return "", ErrInvalidInstallation
	}
	return id, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents accumulated experience points.
type XP int

const (
	MinXP XP = 0
	MaxXP XP = math.MaxInt32
)

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds a non-negative amount, saturating at MaxXP. XP never decreases.
func (x XP) Add(amount int) XP {
	if amount <= 0 {
		return x
	}
	if int64(x)+int64(amount) > int64(MaxXP) {
		return MaxXP
	}
	return x + XP(amount)
}

// ═══════════════════════════════════════════════════════════════════════════
// Date Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateLayout is the storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	year  int
	month time.Month
	day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, WrapError("shared", "ParseDate", ErrInvalidFormat, "invalid date", err)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// Year returns the year.
func (d Date) Year() int { return d.year }

// Month returns the month.
func (d Date) Month() time.Month { return d.month }

// Day returns the day of month.
func (d Date) Day() int { return d.day }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// MarshalJSON encodes the date as a string, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a YYYY-MM-DD string or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Magnitudes
// ═══════════════════════════════════════════════════════════════════════════

const (
	// MaxMagnitude bounds one action amount (kilograms or dollars).
	MaxMagnitude = 1e9

	// MaxTotal bounds every running total so records always encode as JSON.
	MaxTotal = 1e15
)

// ValidateMagnitude rejects negative, NaN, infinite and oversized amounts.
func ValidateMagnitude(v float64) error {
	if math.IsNaN(v) || v < 0 || v > MaxMagnitude {
		return ErrInvalidMagnitude
	}
	return nil
}

// AddAmount adds a validated amount to a running total, saturating at MaxTotal.
// A non-finite or negative total is treated as corrupt and restarts from the cap or zero.
func AddAmount(total, amount float64) float64 {
	return ClampTotal(total + amount)
}

// ClampTotal maps any value into [0, MaxTotal].
func ClampTotal(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > MaxTotal:
		return MaxTotal
	}
	return v
}
