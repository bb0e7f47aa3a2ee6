// Package activity contains the recent-activity log kept alongside a
// progress record. This is a pure domain layer with zero external dependencies.
package activity

import (
	"errors"
	"strings"
	"time"
)

// MaxEntries is how many entries the log keeps; older entries fall off.
const MaxEntries = 50

// Domain errors for activity package.
var (
	ErrInvalidEntryID = errors.New("activity: invalid entry ID")
	ErrEmptyMessage   = errors.New("activity: message cannot be empty")
	ErrInvalidXP      = errors.New("activity: XP must be non-negative")
)

// EntryID represents a unique identifier for a log entry.
type EntryID string

// IsValid checks if the entry ID is valid.
func (id EntryID) IsValid() bool {
	return id != ""
}

// String returns the string representation of EntryID.
func (id EntryID) String() string {
	return string(id)
}

// Entry is one line of the activity log.
type Entry struct {
	ID      EntryID   `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	XP      int       `json:"xp"`
	At      time.Time `json:"at"`
}

// NewEntry creates a validated log entry.
func NewEntry(id EntryID, kind, message string, xp int, at time.Time) (Entry, error) {
	if !id.IsValid() {
		return Entry{}, ErrInvalidEntryID
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Entry{}, ErrEmptyMessage
	}
	if xp < 0 {
		return Entry{}, ErrInvalidXP
	}
	return Entry{ID: id, Kind: kind, Message: message, XP: xp, At: at}, nil
}

// Prepend puts e at the head of the log (newest first) and trims the tail
// to MaxEntries. The input slice is not modified.
func Prepend(log []Entry, e Entry) []Entry {
	n := min(len(log), MaxEntries-1)
	out := make([]Entry, 0, n+1)
	out = append(out, e)
	return append(out, log[:n]...)
}

// Since returns entries recorded at or after t, newest first.
func Since(log []Entry, t time.Time) []Entry {
	var out []Entry
	for _, e := range log {
		if e.At.Before(t) {
			break
		}
		out = append(out, e)
	}
	return out
}
