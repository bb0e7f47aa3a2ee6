package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer, format Format) *Logger {
	l := New(Options{Output: buf, Level: LevelDebug, Format: format, AddCaller: true})
	l.now = func() time.Time { return time.Date(2026, time.October, 21, 10, 0, 0, 0, time.UTC) }
	return l
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, FormatJSON).With(InstallationID("install-1"))

	l.Info("action recorded", ActionKind("chose_secondhand"), XPAmount(25))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "action recorded", entry.Message)
	assert.Equal(t, "install-1", entry.Fields["installation_id"])
	assert.Equal(t, "chose_secondhand", entry.Fields["action_kind"])
	assert.Equal(t, float64(25), entry.Fields["xp_amount"])
	assert.Contains(t, entry.Caller, "logger_test.go")
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo, Format: FormatText})

	l.Warn("save failed", String("b", "2"), String("a", "1"))

	line := buf.String()
	assert.Contains(t, line, "WARN  save failed a=1 b=2")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelWarn})

	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, l.Enabled(LevelInfo))

	l.WithLevel(LevelDebug).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_WithDoesNotShareFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: LevelInfo})
	a := base.With(String("k", "a"))
	b := base.With(String("k", "b"))

	a.Info("one")
	b.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"k":"a"`)
	assert.Contains(t, lines[1], `"k":"b"`)
}

func TestLogger_Slog(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo}).With(Component("eventbus"))

	l.Slog().Info("published", "type", "progress.level_up")
	l.Slog().Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "published", entry["msg"])
	assert.Equal(t, "eventbus", entry["component"])
	assert.Equal(t, "progress.level_up", entry["type"])
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, FormatText, ParseFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
}

func TestContext(t *testing.T) {
	l := Nop()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
