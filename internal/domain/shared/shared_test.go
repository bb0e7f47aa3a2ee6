package shared

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

func TestNewInstallationID(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{"3f6c1a9e-2b7d-4c1e-9a0f-7d2b1e3c4a5f", true},
		{"chu_1729500000000_ab12cd", true},
		{"  inst-1  ", true},
		{"", false},
		{"-leading-dash", false},
		{"has space", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		id, err := NewInstallationID(tt.raw)
		if tt.valid {
			assert.NoError(t, err, tt.raw)
			assert.True(t, id.IsValid())
		} else {
			assert.ErrorIs(t, err, ErrInvalidID, tt.raw)
			assert.True(t, IsValidation(err))
		}
	}
}

func TestXP_AddSaturates(t *testing.T) {
	assert.Equal(t, XP(15), XP(10).Add(5))
	assert.Equal(t, XP(10), XP(10).Add(-5))
	assert.Equal(t, MaxXP, (MaxXP - 1).Add(10))
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-10-21")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, d.Weekday())
	assert.Equal(t, "2026-10-22", d.AddDays(1).String())
	assert.Equal(t, 11, d.DaysUntil(d.AddDays(11)))
	assert.True(t, d.Before(d.AddDays(1)))

	_, err = ParseDate("21/10/2026")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	t.Run("json", func(t *testing.T) {
		var out struct {
			D Date `json:"d"`
			Z Date `json:"z"`
		}
		raw, err := json.Marshal(map[string]any{"d": d, "z": Date{}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"d":"2026-10-21","z":null}`, string(raw))

		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, d, out.D)
		assert.True(t, out.Z.IsZero())
	})
}

func TestValidateMagnitude(t *testing.T) {
	assert.NoError(t, ValidateMagnitude(0))
	assert.NoError(t, ValidateMagnitude(2.5))
	assert.NoError(t, ValidateMagnitude(MaxMagnitude))
	for _, v := range []float64{-1, math.NaN(), math.Inf(1), MaxMagnitude + 1, 1e308} {
		assert.ErrorIs(t, ValidateMagnitude(v), ErrInvalidMagnitude)
	}
}

func TestAddAmount_Saturates(t *testing.T) {
	assert.Equal(t, 3.5, AddAmount(1, 2.5))
	assert.Equal(t, MaxTotal, AddAmount(MaxTotal-1, MaxMagnitude))
	assert.Equal(t, MaxTotal, AddAmount(math.Inf(1), 1))
	assert.Equal(t, 0.0, ClampTotal(math.NaN()))
	assert.Equal(t, 0.0, ClampTotal(-4))
}

func TestDomainError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError("storage", "Save", ErrServiceUnavailable, "write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.True(t, IsExternalService(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "storage.Save: write failed: disk full", err.Error())

	assert.True(t, IsNotFound(ErrProgressNotFound))
	assert.True(t, IsVersionConflict(ErrStaleVersion))
	assert.False(t, IsVersionConflict(ErrProgressNotFound))
}

func TestWithCorrelation(t *testing.T) {
	events := []Event{
		NewActionRecordedEvent("inst-1", "viewed_alternative", 5, "Viewed an alternative", at),
		NewXPGainedEvent("inst-1", 5, 5, "viewed_alternative", at),
		NewLevelUpEvent("inst-1", 1, 2, "Eco Explorer", "🌿", at),
		NewStreakUpdatedEvent("inst-1", 1, 1, false, at),
		NewAchievementUnlockedEvent("inst-1", "first_steps", "First Steps", "👶", 25, at),
		NewChallengeCompletedEvent("inst-1", "daily_shipping", "Slow & Steady", "🚚", "daily", 30, at),
		NewChallengesResetEvent("inst-1", "daily", "2026-10-21", at),
	}

	for _, e := range events {
		stamped := WithCorrelation(e, "req-42")
		assert.Equal(t, e.EventType(), stamped.EventType())

		c, ok := stamped.(interface{ Correlation() string })
		require.True(t, ok, e.EventType())
		assert.Equal(t, "req-42", c.Correlation(), e.EventType())

		original := e.(interface{ Correlation() string })
		assert.Empty(t, original.Correlation())
	}
}

func TestNewEventEnvelope(t *testing.T) {
	e := WithCorrelation(NewLevelUpEvent("inst-1", 1, 2, "Eco Explorer", "🌿", at), "req-1")

	env, err := NewEventEnvelope("env-1", e)
	require.NoError(t, err)
	assert.Equal(t, "env-1", env.ID)
	assert.Equal(t, EventLevelUp, env.Type)
	assert.Equal(t, "inst-1", env.AggregateID)
	assert.Equal(t, at, env.Timestamp)
	assert.Equal(t, "req-1", env.CorrelationID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, float64(2), payload["new_level"])
}
