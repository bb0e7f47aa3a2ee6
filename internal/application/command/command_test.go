package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/memory"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

const inst = "inst-1"

// Wednesday.
var t0 = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	clock  *timeutil.ManualClock
	runner *session.Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tracker, err := progress.NewTracker(progress.DefaultConfig())
	require.NoError(t, err)

	store := memory.NewStore()
	clock := timeutil.NewManualClock(t0)
	return &fixture{
		store:  store,
		clock:  clock,
		runner: session.NewRunner(store, tracker, clock, nil, nil, session.DefaultConfig()),
	}
}

func (f *fixture) stored(t *testing.T) *progress.UserProgress {
	t.Helper()
	p, err := f.store.Load(context.Background(), inst)
	require.NoError(t, err)
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTION
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordAction_ChoseSecondhand(t *testing.T) {
	f := newFixture(t)
	h := NewRecordActionHandler(f.runner, nil)

	res, err := h.Handle(context.Background(), RecordActionCommand{
		InstallationID: inst,
		Kind:           "chose_secondhand",
		CO2Kg:          2.5,
		MoneySaved:     40,
	})
	require.NoError(t, err)

	assert.Equal(t, 25, res.XPAwarded)
	assert.Equal(t, 150, res.XPGained)
	assert.Equal(t, 150, res.TotalXP)
	assert.Equal(t, 2, res.NewLevel)
	assert.True(t, res.LeveledUp)
	assert.True(t, res.Persisted)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, []string{"first_steps", "first_alternative"}, res.UnlockedAchievements)
	assert.Equal(t, []string{progress.ChallengeDailySecondhand}, res.CompletedChallenges)
	assert.Equal(t, t0, res.RecordedAt)

	p := f.stored(t)
	assert.Equal(t, shared.XP(150), p.XP)
	require.Len(t, p.RecentActivity, 1)
	assert.Equal(t, "chose_secondhand", p.RecentActivity[0].Kind)
	assert.Equal(t, "Chose secondhand over new", p.RecentActivity[0].Message)
	assert.Equal(t, 25, p.RecentActivity[0].XP)
	assert.NotEmpty(t, p.RecentActivity[0].ID)
}

func TestRecordAction_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	h := NewRecordActionHandler(f.runner, nil)
	ctx := context.Background()
	cmd := RecordActionCommand{InstallationID: inst, Kind: "viewed_alternative", IdempotencyKey: "view-1"}

	first, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Zero(t, second.XPGained)
	assert.Equal(t, first.TotalXP, second.TotalXP)

	assert.Len(t, f.stored(t).RecentActivity, 1)
}

func TestRecordAction_Validation(t *testing.T) {
	f := newFixture(t)
	h := NewRecordActionHandler(f.runner, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  RecordActionCommand
		want error
	}{
		{"unknown kind", RecordActionCommand{InstallationID: inst, Kind: "bought_new"}, shared.ErrUnknownAction},
		{"negative amount", RecordActionCommand{InstallationID: inst, Kind: "saved_money", Amount: -3}, shared.ErrInvalidMagnitude},
		{"bad installation", RecordActionCommand{InstallationID: "", Kind: "viewed_alternative"}, shared.ErrInvalidID},
		{"long key", RecordActionCommand{InstallationID: inst, Kind: "viewed_alternative", IdempotencyKey: strings.Repeat("k", 129)}, shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.store.Load(ctx, inst)
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordAction_StoreDownStillAnswers(t *testing.T) {
	f := newFixture(t)
	h := NewRecordActionHandler(f.runner, nil)
	ctx := context.Background()

	f.store.FailSaves(errors.New("disk full"))
	res, err := h.Handle(ctx, RecordActionCommand{InstallationID: inst, Kind: "saved_emissions", Amount: 1.29})
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, 12, res.XPAwarded)

	f.store.FailSaves(nil)
	res, err = h.Handle(ctx, RecordActionCommand{InstallationID: inst, Kind: "price_alert_set"})
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	p := f.stored(t)
	assert.InDelta(t, 1.29, p.TotalCO2Saved, 1e-9)
	assert.Len(t, p.RecentActivity, 2)
}

func TestRecordAction_CorrelationID(t *testing.T) {
	f := newFixture(t)
	h := NewRecordActionHandler(f.runner, nil)

	res, err := h.Handle(context.Background(), RecordActionCommand{
		InstallationID: inst,
		Kind:           "viewed_alternative",
		CorrelationID:  "req-7",
	})
	require.NoError(t, err)

	var stamped int
	for _, e := range res.Events {
		if e.EventType() == shared.EventChallengesReset {
			continue
		}
		c, ok := e.(interface{ Correlation() string })
		require.True(t, ok)
		assert.Equal(t, "req-7", c.Correlation())
		stamped++
	}
	assert.Positive(t, stamped)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS / CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluateAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := progress.NewUserProgress(inst, t0)
	seed.TotalCO2Saved = 12
	require.NoError(t, f.store.Save(ctx, seed, 0))

	h := NewEvaluateAchievementsHandler(f.runner)
	res, err := h.Handle(ctx, EvaluateAchievementsCommand{InstallationID: inst})
	require.NoError(t, err)
	assert.Equal(t, []string{"co2_saver_10", "first_steps"}, res.UnlockedAchievements)
	assert.Equal(t, 75, res.XPGained)
	assert.Equal(t, 75, res.TotalXP)

	again, err := h.Handle(ctx, EvaluateAchievementsCommand{InstallationID: inst})
	require.NoError(t, err)
	assert.Empty(t, again.UnlockedAchievements)
	assert.Zero(t, again.XPGained)
	assert.Equal(t, 75, again.TotalXP)
}

func TestUpdateChallenge(t *testing.T) {
	f := newFixture(t)
	h := NewUpdateChallengeHandler(f.runner)
	ctx := context.Background()

	res, err := h.Handle(ctx, UpdateChallengeCommand{InstallationID: inst, ChallengeID: progress.ChallengeWeeklyExplorer, Delta: 25})
	require.NoError(t, err)
	assert.Equal(t, []string{progress.ChallengeWeeklyExplorer}, res.CompletedChallenges)
	assert.Equal(t, 175, res.XPGained)
	assert.Equal(t, 10.0, f.stored(t).ChallengeProgress[progress.ChallengeWeeklyExplorer])

	res, err = h.Handle(ctx, UpdateChallengeCommand{InstallationID: inst, ChallengeID: progress.ChallengeWeeklyStreak})
	require.NoError(t, err)
	assert.Empty(t, res.CompletedChallenges)
	assert.Equal(t, 1.0, f.stored(t).ChallengeProgress[progress.ChallengeWeeklyStreak])

	_, err = h.Handle(ctx, UpdateChallengeCommand{InstallationID: inst, ChallengeID: "nope"})
	assert.ErrorIs(t, err, shared.ErrUnknownChallenge)

	_, err = h.Handle(ctx, UpdateChallengeCommand{InstallationID: inst, ChallengeID: " "})
	assert.ErrorIs(t, err, shared.ErrUnknownChallenge)

	_, err = h.Handle(ctx, UpdateChallengeCommand{InstallationID: inst, ChallengeID: progress.ChallengeDailyCO2, Delta: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidMagnitude)
}

// ══════════════════════════════════════════════════════════════════════════════
// INITIALIZE / RESET
// ══════════════════════════════════════════════════════════════════════════════

func TestInitialize_ResetsDailyChallengesOnNewDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := NewRecordActionHandler(f.runner, nil)
	init := NewInitializeHandler(f.runner)

	_, err := record.Handle(ctx, RecordActionCommand{InstallationID: inst, Kind: "chose_eco_shipping"})
	require.NoError(t, err)
	require.True(t, f.stored(t).HasCompletedChallenge(progress.ChallengeDailyShipping))

	res, err := init.Handle(ctx, InitializeCommand{InstallationID: inst})
	require.NoError(t, err)
	assert.Empty(t, res.ResetScopes)

	f.clock.Advance(24 * time.Hour)
	res, err = init.Handle(ctx, InitializeCommand{InstallationID: inst})
	require.NoError(t, err)
	assert.Equal(t, []string{string(progress.ScopeDaily)}, res.ResetScopes)
	assert.True(t, res.Persisted)

	p := f.stored(t)
	assert.False(t, p.HasCompletedChallenge(progress.ChallengeDailyShipping))
	assert.Zero(t, p.ChallengeProgress[progress.ChallengeDailyShipping])
}

func TestInitialize_InvalidID(t *testing.T) {
	_, err := NewInitializeHandler(newFixture(t).runner).Handle(context.Background(), InitializeCommand{InstallationID: "no spaces"})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestResetProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := NewRecordActionHandler(f.runner, nil)
	reset := NewResetProgressHandler(f.runner, nil)

	_, err := record.Handle(ctx, RecordActionCommand{InstallationID: inst, Kind: "chose_secondhand"})
	require.NoError(t, err)

	require.NoError(t, reset.Handle(ctx, ResetProgressCommand{InstallationID: inst}))
	_, err = f.store.Load(ctx, inst)
	assert.True(t, shared.IsNotFound(err))

	// Resetting twice is fine.
	require.NoError(t, reset.Handle(ctx, ResetProgressCommand{InstallationID: inst}))

	res, err := record.Handle(ctx, RecordActionCommand{InstallationID: inst, Kind: "viewed_alternative"})
	require.NoError(t, err)
	assert.Equal(t, 5+25, res.TotalXP)
	assert.Equal(t, int64(1), f.stored(t).Version)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateSettings(t *testing.T) {
	store := memory.NewStore()
	h := NewUpdateSettingsHandler(store)
	ctx := context.Background()

	off := false
	lbs := progress.UnitsLbs
	res, err := h.Handle(ctx, UpdateSettingsCommand{
		InstallationID: inst,
		Patch:          progress.SettingsPatch{EnableNotifications: &off, CarbonEmissionUnits: &lbs},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"enableNotifications", "carbonEmissionUnits"}, res.ChangedFields)

	got, err := store.GetSettings(ctx, inst)
	require.NoError(t, err)
	assert.False(t, got.EnableNotifications)
	assert.True(t, got.EnableOverlay)
	assert.Equal(t, progress.UnitsLbs, got.CarbonEmissionUnits)

	t.Run("no-op patch", func(t *testing.T) {
		res, err := h.Handle(ctx, UpdateSettingsCommand{InstallationID: inst, Patch: progress.SettingsPatch{CarbonEmissionUnits: &lbs}})
		require.NoError(t, err)
		assert.Empty(t, res.ChangedFields)
	})

	t.Run("invalid units", func(t *testing.T) {
		bad := "tons"
		_, err := h.Handle(ctx, UpdateSettingsCommand{InstallationID: inst, Patch: progress.SettingsPatch{CarbonEmissionUnits: &bad}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown marketplace", func(t *testing.T) {
		_, err := h.Handle(ctx, UpdateSettingsCommand{InstallationID: inst, Patch: progress.SettingsPatch{PreferredMarketplaces: []string{"craigslist"}}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("reset", func(t *testing.T) {
		res, err := h.HandleReset(ctx, inst)
		require.NoError(t, err)
		assert.Equal(t, progress.DefaultSettings(), res.Settings)

		got, err := store.GetSettings(ctx, inst)
		require.NoError(t, err)
		assert.Equal(t, progress.DefaultSettings(), got)
	})
}
