// Package storetest holds the behavior every progress store must share.
// Store packages run it from their own tests against a fresh instance.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/activity"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// Store is the combined surface under test.
type Store interface {
	progress.Repository
	progress.SettingsRepository
}

// Now is the fixed instant used for records.
var Now = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

// Run executes the contract against stores produced by newStore.
// Each subtest gets its own store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("load missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(context.Background(), "missing")
		assert.ErrorIs(t, err, shared.ErrProgressNotFound)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("create and load round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := sample("inst-1")
		require.NoError(t, s.Save(ctx, p, 0))
		assert.Equal(t, int64(1), p.Version)

		got, err := s.Load(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, p.XP, got.XP)
		assert.Equal(t, p.Level, got.Level)
		assert.Equal(t, p.Streak, got.Streak)
		assert.Equal(t, p.LastActiveDate, got.LastActiveDate)
		assert.Equal(t, p.UnlockedAchievements, got.UnlockedAchievements)
		assert.Equal(t, p.ChallengeProgress, got.ChallengeProgress)
		assert.Equal(t, p.ChallengePeriods, got.ChallengePeriods)
		assert.Equal(t, p.DailyStats, got.DailyStats)
		assert.Equal(t, p.RecentActionKeys, got.RecentActionKeys)
		require.Len(t, got.RecentActivity, 1)
		assert.Equal(t, p.RecentActivity[0].ID, got.RecentActivity[0].ID)
		assert.True(t, p.RecentActivity[0].At.Equal(got.RecentActivity[0].At))
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := sample("inst-1")
		require.NoError(t, s.Save(ctx, p, 0))

		// Second create loses.
		dup := sample("inst-1")
		assert.ErrorIs(t, s.Save(ctx, dup, 0), shared.ErrStaleVersion)
		assert.Equal(t, int64(0), dup.Version)

		// Update from the current version wins.
		p.XP = 300
		require.NoError(t, s.Save(ctx, p, 1))
		assert.Equal(t, int64(2), p.Version)

		// Update from a stale version loses.
		stale := sample("inst-1")
		stale.Version = 1
		err := s.Save(ctx, stale, 1)
		assert.True(t, shared.IsVersionConflict(err))
		assert.Equal(t, int64(1), stale.Version)

		got, err := s.Load(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, shared.XP(300), got.XP)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("loaded record is a copy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, sample("inst-1"), 0))
		a, err := s.Load(ctx, "inst-1")
		require.NoError(t, err)
		a.UnlockedAchievements = append(a.UnlockedAchievements, "mutated")
		a.ChallengeProgress["daily_secondhand"] = 99

		b, err := s.Load(ctx, "inst-1")
		require.NoError(t, err)
		assert.NotContains(t, b.UnlockedAchievements, "mutated")
		assert.NotEqual(t, 99.0, b.ChallengeProgress["daily_secondhand"])
	})

	t.Run("delete and list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, sample("b-inst"), 0))
		require.NoError(t, s.Save(ctx, sample("a-inst"), 0))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []shared.InstallationID{"a-inst", "b-inst"}, ids)

		require.NoError(t, s.Delete(ctx, "a-inst"))
		require.NoError(t, s.Delete(ctx, "never-existed"))

		_, err = s.Load(ctx, "a-inst")
		assert.True(t, errors.Is(err, shared.ErrProgressNotFound))

		// A deleted record can be recreated from scratch.
		require.NoError(t, s.Save(ctx, sample("a-inst"), 0))
	})

	t.Run("settings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.GetSettings(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, progress.DefaultSettings(), got)

		custom := progress.DefaultSettings()
		custom.EnableOverlay = false
		custom.PreferredMarketplaces = []string{"swappa"}
		custom.CarbonEmissionUnits = progress.UnitsLbs
		require.NoError(t, s.SaveSettings(ctx, "inst-1", custom))

		got, err = s.GetSettings(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, custom, got)

		other, err := s.GetSettings(ctx, "inst-2")
		require.NoError(t, err)
		assert.Equal(t, progress.DefaultSettings(), other)
	})
}

func sample(id shared.InstallationID) *progress.UserProgress {
	p := progress.NewUserProgress(id, Now)
	p.XP = 150
	p.Level = 2
	p.Streak = 3
	p.LongestStreak = 5
	p.LastActiveDate = shared.DateOf(Now)
	p.TotalCO2Saved = 4.5
	p.UnlockedAchievements = []string{"first_steps"}
	p.ChallengeProgress["daily_secondhand"] = 1
	p.ChallengePeriods[progress.ScopeDaily] = "2026-10-21"
	p.DailyStats["2026-10-21"] = progress.DailyStats{CO2Saved: 4.5, ActionsRecorded: 2, XPEarned: 70}
	p.RecentActionKeys = []string{"k1", "k2"}
	e, err := activity.NewEntry("act-1", "saved_emissions", "Saved 4.5kg CO₂", 45, Now)
	if err != nil {
		panic(err)
	}
	p.RecentActivity = activity.Prepend(p.RecentActivity, e)
	return p
}
