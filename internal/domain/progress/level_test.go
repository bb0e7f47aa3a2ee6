package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

func TestLevelTable_TierFor(t *testing.T) {
	levels := DefaultLevels()

	tests := []struct {
		xp    int
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{999, 4},
		{1000, 5},
		{7999, 7},
		{8000, 8},
		{1_000_000, 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, levels.TierFor(shared.XP(tt.xp)).Level, "xp=%d", tt.xp)
	}
}

func TestLevelTable_TierForIsHighestMetThreshold(t *testing.T) {
	levels := DefaultLevels()
	prev := 1

	for xp := 0; xp <= 9000; xp++ {
		want := 1
		for _, tier := range levels {
			if tier.XPRequired <= xp {
				want = tier.Level
			}
		}
		got := levels.TierFor(shared.XP(xp)).Level
		require.Equal(t, want, got, "xp=%d", xp)
		require.GreaterOrEqual(t, got, prev, "level must not decrease, xp=%d", xp)
		prev = got
	}
}

func TestLevelTable_ProgressToNext(t *testing.T) {
	levels := DefaultLevels()

	p := levels.ProgressToNext(175)
	assert.Equal(t, 2, p.Current.Level)
	require.NotNil(t, p.Next)
	assert.Equal(t, 3, p.Next.Level)
	assert.InDelta(t, 50.0, p.Percentage, 0.001)
	assert.Equal(t, 75, p.XPRemaining)
	assert.False(t, p.IsMaxLevel)

	p = levels.ProgressToNext(0)
	assert.InDelta(t, 0.0, p.Percentage, 0.001)
	assert.Equal(t, 100, p.XPRemaining)

	p = levels.ProgressToNext(9000)
	assert.True(t, p.IsMaxLevel)
	assert.Equal(t, 100.0, p.Percentage)
	assert.Nil(t, p.Next)
	assert.Equal(t, 8, p.Current.Level)
}

func TestLevelTable_Validate(t *testing.T) {
	assert.NoError(t, DefaultLevels().Validate())

	assert.Error(t, LevelTable{}.Validate())
	assert.Error(t, LevelTable{{Level: 1, XPRequired: 10}}.Validate())
	assert.Error(t, LevelTable{{Level: 1}, {Level: 3, XPRequired: 100}}.Validate())
	assert.Error(t, LevelTable{{Level: 1}, {Level: 2, XPRequired: 0}}.Validate())

	err := LevelTable{}.Validate()
	assert.True(t, shared.IsValidation(err))
}
