package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/sqlite/migrations"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/storetest"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return openTestStore(t) })
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, progress.NewUserProgress("inst-1", storetest.Now), 0))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.Load(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, applyMigrations(ctx, s.db, migrations.FS))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestExtractUp(t *testing.T) {
	sql := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", extractUp(sql))
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}

func TestStore_LargeAmountsKeepRecordWritable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tracker, err := progress.NewTracker(progress.DefaultConfig())
	require.NoError(t, err)
	runner := session.NewRunner(s, tracker, timeutil.NewManualClock(storetest.Now), nil, nil, session.DefaultConfig())

	record := func(a progress.Action) session.Op {
		return func(p *progress.UserProgress, at time.Time) ([]shared.Event, error) {
			res, err := tracker.RecordAction(p, a, "", at)
			return res.Events, err
		}
	}

	_, err = progress.NewAction(progress.ActionParams{Kind: "chose_secondhand", CO2Kg: 1e308})
	require.ErrorIs(t, err, shared.ErrInvalidMagnitude)

	biggest := progress.ChoseSecondhand{CO2Kg: shared.MaxMagnitude, MoneySaved: shared.MaxMagnitude}
	for i := 0; i < 3; i++ {
		res, err := runner.Execute(ctx, "inst-big", "record", record(biggest))
		require.NoError(t, err)
		assert.True(t, res.Persisted, "call %d", i)
	}
	res, err := runner.Execute(ctx, "inst-big", "record", record(progress.SavedEmissions{Kg: shared.MaxMagnitude}))
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	// A record near the cap from an older build still saves.
	stored, err := s.Load(ctx, "inst-big")
	require.NoError(t, err)
	stored.TotalCO2Saved = shared.MaxTotal - 1
	require.NoError(t, s.Save(ctx, stored, stored.Version))

	res, err = runner.Execute(ctx, "inst-big", "record", record(progress.ChoseEcoShipping{CO2Kg: shared.MaxMagnitude}))
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, shared.MaxTotal, res.Progress.TotalCO2Saved)

	res, err = runner.Execute(ctx, "inst-big", "record", record(progress.ViewedAlternative{}))
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, 0, runner.Pending("inst-big"))

	loaded, err := s.Load(ctx, "inst-big")
	require.NoError(t, err)
	assert.False(t, math.IsInf(loaded.TotalCO2Saved, 0))
	assert.Equal(t, shared.MaxTotal, loaded.TotalCO2Saved)
	assert.Equal(t, 3*shared.MaxMagnitude, loaded.TotalMoneySaved)
}
