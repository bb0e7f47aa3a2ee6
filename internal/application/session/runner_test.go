package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/memory"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

const inst = shared.InstallationID("inst-1")

var t0 = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func newRunner(t *testing.T, repo progress.Repository, clock timeutil.Clock, pub shared.EventPublisher) *Runner {
	t.Helper()
	tracker, err := progress.NewTracker(progress.DefaultConfig())
	require.NoError(t, err)
	return NewRunner(repo, tracker, clock, pub, nil, DefaultConfig())
}

func addXP(n int) Op {
	return func(p *progress.UserProgress, at time.Time) ([]shared.Event, error) {
		p.XP = p.XP.Add(n)
		return []shared.Event{shared.NewXPGainedEvent(p.InstallationID.String(), n, p.XP.Int(), "test", at)}, nil
	}
}

func TestRunner_ExecutePersists(t *testing.T) {
	store := memory.NewStore()
	pub := &recorder{}
	r := newRunner(t, store, timeutil.NewManualClock(t0), pub)
	ctx := context.Background()

	res, err := r.Execute(ctx, inst, "add", addXP(10))
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, shared.XP(10), res.Progress.XP)
	assert.Equal(t, int64(1), res.Progress.Version)
	assert.Equal(t, t0, res.Progress.UpdatedAt)

	res, err = r.Execute(ctx, inst, "add", addXP(5))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Progress.Version)

	stored, err := store.Load(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(15), stored.XP)
	assert.Len(t, pub.events, 2)
}

func TestRunner_InvalidInstallation(t *testing.T) {
	r := newRunner(t, memory.NewStore(), timeutil.NewManualClock(t0), nil)
	_, err := r.Execute(context.Background(), "", "add", addXP(1))
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestRunner_OpErrorIsReturnedAndNothingSaved(t *testing.T) {
	store := memory.NewStore()
	r := newRunner(t, store, timeutil.NewManualClock(t0), nil)
	ctx := context.Background()

	_, err := r.Execute(ctx, inst, "bad", func(*progress.UserProgress, time.Time) ([]shared.Event, error) {
		return nil, shared.ErrUnknownAction
	})
	assert.ErrorIs(t, err, shared.ErrUnknownAction)

	_, err = store.Load(ctx, inst)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, 0, r.Pending(inst))
}

func TestRunner_SaveFailureKeepsStateAndCarriesItForward(t *testing.T) {
	store := memory.NewStore()
	r := newRunner(t, store, timeutil.NewManualClock(t0), nil)
	ctx := context.Background()

	_, err := r.Execute(ctx, inst, "add", addXP(10))
	require.NoError(t, err)

	store.FailSaves(errors.New("disk full"))

	res, err := r.Execute(ctx, inst, "add", addXP(20))
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, shared.XP(30), res.Progress.XP)
	assert.Equal(t, 1, r.Pending(inst))

	res, err = r.Execute(ctx, inst, "add", addXP(30))
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, shared.XP(60), res.Progress.XP)
	assert.Equal(t, 2, r.Pending(inst))

	view, err := r.View(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(60), view.XP)

	store.FailSaves(nil)

	res, err = r.Execute(ctx, inst, "add", addXP(1))
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, shared.XP(61), res.Progress.XP)
	assert.Equal(t, 0, r.Pending(inst))

	stored, err := store.Load(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(61), stored.XP)
}

// racingRepo lets another writer save once, right before the runner's first save.
type racingRepo struct {
	*memory.Store
	once  sync.Once
	other func()
}

func (r *racingRepo) Save(ctx context.Context, p *progress.UserProgress, expected int64) error {
	r.once.Do(r.other)
	return r.Store.Save(ctx, p, expected)
}

func TestRunner_ConflictReloadsAndReapplies(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	repo := &racingRepo{Store: store}
	repo.other = func() {
		other := progress.NewUserProgress(inst, t0)
		other.XP = 100
		require.NoError(t, store.Save(ctx, other, 0))
	}
	r := newRunner(t, repo, timeutil.NewManualClock(t0), nil)

	res, err := r.Execute(ctx, inst, "add", addXP(10))
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, shared.XP(110), res.Progress.XP)
	assert.Equal(t, int64(2), res.Progress.Version)

	stored, err := store.Load(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(110), stored.XP)
	assert.Equal(t, 2, stored.Level)
}

func TestRunner_RolloverOnLoad(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seed := progress.NewUserProgress(inst, t0.AddDate(0, 0, -1))
	seed.ChallengePeriods[progress.ScopeDaily] = "2026-10-20"
	seed.ChallengeProgress[progress.ChallengeDailyCO2] = 1
	seed.ChallengeProgress[progress.ChallengeWeeklySaver] = 20
	seed.CompletedChallenges = []string{progress.ChallengeDailyShipping}
	require.NoError(t, store.Save(ctx, seed, 0))

	pub := &recorder{}
	r := newRunner(t, store, timeutil.NewManualClock(t0), pub)

	res, err := r.Execute(ctx, inst, "noop", func(*progress.UserProgress, time.Time) ([]shared.Event, error) {
		return nil, nil
	})
	require.NoError(t, err)

	require.Len(t, res.Events, 1)
	reset, ok := res.Events[0].(shared.ChallengesResetEvent)
	require.True(t, ok)
	assert.Equal(t, "daily", reset.Scope)
	assert.Equal(t, "2026-10-21", reset.Period)

	assert.NotContains(t, res.Progress.ChallengeProgress, progress.ChallengeDailyCO2)
	assert.NotContains(t, res.Progress.CompletedChallenges, progress.ChallengeDailyShipping)
	assert.Equal(t, 20.0, res.Progress.ChallengeProgress[progress.ChallengeWeeklySaver])
	assert.Len(t, pub.events, 1)

	// Same day: nothing to reset.
	res, err = r.Execute(ctx, inst, "noop", func(*progress.UserProgress, time.Time) ([]shared.Event, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestRunner_ViewDoesNotPersist(t *testing.T) {
	store := memory.NewStore()
	r := newRunner(t, store, timeutil.NewManualClock(t0), nil)
	ctx := context.Background()

	p, err := r.View(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "2026-10-21", p.ChallengePeriods[progress.ScopeDaily])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRunner_ResetDropsPending(t *testing.T) {
	store := memory.NewStore()
	r := newRunner(t, store, timeutil.NewManualClock(t0), nil)
	ctx := context.Background()

	store.FailSaves(errors.New("offline"))
	_, err := r.Execute(ctx, inst, "add", addXP(10))
	require.NoError(t, err)
	require.Equal(t, 1, r.Pending(inst))

	store.FailSaves(nil)
	require.NoError(t, r.Reset(ctx, inst))
	assert.Equal(t, 0, r.Pending(inst))
	assert.Equal(t, 0, r.cached())

	res, err := r.Execute(ctx, inst, "add", addXP(1))
	require.NoError(t, err)
	assert.Equal(t, shared.XP(1), res.Progress.XP)
}

func TestRunner_StateReleasedAfterSuccessfulSave(t *testing.T) {
	store := memory.NewStore()
	r := newRunner(t, store, timeutil.NewManualClock(t0), nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		id := shared.InstallationID(fmt.Sprintf("inst-%d", i))
		_, err := r.Execute(ctx, id, "add", addXP(1))
		require.NoError(t, err)
		_, err = r.View(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, r.cached())

	store.FailSaves(errors.New("offline"))
	_, err := r.Execute(ctx, inst, "add", addXP(1))
	require.NoError(t, err)
	assert.Equal(t, 1, r.cached(), "pending work is kept")

	store.FailSaves(nil)
	_, err = r.Execute(ctx, inst, "add", addXP(1))
	require.NoError(t, err)
	assert.Equal(t, 0, r.cached())
}

// gatedRepo blocks the first Save until release is closed.
type gatedRepo struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) Save(ctx context.Context, p *progress.UserProgress, expected int64) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Store.Save(ctx, p, expected)
}

func TestRunner_ResetWaitsForInFlightCall(t *testing.T) {
	repo := &gatedRepo{Store: memory.NewStore(), entered: make(chan struct{}), release: make(chan struct{})}
	r := newRunner(t, repo, timeutil.NewManualClock(t0), nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.Execute(ctx, inst, "add", addXP(10))
		assert.NoError(t, err)
	}()
	<-repo.entered

	resetDone := make(chan error, 1)
	go func() { resetDone <- r.Reset(ctx, inst) }()

	select {
	case <-resetDone:
		t.Fatal("reset finished while a call was still saving")
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.release)
	<-done
	require.NoError(t, <-resetDone)

	_, err := repo.Load(ctx, inst)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, 0, r.cached())
}

func TestRunner_CancelledContext(t *testing.T) {
	r := newRunner(t, memory.NewStore(), timeutil.NewManualClock(t0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Execute(ctx, inst, "add", addXP(1))
	assert.ErrorIs(t, err, context.Canceled)
}
