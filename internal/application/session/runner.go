// Package session drives every progression operation through one explicit
// load -> mutate -> save cycle per installation.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
	"github.com/Dhanush6858/green-gaurdian/pkg/retry"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUNNER
// Loads the record, applies rollover, replays unsaved work, runs the operation
// and writes the record back with a version check.
// ══════════════════════════════════════════════════════════════════════════════

// Op mutates p at instant at and returns the events it produced.
// An Op must depend only on (p, at): when a save fails the Op is kept and
// replayed on top of the next record loaded from the store.
type Op func(p *progress.UserProgress, at time.Time) ([]shared.Event, error)

// Result is the outcome of one Execute call.
type Result struct {
	// Progress is the record after the operation. The caller owns it.
	Progress *progress.UserProgress

	// Events are the rollover events followed by the operation's events.
	Events []shared.Event

	// Persisted is false when the store rejected or failed the write; the
	// operation then stays pending and is carried by the next save.
	Persisted bool
}

// Config contains configuration for the Runner.
type Config struct {
	// SaveAttempts bounds reload-and-reapply rounds after a version conflict.
	SaveAttempts int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{SaveAttempts: 5}
}

// Runner serializes operations per installation. Per-installation state lives
// only while a call is in flight or operations still await persistence.
type Runner struct {
	repo      progress.Repository
	tracker   *progress.Tracker
	clock     timeutil.Clock
	publisher shared.EventPublisher
	log       *logger.Logger
	retrier   *retry.Retrier

	mu       sync.Mutex
	sessions map[shared.InstallationID]*state
}

type state struct {
	mu sync.Mutex

	// refs - число вызовов, держащих эту запись; защищено Runner.mu.
	refs int

	// base - последняя запись, прочитанная из хранилища или записанная в него.
	base *progress.UserProgress

	// pending - операции, применённые в памяти, но ещё не сохранённые.
	pending []pendingOp
}

type pendingOp struct {
	name string
	op   Op
	at   time.Time
}

// NewRunner creates a new Runner. publisher may be nil.
func NewRunner(
	repo progress.Repository,
	tracker *progress.Tracker,
	clock timeutil.Clock,
	publisher shared.EventPublisher,
	log *logger.Logger,
	cfg Config,
) *Runner {
	if cfg.SaveAttempts <= 0 {
		cfg = DefaultConfig()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Runner{
		repo:      repo,
		tracker:   tracker,
		clock:     clock,
		publisher: publisher,
		log:       log.With(logger.Component("session")),
		retrier:   retry.ConflictRetrier(shared.IsVersionConflict, retry.WithMaxAttempts(cfg.SaveAttempts)),
		sessions:  make(map[shared.InstallationID]*state),
	}
}

// Tracker returns the tracker used for mutations.
func (r *Runner) Tracker() *progress.Tracker { return r.tracker }

// Now returns the runner clock's current time.
func (r *Runner) Now() time.Time { return r.clock.Now() }

// acquire returns the installation's state and pins it until release.
func (r *Runner) acquire(id shared.InstallationID) *state {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &state{}
		r.sessions[id] = s
	}
	s.refs++
	return s
}

// release unpins s and drops it once no call holds it and nothing is pending.
// The caller must not hold s.mu.
func (r *Runner) release(id shared.InstallationID, s *state) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.refs--
	if s.refs == 0 && len(s.pending) == 0 && r.sessions[id] == s {
		delete(r.sessions, id)
	}
}

// cached returns how many installations currently hold state.
func (r *Runner) cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reset deletes the stored record and drops pending operations under the
// installation's lock, so no in-flight call can replay them afterwards.
func (r *Runner) Reset(ctx context.Context, id shared.InstallationID) error {
	if !id.IsValid() {
		return shared.ErrInvalidInstallation
	}

	s := r.acquire(id)
	defer r.release(id, s)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.repo.Delete(ctx, id); err != nil && !shared.IsNotFound(err) {
		return err
	}
	s.base = nil
	s.pending = nil
	return nil
}

// Pending returns how many operations of an installation await persistence.
func (r *Runner) Pending(id shared.InstallationID) int {
	s := r.acquire(id)
	defer r.release(id, s)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Execute runs op for an installation.
//
// Only validation errors returned by op reach the caller. Store failures are
// logged and absorbed: the in-memory result is returned with Persisted=false
// and op is replayed before the next operation. A version conflict reloads
// the record and re-applies everything.
func (r *Runner) Execute(ctx context.Context, id shared.InstallationID, name string, op Op) (*Result, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidInstallation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.acquire(id)
	defer r.release(id, s)
	s.mu.Lock()
	defer s.mu.Unlock()

	at := r.clock.Now()
	log := r.log.With(logger.InstallationID(id.String()), logger.Operation(name))

	var res *Result
	attempt := 0
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++
		res = nil

		base := r.load(ctx, s, id, at, log)
		expected := base.Version
		work := base.Clone()

		events := r.prepare(work, s.pending, at, log)

		opEvents, err := op(work, at)
		if err != nil {
			return retry.Permanent(err)
		}
		events = append(events, opEvents...)
		work.UpdatedAt = at

		res = &Result{Progress: work, Events: events}

		saveErr := r.repo.Save(ctx, work, expected)
		switch {
		case saveErr == nil:
			res.Persisted = true
			s.base = work.Clone()
			s.pending = nil
			return nil
		case shared.IsVersionConflict(saveErr):
			log.Warn("progress modified concurrently, reloading",
				logger.Version(expected), logger.Attempt(attempt))
			return saveErr
		default:
			log.Error("failed to persist progress, keeping in-memory state",
				logger.Err(saveErr), logger.Int("pending", len(s.pending)+1))
			return nil
		}
	})
	if res == nil {
		return nil, err
	}
	if err != nil {
		log.Error("giving up on save after repeated conflicts", logger.Err(err), logger.Attempt(attempt))
	}

	if !res.Persisted {
		s.pending = append(s.pending, pendingOp{name: name, op: op, at: at})
	}

	r.publish(res.Events, log)

	out := *res
	out.Progress = res.Progress.Clone()
	return &out, nil
}

// View returns the current record with rollover and pending operations
// applied, without writing anything.
func (r *Runner) View(ctx context.Context, id shared.InstallationID) (*progress.UserProgress, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidInstallation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.acquire(id)
	defer r.release(id, s)
	s.mu.Lock()
	defer s.mu.Unlock()

	at := r.clock.Now()
	log := r.log.With(logger.InstallationID(id.String()), logger.Operation("view"))

	work := r.load(ctx, s, id, at, log).Clone()
	r.prepare(work, s.pending, at, log)
	return work, nil
}

// load returns the stored record, a fresh one if none exists, or the last
// known record when the store cannot be read.
func (r *Runner) load(
	ctx context.Context,
	s *state,
	id shared.InstallationID,
	at time.Time,
	log *logger.Logger,
) *progress.UserProgress {
	stored, err := r.repo.Load(ctx, id)
	switch {
	case err == nil:
		stored.InstallationID = id
		s.base = stored.Clone()
		return stored
	case shared.IsNotFound(err):
		s.base = nil
		return progress.NewUserProgress(id, at)
	default:
		log.Warn("failed to load progress, using session state", logger.Err(err))
		if s.base != nil {
			return s.base.Clone()
		}
		return progress.NewUserProgress(id, at)
	}
}

// prepare normalizes work, replays pending operations at their own instants
// and applies today's rollover. Only the final rollover's events are returned.
func (r *Runner) prepare(work *progress.UserProgress, pending []pendingOp, at time.Time, log *logger.Logger) []shared.Event {
	work.Normalize(r.tracker.Levels())

	for _, p := range pending {
		r.tracker.Rollover(work, p.at)
		if _, err := p.op(work, p.at); err != nil {
			log.Warn("pending operation no longer applies", logger.String("pending_op", p.name), logger.Err(err))
		}
	}

	return r.tracker.Rollover(work, at)
}

func (r *Runner) publish(events []shared.Event, log *logger.Logger) {
	if r.publisher == nil {
		return
	}
	for _, e := range events {
		if err := r.publisher.Publish(e); err != nil {
			log.Warn("failed to publish event", logger.String("event_type", string(e.EventType())), logger.Err(err))
		}
	}
}
