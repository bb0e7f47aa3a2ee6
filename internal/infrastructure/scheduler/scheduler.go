// Package scheduler runs the tracker's background jobs: the nightly
// challenge rollover sweep and notification cleanup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// Job is one unit of background work. Run receives a context that is
// cancelled on Stop and bounded by the job timeout.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

var (
	ErrNilJob           = errors.New("scheduler: nil job or schedule")
	ErrJobAlreadyExists = errors.New("scheduler: job already registered")
	ErrAlreadyRunning   = errors.New("scheduler: already running")
	ErrNotRunning       = errors.New("scheduler: not running")
)

// Config for New. Zero values pick UTC, the system clock, a one second tick
// and no job timeout.
type Config struct {
	Logger     *slog.Logger
	Location   *time.Location
	Clock      timeutil.Clock
	JobTimeout time.Duration
	Tick       time.Duration
}

type entry struct {
	job      Job
	schedule Schedule
	next     time.Time
	running  bool
}

// Scheduler checks its jobs every tick and starts the due ones in their own
// goroutine. A job that is still running when it comes due again is skipped
// for that slot.
type Scheduler struct {
	log     *slog.Logger
	loc     *time.Location
	clock   timeutil.Clock
	timeout time.Duration
	tick    time.Duration

	mu      sync.Mutex
	entries []*entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	s := &Scheduler{
		log:     cfg.Logger,
		loc:     cfg.Location,
		clock:   cfg.Clock,
		timeout: cfg.JobTimeout,
		tick:    cfg.Tick,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "scheduler")
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = timeutil.SystemClock{}
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	return s
}

// Register adds a job. Names must be unique.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil || schedule == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("%w: %s", ErrJobAlreadyExists, job.Name())
		}
	}

	e := &entry{job: job, schedule: schedule, next: schedule.Next(s.now())}
	s.entries = append(s.entries, e)
	s.log.Info("job registered",
		"job", job.Name(),
		"description", job.Description(),
		"schedule", schedule.String(),
		"next_run", e.next.Format(time.RFC3339),
	)
	return nil
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("scheduler started", "jobs", len(s.entries), "timezone", s.loc.String())
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}

	cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.running || e.next.IsZero() || now.Before(e.next) {
			continue
		}
		e.running = true
		e.next = e.schedule.Next(now)
		s.wg.Add(1)
		go s.run(ctx, e)
	}
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer s.wg.Done()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.clock.Now()
	err := e.job.Run(ctx)
	took := s.clock.Now().Sub(started)

	s.mu.Lock()
	e.running = false
	next := e.next
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", "job", e.job.Name(), "duration", took.String(), "error", err)
		return
	}
	s.log.Info("job completed", "job", e.job.Name(), "duration", took.String(), "next_run", next.Format(time.RFC3339))
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}
