// Package jobs contains the scheduled jobs of the tracker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/retry"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLLOVER SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// InstallationLister lists stored installations.
type InstallationLister interface {
	List(ctx context.Context) ([]shared.InstallationID, error)
}

// Initializer runs the initialize command for one installation.
type Initializer interface {
	Handle(ctx context.Context, cmd command.InitializeCommand) (*command.InitializeResult, error)
}

// RolloverSweepJob persists the daily and weekly challenge rollover for every
// stored installation, so that records of users who did not open the
// extension still start the new period with fresh challenges.
type RolloverSweepJob struct {
	// Dependencies
	lister      InstallationLister
	initializer Initializer
	clock       timeutil.Clock
	logger      *slog.Logger

	// Configuration
	config RolloverSweepConfig

	// State
	lastRunStats atomic.Value // *RolloverSweepStats
}

// RolloverSweepConfig contains configuration for the sweep.
type RolloverSweepConfig struct {
	// Concurrency is the number of installations processed in parallel.
	Concurrency int

	// ItemTimeout bounds the work for one installation.
	ItemTimeout time.Duration
}

// DefaultRolloverSweepConfig returns sensible defaults.
func DefaultRolloverSweepConfig() RolloverSweepConfig {
	return RolloverSweepConfig{
		Concurrency: 4,
		ItemTimeout: 10 * time.Second,
	}
}

// RolloverSweepStats contains statistics from a sweep run.
type RolloverSweepStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	Installations int
	Reset         int
	ResetByScope  map[string]int
	Failed        int
	Errors        []error
}

// NewRolloverSweepJob creates a new sweep job.
func NewRolloverSweepJob(
	lister InstallationLister,
	initializer Initializer,
	clock timeutil.Clock,
	logger *slog.Logger,
	config RolloverSweepConfig,
) *RolloverSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	return &RolloverSweepJob{
		lister:      lister,
		initializer: initializer,
		clock:       clock,
		logger:      logger.With("job", "rollover_sweep"),
		config:      config,
	}
}

// Name returns the job name.
func (j *RolloverSweepJob) Name() string {
	return "rollover_sweep"
}

// Description returns a human-readable description.
func (j *RolloverSweepJob) Description() string {
	return "Resets expired daily and weekly challenges for all stored installations"
}

// Run executes the sweep. A failure on one installation does not stop the
// others; the joined errors are returned at the end.
func (j *RolloverSweepJob) Run(ctx context.Context) error {
	startedAt := j.clock.Now()
	stats := &RolloverSweepStats{
		StartedAt:    startedAt,
		ResetByScope: make(map[string]int),
	}

	var ids []shared.InstallationID
	err := retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		var err error
		ids, err = j.lister.List(ctx)
		if err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list installations: %w", err)
	}
	stats.Installations = len(ids)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			scopes, err := j.sweepOne(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Errorf("%s: %w", id, err))
				j.logger.Warn("rollover failed", "installation_id", id, "error", err)
				return nil
			}
			if len(scopes) > 0 {
				stats.Reset++
			}
			for _, scope := range scopes {
				stats.ResetByScope[scope]++
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = j.clock.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("rollover sweep finished",
		"installations", stats.Installations,
		"reset", stats.Reset,
		"failed", stats.Failed,
		"duration", stats.Duration.String(),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(stats.Errors...)
}

func (j *RolloverSweepJob) sweepOne(ctx context.Context, id shared.InstallationID) ([]string, error) {
	if j.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.ItemTimeout)
		defer cancel()
	}

	res, err := j.initializer.Handle(ctx, command.InitializeCommand{InstallationID: id.String()})
	if err != nil {
		return nil, err
	}
	if !res.Persisted {
		return nil, shared.ErrServiceUnavailable
	}
	return res.ResetScopes, nil
}

// LastRunStats returns statistics of the last run, or nil.
func (j *RolloverSweepJob) LastRunStats() *RolloverSweepStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*RolloverSweepStats)
	}
	return nil
}
