package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION CLEANUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// NotificationSweeper drops notifications that are no longer visible.
type NotificationSweeper interface {
	Cleanup(ctx context.Context, now time.Time) int
}

// NotificationCleanupJob removes expired and dismissed notifications.
type NotificationCleanupJob struct {
	sweeper NotificationSweeper
	clock   timeutil.Clock
	logger  *slog.Logger

	lastRemoved  atomic.Int64
	totalRemoved atomic.Int64
}

// NewNotificationCleanupJob creates a new cleanup job.
func NewNotificationCleanupJob(sweeper NotificationSweeper, clock timeutil.Clock, logger *slog.Logger) *NotificationCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &NotificationCleanupJob{
		sweeper: sweeper,
		clock:   clock,
		logger:  logger.With("job", "notification_cleanup"),
	}
}

// Name returns the job name.
func (j *NotificationCleanupJob) Name() string {
	return "notification_cleanup"
}

// Description returns a human-readable description.
func (j *NotificationCleanupJob) Description() string {
	return "Drops expired and dismissed notifications"
}

// Run executes the cleanup.
func (j *NotificationCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := j.sweeper.Cleanup(ctx, j.clock.Now())
	j.lastRemoved.Store(int64(removed))
	j.totalRemoved.Add(int64(removed))

	if removed > 0 {
		j.logger.Debug("notifications removed", "count", removed)
	}
	return nil
}

// Removed returns how many notifications the last run and all runs removed.
func (j *NotificationCleanupJob) Removed() (last, total int64) {
	return j.lastRemoved.Load(), j.totalRemoved.Load()
}
