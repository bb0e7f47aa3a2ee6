package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// NotificationCenterConfig configures NotificationCenter.
type NotificationCenterConfig struct {
	// MaxActive caps visible notifications per installation; the oldest are dropped.
	MaxActive int
}

// DefaultNotificationCenterConfig returns default configuration.
func DefaultNotificationCenterConfig() NotificationCenterConfig {
	return NotificationCenterConfig{MaxActive: 10}
}

// NotificationCenter implements notification.Surface in memory and mirrors
// every shown notification to the configured delivery channels.
type NotificationCenter struct {
	mu     sync.Mutex
	byID   map[notification.NotificationID]*notification.Notification
	byInst map[shared.InstallationID][]notification.NotificationID

	channels []notification.Channel
	clock    timeutil.Clock
	logger   *slog.Logger
	config   NotificationCenterConfig
}

var _ notification.Surface = (*NotificationCenter)(nil)

func NewNotificationCenter(clock timeutil.Clock, logger *slog.Logger, cfg NotificationCenterConfig, channels ...notification.Channel) *NotificationCenter {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxActive <= 0 {
		cfg = DefaultNotificationCenterConfig()
	}
	return &NotificationCenter{
		byID:     make(map[notification.NotificationID]*notification.Notification),
		byInst:   make(map[shared.InstallationID][]notification.NotificationID),
		channels: channels,
		clock:    clock,
		logger:   logger.With("component", "notification_center"),
		config:   cfg,
	}
}

// Show stores n and delivers it to the channels. Channel errors are logged.
func (c *NotificationCenter) Show(ctx context.Context, n *notification.Notification) error {
	if !n.ID.IsValid() {
		return notification.ErrInvalidNotificationID
	}

	c.mu.Lock()
	cp := *n
	c.byID[n.ID] = &cp
	ids := append(c.byInst[n.InstallationID], n.ID)
	if over := len(ids) - c.config.MaxActive; over > 0 {
		for _, old := range ids[:over] {
			delete(c.byID, old)
		}
		ids = slices.Clone(ids[over:])
	}
	c.byInst[n.InstallationID] = ids
	c.mu.Unlock()

	for _, ch := range c.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			c.logger.Warn("notification delivery failed",
				"channel", ch.Type(),
				"notification_id", n.ID,
				"error", err,
			)
		}
	}
	return nil
}

// Dismiss closes a notification immediately.
func (c *NotificationCenter) Dismiss(ctx context.Context, id notification.NotificationID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byID[id]
	if !ok {
		return shared.ErrNotificationNotFound
	}
	if err := n.Dismiss(c.clock.Now()); err != nil {
		return err
	}
	c.removeLocked(n)
	return nil
}

// Active returns the notifications visible at now, newest first.
func (c *NotificationCenter) Active(ctx context.Context, installationID shared.InstallationID, now time.Time) ([]*notification.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.byInst[installationID]
	out := make([]*notification.Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		n := c.byID[ids[i]]
		if n == nil || !n.IsVisible(now) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

// Cleanup drops notifications no longer visible at now and returns how many
// were removed.
func (c *NotificationCenter) Cleanup(ctx context.Context, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, n := range c.byID {
		if n.IsVisible(now) {
			continue
		}
		c.removeLocked(n)
		removed++
	}
	return removed
}

// Len returns how many notifications are stored.
func (c *NotificationCenter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

func (c *NotificationCenter) removeLocked(n *notification.Notification) {
	delete(c.byID, n.ID)
	ids := slices.DeleteFunc(c.byInst[n.InstallationID], func(id notification.NotificationID) bool {
		return id == n.ID
	})
	if len(ids) == 0 {
		delete(c.byInst, n.InstallationID)
		return
	}
	c.byInst[n.InstallationID] = ids
}
