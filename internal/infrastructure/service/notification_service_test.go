package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

var t0 = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

type recordingChannel struct {
	delivered []notification.NotificationID
	err       error
}

func (c *recordingChannel) Type() notification.ChannelType { return notification.ChannelPubSub }

func (c *recordingChannel) Deliver(_ context.Context, n *notification.Notification) error {
	c.delivered = append(c.delivered, n.ID)
	return c.err
}

func newNotification(t *testing.T, id string, kind notification.Kind, at time.Time) *notification.Notification {
	t.Helper()
	n, err := notification.NewNotification(notification.NewNotificationParams{
		ID:             notification.NotificationID(id),
		InstallationID: "inst-1",
		Kind:           kind,
		Title:          "title " + id,
		CreatedAt:      at,
	})
	require.NoError(t, err)
	return n
}

func TestNotificationCenter_ShowAndExpire(t *testing.T) {
	clock := timeutil.NewManualClock(t0)
	ch := &recordingChannel{}
	c := NewNotificationCenter(clock, nil, DefaultNotificationCenterConfig(), ch)
	ctx := context.Background()

	require.NoError(t, c.Show(ctx, newNotification(t, "xp", notification.KindXP, t0)))
	require.NoError(t, c.Show(ctx, newNotification(t, "lvl", notification.KindLevelUp, t0)))
	assert.Equal(t, []notification.NotificationID{"xp", "lvl"}, ch.delivered)

	active, err := c.Active(ctx, "inst-1", t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, notification.NotificationID("lvl"), active[0].ID)

	// XP toasts last 2s, level-up 4s.
	active, err = c.Active(ctx, "inst-1", t0.Add(3*time.Second))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, notification.NotificationID("lvl"), active[0].ID)

	assert.Equal(t, 1, c.Cleanup(ctx, t0.Add(3*time.Second)))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Cleanup(ctx, t0.Add(5*time.Second)))
	assert.Zero(t, c.Len())

	active, err = c.Active(ctx, "other", t0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestNotificationCenter_Dismiss(t *testing.T) {
	c := NewNotificationCenter(timeutil.NewManualClock(t0), nil, DefaultNotificationCenterConfig())
	ctx := context.Background()

	require.NoError(t, c.Show(ctx, newNotification(t, "ach", notification.KindAchievement, t0)))
	require.NoError(t, c.Dismiss(ctx, "ach"))

	active, err := c.Active(ctx, "inst-1", t0)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, c.Dismiss(ctx, "ach"), shared.ErrNotFound)
}

func TestNotificationCenter_MaxActive(t *testing.T) {
	c := NewNotificationCenter(timeutil.NewManualClock(t0), nil, NotificationCenterConfig{MaxActive: 3})
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, c.Show(ctx, newNotification(t, fmt.Sprintf("n-%d", i), notification.KindChallenge, t0)))
	}

	active, err := c.Active(ctx, "inst-1", t0)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, notification.NotificationID("n-4"), active[0].ID)
	assert.Equal(t, notification.NotificationID("n-2"), active[2].ID)
	assert.Equal(t, 3, c.Len())
}

func TestNotificationCenter_ChannelErrorIsNotFatal(t *testing.T) {
	ch := &recordingChannel{err: errors.New("redis down")}
	c := NewNotificationCenter(timeutil.NewManualClock(t0), nil, DefaultNotificationCenterConfig(), ch)

	require.NoError(t, c.Show(context.Background(), newNotification(t, "xp", notification.KindXP, t0)))
	assert.Len(t, ch.delivered, 1)
	assert.Equal(t, 1, c.Len())
}

func TestNotificationCenter_RejectsInvalidID(t *testing.T) {
	c := NewNotificationCenter(nil, nil, DefaultNotificationCenterConfig())
	err := c.Show(context.Background(), &notification.Notification{})
	assert.ErrorIs(t, err, notification.ErrInvalidNotificationID)
}
