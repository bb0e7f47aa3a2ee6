package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/config"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/memory"
)

var at = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

type fakeSurface struct {
	mu    sync.Mutex
	shown []*notification.Notification
	err   error
}

func (s *fakeSurface) Show(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.shown = append(s.shown, n)
	return nil
}

func (s *fakeSurface) Dismiss(context.Context, notification.NotificationID) error { return nil }

func (s *fakeSurface) Active(context.Context, shared.InstallationID, time.Time) ([]*notification.Notification, error) {
	return nil, nil
}

type brokenSettings struct{ progress.SettingsRepository }

func (brokenSettings) GetSettings(context.Context, shared.InstallationID) (progress.Settings, error) {
	return progress.Settings{}, errors.New("db down")
}

type subscriptions map[shared.EventType]shared.EventHandler

func (s subscriptions) Subscribe(t shared.EventType, h shared.EventHandler) error {
	s[t] = h
	return nil
}

func (s subscriptions) SubscribeAll(shared.EventHandler) error { return nil }

func progressEvents() []shared.Event {
	return []shared.Event{
		shared.NewActionRecordedEvent("inst-1", "chose_secondhand", 25, "Chose secondhand over new", at),
		shared.NewXPGainedEvent("inst-1", 25, 25, "chose_secondhand", at),
		shared.NewChallengeCompletedEvent("inst-1", "daily_secondhand", "Second Chance Sunday", "🔄", "daily", 50, at),
		shared.NewAchievementUnlockedEvent("inst-1", "first_steps", "First Steps", "👶", 25, at),
		shared.NewLevelUpEvent("inst-1", 1, 2, "Green Shopper", "♻️", at),
	}
}

func TestOnProgressEvent_ShowsNotifications(t *testing.T) {
	surface := &fakeSurface{}
	h := NewOnProgressEventHandler(surface, memory.NewStore(), config.LoadFeatureFlags(map[string]string{}), nil, DefaultProgressEventConfig())

	for _, e := range progressEvents() {
		require.NoError(t, h.Handle(e))
	}

	require.Len(t, surface.shown, 4)
	assert.Equal(t, "+25 XP", surface.shown[0].Title)
	assert.Equal(t, notification.KindChallenge, surface.shown[1].Kind)
	assert.Equal(t, notification.KindAchievement, surface.shown[2].Kind)
	assert.Equal(t, "You're now a Green Shopper!", surface.shown[3].Message)
	assert.Equal(t, shared.InstallationID("inst-1"), surface.shown[3].InstallationID)
	assert.NotEqual(t, surface.shown[0].ID, surface.shown[1].ID)
}

func TestOnProgressEvent_RespectsUserSettings(t *testing.T) {
	store := memory.NewStore()
	s := progress.DefaultSettings()
	s.EnableNotifications = false
	require.NoError(t, store.SaveSettings(context.Background(), "inst-1", s))

	surface := &fakeSurface{}
	h := NewOnProgressEventHandler(surface, store, nil, nil, DefaultProgressEventConfig())
	for _, e := range progressEvents() {
		require.NoError(t, h.Handle(e))
	}
	assert.Empty(t, surface.shown)
}

func TestOnProgressEvent_RespectsFeatureFlags(t *testing.T) {
	flags := config.LoadFeatureFlags(map[string]string{"FEATURE_NOTIFY_XP": "false"})
	surface := &fakeSurface{}
	h := NewOnProgressEventHandler(surface, nil, flags, nil, DefaultProgressEventConfig())

	for _, e := range progressEvents() {
		require.NoError(t, h.Handle(e))
	}
	require.Len(t, surface.shown, 3)
	for _, n := range surface.shown {
		assert.NotEqual(t, notification.KindXP, n.Kind)
	}
}

func TestOnProgressEvent_SettingsErrorStillShows(t *testing.T) {
	surface := &fakeSurface{}
	h := NewOnProgressEventHandler(surface, brokenSettings{}, nil, nil, DefaultProgressEventConfig())

	require.NoError(t, h.Handle(progressEvents()[4]))
	assert.Len(t, surface.shown, 1)
}

func TestOnProgressEvent_SurfaceError(t *testing.T) {
	surface := &fakeSurface{err: errors.New("closed")}
	h := NewOnProgressEventHandler(surface, nil, nil, nil, DefaultProgressEventConfig())

	assert.Error(t, h.Handle(progressEvents()[0]))
}

func TestOnProgressEvent_Register(t *testing.T) {
	subs := subscriptions{}
	h := NewOnProgressEventHandler(&fakeSurface{}, nil, nil, nil, DefaultProgressEventConfig())

	require.NoError(t, h.Register(subs))
	assert.Len(t, subs, len(NotifiedEvents))
	assert.Contains(t, subs, shared.EventLevelUp)
	assert.NotContains(t, subs, shared.EventXPGained)
}
