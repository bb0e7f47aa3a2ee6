// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dhanush6858/green-gaurdian/config"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS EVENT HANDLER
// Превращает события прогресса в уведомления.
//
// Какие события показываются:
//   - ActionRecorded      -> "+N XP"
//   - LevelUp             -> поздравление с уровнем
//   - ChallengeCompleted  -> челлендж выполнен
//   - AchievementUnlocked -> открыто достижение
//
// Уведомление не показывается, если пользователь выключил уведомления
// в настройках или вид уведомления выключен флагом.
// ═══════════════════════════════════════════════════════════════════════════

// NotifiedEvents - события, на которые подписывается обработчик.
var NotifiedEvents = []shared.EventType{
	shared.EventActionRecorded,
	shared.EventLevelUp,
	shared.EventChallengeCompleted,
	shared.EventAchievementUnlocked,
}

// kindFeatures связывает вид уведомления с флагом.
var kindFeatures = map[notification.Kind]string{
	notification.KindXP:          config.FeatureNotifyXP,
	notification.KindLevelUp:     config.FeatureNotifyLevelUp,
	notification.KindChallenge:   config.FeatureNotifyChallenge,
	notification.KindAchievement: config.FeatureNotifyAchievement,
}

// OnProgressEventHandler показывает уведомления о событиях прогресса.
type OnProgressEventHandler struct {
	surface  notification.Surface
	settings progress.SettingsRepository
	flags    *config.FeatureFlags

	// newID генерирует ID уведомлений.
	newID func() notification.NotificationID

	logger *slog.Logger
	config ProgressEventConfig
}

// ProgressEventConfig содержит конфигурацию обработчика.
type ProgressEventConfig struct {
	// Timeout - ограничение на чтение настроек и показ одного уведомления.
	Timeout time.Duration
}

// DefaultProgressEventConfig возвращает конфигурацию по умолчанию.
func DefaultProgressEventConfig() ProgressEventConfig {
	return ProgressEventConfig{Timeout: 2 * time.Second}
}

// NewOnProgressEventHandler создаёт обработчик. settings и flags могут быть nil.
func NewOnProgressEventHandler(
	surface notification.Surface,
	settings progress.SettingsRepository,
	flags *config.FeatureFlags,
	logger *slog.Logger,
	cfg ProgressEventConfig,
) *OnProgressEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg = DefaultProgressEventConfig()
	}

	return &OnProgressEventHandler{
		surface:  surface,
		settings: settings,
		flags:    flags,
		newID:    func() notification.NotificationID { return notification.NotificationID(uuid.NewString()) },
		logger:   logger.With("handler", "on_progress_event"),
		config:   cfg,
	}
}

// Register подписывает обработчик на события из NotifiedEvents.
func (h *OnProgressEventHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range NotifiedEvents {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
// Ошибка показа возвращается шине и не влияет на операцию, породившую событие.
func (h *OnProgressEventHandler) Handle(event shared.Event) error {
	n, ok := notification.FromEvent(h.newID(), event)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if !h.featureEnabled(n) {
		h.logger.Debug("notification kind disabled",
			"installation_id", n.InstallationID,
			"kind", n.Kind,
		)
		return nil
	}
	if !h.userEnabled(ctx, n.InstallationID) {
		return nil
	}

	if err := h.surface.Show(ctx, n); err != nil {
		h.logger.Warn("failed to show notification",
			"installation_id", n.InstallationID,
			"kind", n.Kind,
			"error", err,
		)
		return err
	}

	h.logger.Debug("notification shown",
		"installation_id", n.InstallationID,
		"kind", n.Kind,
		"title", n.Title,
	)
	return nil
}

func (h *OnProgressEventHandler) featureEnabled(n *notification.Notification) bool {
	if h.flags == nil {
		return true
	}
	feature, ok := kindFeatures[n.Kind]
	if !ok {
		return true
	}
	return h.flags.IsEnabled(feature, &config.FeatureContext{InstallationID: n.InstallationID.String()})
}

// userEnabled читает настройки установки. Если настройки недоступны,
// уведомление показывается.
func (h *OnProgressEventHandler) userEnabled(ctx context.Context, id shared.InstallationID) bool {
	if h.settings == nil {
		return true
	}
	s, err := h.settings.GetSettings(ctx, id)
	if err != nil {
		h.logger.Warn("failed to load settings, showing notification",
			"installation_id", id,
			"error", err,
		)
		return true
	}
	return s.EnableNotifications
}
