// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/activity"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Сводка для попапа: уровень, XP, серии, счётчики, активные челленджи и
// последние действия. Запрос ничего не сохраняет: смена дня применяется
// к копии записи.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecentActivity - сколько последних действий попадает в сводку.
const DefaultRecentActivity = 5

// GetProgressQuery содержит параметры запроса сводки.
type GetProgressQuery struct {
	// InstallationID - идентификатор установки.
	InstallationID string

	// RecentActivity - сколько последних действий вернуть (0 = по умолчанию).
	RecentActivity int
}

// ProgressDTO - сводка прогресса.
type ProgressDTO struct {
	InstallationID string `json:"installationId"`

	progress.UserStats

	// LastActiveDate - последний активный день (пусто, если действий не было).
	LastActiveDate string `json:"lastActiveDate"`

	// StreakAtRisk - вчера была активность, сегодня ещё нет.
	StreakAtRisk bool `json:"streakAtRisk"`

	RecentActivity []activity.Entry `json:"recentActivity"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetProgressHandler обрабатывает GetProgressQuery.
type GetProgressHandler struct {
	runner *session.Runner
}

// NewGetProgressHandler создаёт обработчик.
func NewGetProgressHandler(runner *session.Runner) *GetProgressHandler {
	return &GetProgressHandler{runner: runner}
}

// Handle выполняет запрос.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	p, id, err := view(ctx, h.runner, q.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	limit := q.RecentActivity
	if limit <= 0 {
		limit = DefaultRecentActivity
	}

	tracker := h.runner.Tracker()
	today := tracker.Today(h.runner.Now())

	dto := &ProgressDTO{
		InstallationID: id.String(),
		UserStats:      tracker.Stats(p),
		RecentActivity: lo.Slice(p.RecentActivity, 0, limit),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if !p.LastActiveDate.IsZero() {
		dto.LastActiveDate = p.LastActiveDate.String()
		dto.StreakAtRisk = p.Streak > 0 && p.LastActiveDate.DaysUntil(today) == 1
	}
	return dto, nil
}

// HandleLevelProgress возвращает только прогресс до следующего уровня.
func (h *GetProgressHandler) HandleLevelProgress(ctx context.Context, installationID string) (*progress.LevelProgress, error) {
	p, _, err := view(ctx, h.runner, installationID)
	if err != nil {
		return nil, fmt.Errorf("get_level_progress: %w", err)
	}
	lp := h.runner.Tracker().ProgressToNextLevel(p)
	return &lp, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// view проверяет ID и возвращает текущее состояние записи.
func view(ctx context.Context, runner *session.Runner, raw string) (*progress.UserProgress, shared.InstallationID, error) {
	id, err := shared.NewInstallationID(raw)
	if err != nil {
		return nil, "", err
	}
	p, err := runner.View(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return p, id, nil
}
