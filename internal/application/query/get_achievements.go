package query

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementsQuery содержит параметры запроса достижений.
type GetAchievementsQuery struct {
	InstallationID string

	// UnlockedOnly - только открытые.
	UnlockedOnly bool
}

// AchievementsDTO - таблица достижений с отметками.
type AchievementsDTO struct {
	Achievements []progress.AchievementStatus `json:"achievements"`
	Unlocked     int                          `json:"unlocked"`
	Total        int                          `json:"total"`
}

// GetAchievementsHandler обрабатывает GetAchievementsQuery.
type GetAchievementsHandler struct {
	runner *session.Runner
}

// NewGetAchievementsHandler создаёт обработчик.
func NewGetAchievementsHandler(runner *session.Runner) *GetAchievementsHandler {
	return &GetAchievementsHandler{runner: runner}
}

// Handle выполняет запрос.
func (h *GetAchievementsHandler) Handle(ctx context.Context, q GetAchievementsQuery) (*AchievementsDTO, error) {
	p, _, err := view(ctx, h.runner, q.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("get_achievements: %w", err)
	}

	all := h.runner.Tracker().AchievementStatuses(p)
	unlocked := lo.CountBy(all, func(a progress.AchievementStatus) bool { return a.Unlocked })
	if q.UnlockedOnly {
		all = lo.Filter(all, func(a progress.AchievementStatus, _ int) bool { return a.Unlocked })
	}

	return &AchievementsDTO{
		Achievements: all,
		Unlocked:     unlocked,
		Total:        len(h.runner.Tracker().Achievements()),
	}, nil
}
