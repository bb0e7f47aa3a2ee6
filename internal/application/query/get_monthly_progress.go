package query

import (
	"context"
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MONTHLY PROGRESS QUERY
// Месячные цели плюс дневная статистика за последние дни.
// ══════════════════════════════════════════════════════════════════════════════

// Ограничения истории.
const (
	DefaultHistoryDays = 7
	MaxHistoryDays     = 31
)

// GetMonthlyProgressQuery содержит параметры запроса.
type GetMonthlyProgressQuery struct {
	InstallationID string

	// HistoryDays - за сколько дней вернуть дневную статистику (по умолчанию 7).
	HistoryDays int
}

// DayDTO - статистика одного дня.
type DayDTO struct {
	Date string `json:"date"`
	progress.DailyStats
}

// MonthlyProgressDTO - месячный прогресс.
type MonthlyProgressDTO struct {
	progress.MonthlyProgress

	// Today - статистика за сегодня.
	Today progress.DailyStats `json:"today"`

	// History - последние дни, начиная с сегодняшнего; дни без действий нулевые.
	History []DayDTO `json:"history"`
}

// GetMonthlyProgressHandler обрабатывает GetMonthlyProgressQuery.
type GetMonthlyProgressHandler struct {
	runner *session.Runner
}

// NewGetMonthlyProgressHandler создаёт обработчик.
func NewGetMonthlyProgressHandler(runner *session.Runner) *GetMonthlyProgressHandler {
	return &GetMonthlyProgressHandler{runner: runner}
}

// Handle выполняет запрос.
func (h *GetMonthlyProgressHandler) Handle(ctx context.Context, q GetMonthlyProgressQuery) (*MonthlyProgressDTO, error) {
	p, _, err := view(ctx, h.runner, q.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("get_monthly_progress: %w", err)
	}

	days := q.HistoryDays
	if days <= 0 {
		days = DefaultHistoryDays
	}
	days = min(days, MaxHistoryDays)

	now := h.runner.Now()
	tracker := h.runner.Tracker()
	today := tracker.Today(now)

	history := make([]DayDTO, 0, days)
	for i := 0; i < days; i++ {
		d := today.AddDays(-i).String()
		history = append(history, DayDTO{Date: d, DailyStats: p.DailyStats[d]})
	}

	return &MonthlyProgressDTO{
		MonthlyProgress: tracker.MonthlyProgress(p, now),
		Today:           p.DailyStats[today.String()],
		History:         history,
	}, nil
}
