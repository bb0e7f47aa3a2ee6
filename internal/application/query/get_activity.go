package query

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/activity"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVITY QUERY
// Журнал последних действий, новые первыми.
// ══════════════════════════════════════════════════════════════════════════════

// GetActivityQuery содержит параметры запроса журнала.
type GetActivityQuery struct {
	InstallationID string

	// Limit - максимум записей (0 = все, не больше activity.MaxEntries).
	Limit int

	// Since - только записи не раньше этого момента.
	Since time.Time

	// Kind - фильтр по виду действия.
	Kind string
}

// ActivityItemDTO - запись журнала с относительным временем.
type ActivityItemDTO struct {
	activity.Entry
	Ago string `json:"ago"`
}

// ActivityDTO - журнал действий.
type ActivityDTO struct {
	Items []ActivityItemDTO `json:"items"`
	Total int               `json:"total"`
}

// GetActivityHandler обрабатывает GetActivityQuery.
type GetActivityHandler struct {
	runner *session.Runner
}

// NewGetActivityHandler создаёт обработчик.
func NewGetActivityHandler(runner *session.Runner) *GetActivityHandler {
	return &GetActivityHandler{runner: runner}
}

// Handle выполняет запрос.
func (h *GetActivityHandler) Handle(ctx context.Context, q GetActivityQuery) (*ActivityDTO, error) {
	p, _, err := view(ctx, h.runner, q.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("get_activity: %w", err)
	}

	entries := p.RecentActivity
	if !q.Since.IsZero() {
		entries = activity.Since(entries, q.Since)
	}
	if q.Kind != "" {
		entries = lo.Filter(entries, func(e activity.Entry, _ int) bool { return e.Kind == q.Kind })
	}
	total := len(entries)
	if q.Limit > 0 {
		entries = lo.Slice(entries, 0, q.Limit)
	}

	now := h.runner.Now()
	return &ActivityDTO{
		Items: lo.Map(entries, func(e activity.Entry, _ int) ActivityItemDTO {
			return ActivityItemDTO{Entry: e, Ago: timeutil.FormatRelative(e.At, now)}
		}),
		Total: total,
	}, nil
}
