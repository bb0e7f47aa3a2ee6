package query

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHALLENGES QUERY
// Челленджи с текущим прогрессом, сгруппированные по окнам.
// ══════════════════════════════════════════════════════════════════════════════

// GetChallengesQuery содержит параметры запроса челленджей.
type GetChallengesQuery struct {
	InstallationID string

	// Scope - daily, weekly или special; пусто = все окна.
	Scope string

	// ActiveOnly - только незавершённые.
	ActiveOnly bool
}

// Validate проверяет окно.
func (q GetChallengesQuery) Validate() error {
	if q.Scope == "" || lo.Contains(progress.Scopes(), progress.ChallengeScope(q.Scope)) {
		return nil
	}
	return shared.NewDomainError("progress", "Challenges", shared.ErrInvalidInput, "unknown challenge scope: "+q.Scope)
}

// ChallengesDTO - челленджи по окнам.
type ChallengesDTO struct {
	Daily   []progress.Challenge `json:"daily"`
	Weekly  []progress.Challenge `json:"weekly"`
	Special []progress.Challenge `json:"special"`

	// Completed - сколько челленджей завершено в текущих периодах.
	Completed int `json:"completed"`
}

// GetChallengesHandler обрабатывает GetChallengesQuery.
type GetChallengesHandler struct {
	runner *session.Runner
}

// NewGetChallengesHandler создаёт обработчик.
func NewGetChallengesHandler(runner *session.Runner) *GetChallengesHandler {
	return &GetChallengesHandler{runner: runner}
}

// Handle выполняет запрос.
func (h *GetChallengesHandler) Handle(ctx context.Context, q GetChallengesQuery) (*ChallengesDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_challenges: %w", err)
	}
	p, _, err := view(ctx, h.runner, q.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("get_challenges: %w", err)
	}

	all := h.runner.Tracker().Challenges(p, progress.ChallengeScope(q.Scope))
	completed := lo.CountBy(all, func(c progress.Challenge) bool { return c.Completed })
	if q.ActiveOnly {
		all = lo.Reject(all, func(c progress.Challenge, _ int) bool { return c.Completed })
	}

	byScope := lo.GroupBy(all, func(c progress.Challenge) progress.ChallengeScope { return c.Scope })
	return &ChallengesDTO{
		Daily:     orEmpty(byScope[progress.ScopeDaily]),
		Weekly:    orEmpty(byScope[progress.ScopeWeekly]),
		Special:   orEmpty(byScope[progress.ScopeSpecial]),
		Completed: completed,
	}, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
