package command

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE ACHIEVEMENTS COMMAND
// Re-checks the achievement table against the stored totals. Recording an
// action already does this; the command exists for records written by older
// clients and for manual repair.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateAchievementsCommand contains the data to evaluate achievements.
type EvaluateAchievementsCommand struct {
	InstallationID string
	CorrelationID  string
}

// OutcomeResult is the shared result shape of commands that only award
// rewards (achievements, challenge progress).
type OutcomeResult struct {
	InstallationID       string         `json:"installationId"`
	XPGained             int            `json:"xpGained"`
	NewLevel             int            `json:"newLevel"`
	LeveledUp            bool           `json:"leveledUp"`
	TotalXP              int            `json:"totalXp"`
	UnlockedAchievements []string       `json:"unlockedAchievements"`
	CompletedChallenges  []string       `json:"completedChallenges"`
	Persisted            bool           `json:"persisted"`
	Events               []shared.Event `json:"-"`
}

func newOutcomeResult(id shared.InstallationID, out progress.Outcome, res *session.Result) *OutcomeResult {
	return &OutcomeResult{
		InstallationID:       id.String(),
		XPGained:             out.XPGained,
		NewLevel:             res.Progress.Level,
		LeveledUp:            out.LeveledUp,
		TotalXP:              res.Progress.XP.Int(),
		UnlockedAchievements: nonNil(out.UnlockedAchievements),
		CompletedChallenges:  nonNil(out.CompletedChallenges),
		Persisted:            res.Persisted,
		Events:               res.Events,
	}
}

// EvaluateAchievementsHandler handles the EvaluateAchievementsCommand.
type EvaluateAchievementsHandler struct {
	runner *session.Runner
}

// NewEvaluateAchievementsHandler creates a new handler.
func NewEvaluateAchievementsHandler(runner *session.Runner) *EvaluateAchievementsHandler {
	return &EvaluateAchievementsHandler{runner: runner}
}

// Handle executes the command. Repeating it without new progress unlocks nothing.
func (h *EvaluateAchievementsHandler) Handle(ctx context.Context, cmd EvaluateAchievementsCommand) (*OutcomeResult, error) {
	id, err := shared.NewInstallationID(cmd.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("evaluate_achievements: validation failed: %w", err)
	}

	tracker := h.runner.Tracker()
	var out progress.Outcome
	res, err := h.runner.Execute(ctx, id, "evaluate_achievements", func(p *progress.UserProgress, at time.Time) ([]shared.Event, error) {
		out = tracker.EvaluateAchievements(p, at)
		return withCorrelation(out.Events, cmd.CorrelationID), nil
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate_achievements: %w", err)
	}

	return newOutcomeResult(id, out, res), nil
}
