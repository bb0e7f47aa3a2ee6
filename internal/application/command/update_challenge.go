package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE CHALLENGE PROGRESS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateChallengeCommand advances one challenge.
type UpdateChallengeCommand struct {
	InstallationID string
	ChallengeID    string

	// Delta defaults to 1 when zero.
	Delta float64

	CorrelationID string
}

// Validate validates the command.
func (c UpdateChallengeCommand) Validate() (shared.InstallationID, error) {
	id, err := shared.NewInstallationID(c.InstallationID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(c.ChallengeID) == "" {
		return "", shared.ErrUnknownChallenge
	}
	if err := shared.ValidateMagnitude(c.Delta); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateChallengeHandler handles the UpdateChallengeCommand.
type UpdateChallengeHandler struct {
	runner *session.Runner
}

// NewUpdateChallengeHandler creates a new handler.
func NewUpdateChallengeHandler(runner *session.Runner) *UpdateChallengeHandler {
	return &UpdateChallengeHandler{runner: runner}
}

// Handle executes the command.
func (h *UpdateChallengeHandler) Handle(ctx context.Context, cmd UpdateChallengeCommand) (*OutcomeResult, error) {
	id, err := cmd.Validate()
	if err != nil {
		return nil, fmt.Errorf("update_challenge: validation failed: %w", err)
	}

	delta := cmd.Delta
	if delta == 0 {
		delta = 1
	}
	challengeID := strings.TrimSpace(cmd.ChallengeID)

	tracker := h.runner.Tracker()
	var out progress.Outcome
	res, err := h.runner.Execute(ctx, id, "update_challenge", func(p *progress.UserProgress, at time.Time) ([]shared.Event, error) {
		o, err := tracker.UpdateChallengeProgress(p, challengeID, delta, at)
		if err != nil {
			return nil, err
		}
		out = o
		return withCorrelation(o.Events, cmd.CorrelationID), nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_challenge: %w", err)
	}

	return newOutcomeResult(id, out, res), nil
}
