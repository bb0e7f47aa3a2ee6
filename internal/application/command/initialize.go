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
// INITIALIZE COMMAND
// Loads (or creates) the record and persists the challenge rollover for the
// current day. Called when a client starts and by the nightly sweep.
// ══════════════════════════════════════════════════════════════════════════════

// InitializeCommand contains the data to initialize a tracker.
type InitializeCommand struct {
	InstallationID string
}

// InitializeResult contains the result of initialization.
type InitializeResult struct {
	InstallationID string `json:"installationId"`

	// ResetScopes lists the challenge windows reset by this call.
	ResetScopes []string `json:"resetScopes"`

	Progress  *progress.UserProgress `json:"progress"`
	Persisted bool                   `json:"persisted"`
}

// InitializeHandler handles the InitializeCommand.
type InitializeHandler struct {
	runner *session.Runner
}

// NewInitializeHandler creates a new handler.
func NewInitializeHandler(runner *session.Runner) *InitializeHandler {
	return &InitializeHandler{runner: runner}
}

// Handle executes the command.
func (h *InitializeHandler) Handle(ctx context.Context, cmd InitializeCommand) (*InitializeResult, error) {
	id, err := shared.NewInstallationID(cmd.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("initialize: validation failed: %w", err)
	}

	res, err := h.runner.Execute(ctx, id, "initialize", func(*progress.UserProgress, time.Time) ([]shared.Event, error) {
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	scopes := make([]string, 0)
	for _, e := range res.Events {
		if ev, ok := e.(shared.ChallengesResetEvent); ok {
			scopes = append(scopes, ev.Scope)
		}
	}

	return &InitializeResult{
		InstallationID: id.String(),
		ResetScopes:    scopes,
		Progress:       res.Progress,
		Persisted:      res.Persisted,
	}, nil
}
