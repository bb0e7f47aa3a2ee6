package command

import (
	"context"
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET PROGRESS COMMAND
// Deletes the record. The next operation starts from a fresh one.
// ══════════════════════════════════════════════════════════════════════════════

// ResetProgressCommand deletes all progress of an installation.
type ResetProgressCommand struct {
	InstallationID string
}

// ResetProgressHandler handles the ResetProgressCommand.
type ResetProgressHandler struct {
	runner *session.Runner
	log    *logger.Logger
}

// NewResetProgressHandler creates a new handler.
func NewResetProgressHandler(runner *session.Runner, log *logger.Logger) *ResetProgressHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ResetProgressHandler{runner: runner, log: log}
}

// Handle executes the command. Unlike tracker operations, a store failure
// is returned to the caller.
func (h *ResetProgressHandler) Handle(ctx context.Context, cmd ResetProgressCommand) error {
	id, err := shared.NewInstallationID(cmd.InstallationID)
	if err != nil {
		return fmt.Errorf("reset_progress: validation failed: %w", err)
	}

	if err := h.runner.Reset(ctx, id); err != nil {
		return fmt.Errorf("reset_progress: %w", err)
	}

	h.log.Info("progress reset", logger.InstallationID(id.String()))
	return nil
}
