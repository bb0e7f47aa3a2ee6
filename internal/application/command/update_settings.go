package command

import (
	"context"
	"fmt"
	"slices"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SETTINGS COMMAND
// Updates notification, overlay, marketplace and unit preferences.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSettingsCommand contains the data to update settings.
// nil fields of Patch mean "don't change".
type UpdateSettingsCommand struct {
	InstallationID string
	Patch          progress.SettingsPatch
}

// UpdateSettingsResult contains the result of updating settings.
type UpdateSettingsResult struct {
	InstallationID string            `json:"installationId"`
	Settings       progress.Settings `json:"settings"`

	// ChangedFields lists which fields were changed.
	ChangedFields []string `json:"changedFields"`
}

// UpdateSettingsHandler handles the UpdateSettingsCommand.
type UpdateSettingsHandler struct {
	repo progress.SettingsRepository
}

// NewUpdateSettingsHandler creates a new UpdateSettingsHandler.
func NewUpdateSettingsHandler(repo progress.SettingsRepository) *UpdateSettingsHandler {
	return &UpdateSettingsHandler{repo: repo}
}

// Handle executes the update settings command.
func (h *UpdateSettingsHandler) Handle(ctx context.Context, cmd UpdateSettingsCommand) (*UpdateSettingsResult, error) {
	id, err := shared.NewInstallationID(cmd.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("update_settings: validation failed: %w", err)
	}

	current, err := h.repo.GetSettings(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update_settings: load: %w", err)
	}

	next := current.Apply(cmd.Patch)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("update_settings: validation failed: %w", err)
	}

	changed := changedSettings(current, next)
	if len(changed) > 0 {
		if err := h.repo.SaveSettings(ctx, id, next); err != nil {
			return nil, fmt.Errorf("update_settings: failed to save: %w", err)
		}
	}

	return &UpdateSettingsResult{
		InstallationID: id.String(),
		Settings:       next,
		ChangedFields:  changed,
	}, nil
}

// HandleReset restores the default settings.
func (h *UpdateSettingsHandler) HandleReset(ctx context.Context, installationID string) (*UpdateSettingsResult, error) {
	id, err := shared.NewInstallationID(installationID)
	if err != nil {
		return nil, fmt.Errorf("reset_settings: validation failed: %w", err)
	}

	defaults := progress.DefaultSettings()
	if err := h.repo.SaveSettings(ctx, id, defaults); err != nil {
		return nil, fmt.Errorf("reset_settings: failed to save: %w", err)
	}

	return &UpdateSettingsResult{
		InstallationID: id.String(),
		Settings:       defaults,
		ChangedFields:  []string{"all_reset_to_defaults"},
	}, nil
}

func changedSettings(old, next progress.Settings) []string {
	changed := make([]string, 0)
	if old.EnableNotifications != next.EnableNotifications {
		changed = append(changed, "enableNotifications")
	}
	if old.EnableOverlay != next.EnableOverlay {
		changed = append(changed, "enableOverlay")
	}
	if !slices.Equal(old.PreferredMarketplaces, next.PreferredMarketplaces) {
		changed = append(changed, "preferredMarketplaces")
	}
	if old.CarbonEmissionUnits != next.CarbonEmissionUnits {
		changed = append(changed, "carbonEmissionUnits")
	}
	return changed
}
