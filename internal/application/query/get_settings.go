package query

import (
	"context"
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// GetSettingsHandler возвращает настройки установки (или значения по умолчанию).
type GetSettingsHandler struct {
	repo progress.SettingsRepository
}

// NewGetSettingsHandler создаёт обработчик.
func NewGetSettingsHandler(repo progress.SettingsRepository) *GetSettingsHandler {
	return &GetSettingsHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetSettingsHandler) Handle(ctx context.Context, installationID string) (progress.Settings, error) {
	id, err := shared.NewInstallationID(installationID)
	if err != nil {
		return progress.Settings{}, fmt.Errorf("get_settings: %w", err)
	}
	s, err := h.repo.GetSettings(ctx, id)
	if err != nil {
		return progress.Settings{}, fmt.Errorf("get_settings: %w", err)
	}
	return s, nil
}
