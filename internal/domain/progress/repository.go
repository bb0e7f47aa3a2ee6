package progress

import (
	"context"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища записей прогресса.
// Реализации находятся в infrastructure слое (memory, SQLite, PostgreSQL, Redis).
//
// Запись читается и пишется целиком. Save выполняет compare-and-swap по
// версии: запись сохраняется, только если версия в хранилище равна
// expectedVersion, иначе возвращается shared.ErrStaleVersion.
type Repository interface {
	// Load возвращает запись установки или shared.ErrProgressNotFound.
	Load(ctx context.Context, id shared.InstallationID) (*UserProgress, error)

	// Save сохраняет запись. expectedVersion == 0 означает, что записи ещё нет.
	// После успешного сохранения p.Version увеличивается на 1.
	Save(ctx context.Context, p *UserProgress, expectedVersion int64) error

	// Delete удаляет запись (явный сброс прогресса пользователем).
	Delete(ctx context.Context, id shared.InstallationID) error

	// List возвращает ID всех сохранённых установок (для фоновых задач).
	List(ctx context.Context) ([]shared.InstallationID, error)
}

// SettingsRepository хранит пользовательские настройки установки.
type SettingsRepository interface {
	// GetSettings возвращает настройки или значения по умолчанию, если их нет.
	GetSettings(ctx context.Context, id shared.InstallationID) (Settings, error)

	// SaveSettings сохраняет настройки целиком.
	SaveSettings(ctx context.Context, id shared.InstallationID, s Settings) error
}
