package progress

import (
	"slices"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// Поддерживаемые единицы выбросов.
const (
	UnitsKg  = "kg"
	UnitsLbs = "lbs"
)

// KnownMarketplaces - площадки, которые понимает сервис рекомендаций.
var KnownMarketplaces = []string{"ebay", "backmarket", "amazon_renewed", "swappa", "decluttr"}

// Settings - пользовательские настройки расширения.
type Settings struct {
	EnableNotifications   bool     `json:"enableNotifications"`
	EnableOverlay         bool     `json:"enableOverlay"`
	PreferredMarketplaces []string `json:"preferredMarketplaces"`
	CarbonEmissionUnits   string   `json:"carbonEmissionUnits"`
}

// DefaultSettings возвращает настройки новой установки.
func DefaultSettings() Settings {
	return Settings{
		EnableNotifications:   true,
		EnableOverlay:         true,
		PreferredMarketplaces: []string{"ebay", "backmarket"},
		CarbonEmissionUnits:   UnitsKg,
	}
}

// Validate проверяет значения настроек.
func (s Settings) Validate() error {
	if s.CarbonEmissionUnits != UnitsKg && s.CarbonEmissionUnits != UnitsLbs {
		return shared.NewDomainError("progress", "UpdateSettings", shared.ErrInvalidInput,
			"carbonEmissionUnits must be kg or lbs")
	}
	for _, m := range s.PreferredMarketplaces {
		if !slices.Contains(KnownMarketplaces, m) {
			return shared.NewDomainError("progress", "UpdateSettings", shared.ErrInvalidInput,
				"unknown marketplace: "+m)
		}
	}
	return nil
}

// SettingsPatch - частичное обновление; nil поля не меняются.
type SettingsPatch struct {
	EnableNotifications   *bool
	EnableOverlay         *bool
	PreferredMarketplaces []string
	CarbonEmissionUnits   *string
}

// Apply возвращает настройки с применённым патчем.
func (s Settings) Apply(patch SettingsPatch) Settings {
	out := s
	out.PreferredMarketplaces = slices.Clone(s.PreferredMarketplaces)
	if patch.EnableNotifications != nil {
		out.EnableNotifications = *patch.EnableNotifications
	}
	if patch.EnableOverlay != nil {
		out.EnableOverlay = *patch.EnableOverlay
	}
	if patch.PreferredMarketplaces != nil {
		out.PreferredMarketplaces = slices.Clone(patch.PreferredMarketplaces)
	}
	if patch.CarbonEmissionUnits != nil {
		out.CarbonEmissionUnits = *patch.CarbonEmissionUnits
	}
	return out
}
