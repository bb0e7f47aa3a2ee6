package progress

import (
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TIERS
// ══════════════════════════════════════════════════════════════════════════════

// LevelTier - одна ступень таблицы уровней.
type LevelTier struct {
	Level      int    `json:"level"`
	Name       string `json:"name"`
	XPRequired int    `json:"xpRequired"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
}

// LevelTable - упорядоченная таблица уровней.
// Инвариант: уровни идут подряд с 1, пороги строго возрастают, первый порог 0.
type LevelTable []LevelTier

// DefaultLevels возвращает стандартную таблицу из 8 уровней.
func DefaultLevels() LevelTable {
	return LevelTable{
		{1, "Eco Newcomer", 0, "🌱", "#22c55e"},
		{2, "Green Shopper", 100, "♻️", "#16a34a"},
		{3, "Sustainability Seeker", 250, "🌿", "#15803d"},
		{4, "Eco Warrior", 500, "🌍", "#166534"},
		{5, "Planet Guardian", 1000, "🌳", "#14532d"},
		{6, "Green Champion", 2000, "🏆", "#365314"},
		{7, "Sustainability Master", 4000, "👑", "#1a2e05"},
		{8, "Eco Legend", 8000, "⭐", "#052e16"},
	}
}

// Validate проверяет инварианты таблицы.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return shared.NewDomainError("progress", "ValidateLevels", shared.ErrEmptyValue, "level table is empty")
	}
	if t[0].XPRequired != 0 {
		return shared.NewDomainError("progress", "ValidateLevels", shared.ErrValueOutOfRange, "first tier must start at 0 XP")
	}
	for i, tier := range t {
		if tier.Level != i+1 {
			return shared.NewDomainError("progress", "ValidateLevels", shared.ErrValueOutOfRange,
				fmt.Sprintf("tier %d has level %d, want %d", i, tier.Level, i+1))
		}
		if i > 0 && tier.XPRequired <= t[i-1].XPRequired {
			return shared.NewDomainError("progress", "ValidateLevels", shared.ErrValueOutOfRange,
				fmt.Sprintf("tier %d threshold %d is not above %d", tier.Level, tier.XPRequired, t[i-1].XPRequired))
		}
	}
	return nil
}

// TierFor возвращает наивысшую ступень, порог которой не превышает xp.
func (t LevelTable) TierFor(xp shared.XP) LevelTier {
	current := t[0]
	for _, tier := range t {
		if tier.XPRequired > xp.Int() {
			break
		}
		current = tier
	}
	return current
}

// Tier возвращает ступень по номеру уровня.
func (t LevelTable) Tier(level int) (LevelTier, bool) {
	if level < 1 || level > len(t) {
		return LevelTier{}, false
	}
	return t[level-1], true
}

// MaxLevel возвращает номер последнего уровня.
func (t LevelTable) MaxLevel() int {
	return len(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS TO NEXT LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// LevelProgress - прогресс до следующего уровня.
type LevelProgress struct {
	Percentage  float64    `json:"percentage"`
	XPRemaining int        `json:"xpRemaining"`
	IsMaxLevel  bool       `json:"isMaxLevel"`
	Current     LevelTier  `json:"current"`
	Next        *LevelTier `json:"next,omitempty"`
}

// ProgressToNext вычисляет линейную интерполяцию между порогами текущего
// и следующего уровня. На последнем уровне возвращает 100%.
func (t LevelTable) ProgressToNext(xp shared.XP) LevelProgress {
	current := t.TierFor(xp)
	next, ok := t.Tier(current.Level + 1)
	if !ok {
		return LevelProgress{Percentage: 100, IsMaxLevel: true, Current: current}
	}

	span := next.XPRequired - current.XPRequired
	earned := xp.Int() - current.XPRequired
	pct := float64(earned) / float64(span) * 100
	if pct > 100 {
		pct = 100
	}

	return LevelProgress{
		Percentage:  pct,
		XPRemaining: max(0, next.XPRequired-xp.Int()),
		Current:     current,
		Next:        &next,
	}
}
