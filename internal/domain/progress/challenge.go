package progress

import (
	"fmt"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE SCOPES
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeScope - временное окно челленджа.
type ChallengeScope string

const (
	ScopeDaily   ChallengeScope = "daily"
	ScopeWeekly  ChallengeScope = "weekly"
	ScopeSpecial ChallengeScope = "special"
)

// Scopes возвращает все окна в порядке отображения.
func Scopes() []ChallengeScope {
	return []ChallengeScope{ScopeDaily, ScopeWeekly, ScopeSpecial}
}

// PeriodKey возвращает ключ текущего периода окна для даты today.
// Смена ключа означает, что период закончился и прогресс пора сбросить.
func PeriodKey(scope ChallengeScope, today shared.Date) string {
	switch scope {
	case ScopeDaily:
		return today.String()
	case ScopeWeekly:
		// Неделя начинается с понедельника.
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDays(-offset).String()
	case ScopeSpecial:
		return fmt.Sprintf("%04d", today.Year())
	default:
		return ""
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// SpecialWindow - ежегодный день, в который активен особый челлендж.
type SpecialWindow struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// Contains проверяет, попадает ли дата в окно.
func (w SpecialWindow) Contains(d shared.Date) bool {
	return d.Month() == w.Month && d.Day() == w.Day
}

// ChallengeDefinition - неизменяемое описание челленджа.
type ChallengeDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	XPReward    int            `json:"xpReward"`
	Scope       ChallengeScope `json:"scope"`
	Target      float64        `json:"target"`
	Window      *SpecialWindow `json:"window,omitempty"`
}

// Идентификаторы челленджей, которые двигаются действиями.
const (
	ChallengeDailySecondhand = "daily_secondhand"
	ChallengeDailyShipping   = "daily_shipping"
	ChallengeDailyCO2        = "daily_co2_save"
	ChallengeWeeklyStreak    = "weekly_streak"
	ChallengeWeeklyExplorer  = "weekly_explorer"
	ChallengeWeeklySaver     = "weekly_saver"
	ChallengeEarthDay        = "earth_day"
)

// DefaultChallenges возвращает таблицу челленджей.
func DefaultChallenges() []ChallengeDefinition {
	return []ChallengeDefinition{
		{ID: ChallengeDailySecondhand, Name: "Second Chance Sunday", Description: "Choose a refurbished item over new",
			Icon: "🔄", XPReward: 50, Scope: ScopeDaily, Target: 1},
		{ID: ChallengeDailyShipping, Name: "Slow & Steady", Description: "Choose eco-friendly shipping",
			Icon: "🚚", XPReward: 30, Scope: ScopeDaily, Target: 1},
		{ID: ChallengeDailyCO2, Name: "Carbon Crusher", Description: "Save 2kg CO₂ today",
			Icon: "🌬️", XPReward: 40, Scope: ScopeDaily, Target: 2},
		{ID: ChallengeWeeklyStreak, Name: "Week Warrior", Description: "Make sustainable choices 5 days this week",
			Icon: "🔥", XPReward: 200, Scope: ScopeWeekly, Target: 5},
		{ID: ChallengeWeeklyExplorer, Name: "Alternative Explorer", Description: "View 10 eco-alternatives this week",
			Icon: "🔍", XPReward: 150, Scope: ScopeWeekly, Target: 10},
		{ID: ChallengeWeeklySaver, Name: "Money & Planet Saver", Description: "Save $50 with eco-choices this week",
			Icon: "💰", XPReward: 180, Scope: ScopeWeekly, Target: 50},
		{ID: ChallengeEarthDay, Name: "Earth Day Champion", Description: "Complete 5 sustainable actions on Earth Day",
			Icon: "🌎", XPReward: 500, Scope: ScopeSpecial, Target: 5,
			Window: &SpecialWindow{Month: time.April, Day: 22}},
	}
}

// ActiveOn проверяет, принимает ли челлендж прогресс в дату d.
func (c ChallengeDefinition) ActiveOn(d shared.Date) bool {
	if c.Window == nil {
		return true
	}
	return c.Window.Contains(d)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE VIEW
// ══════════════════════════════════════════════════════════════════════════════

// Challenge - челлендж вместе с текущим прогрессом пользователя.
type Challenge struct {
	ChallengeDefinition
	CurrentProgress float64 `json:"currentProgress"`
	Completed       bool    `json:"completed"`
	ProgressPercent float64 `json:"progressPercent"`
}

func newChallengeView(def ChallengeDefinition, p *UserProgress) Challenge {
	current := p.ChallengeProgress[def.ID]
	pct := 0.0
	if def.Target > 0 {
		pct = current / def.Target * 100
	}
	return Challenge{
		ChallengeDefinition: def,
		CurrentProgress:     current,
		Completed:           p.HasCompletedChallenge(def.ID),
		ProgressPercent:     pct,
	}
}

// findChallenge ищет челлендж по ID во всех окнах.
func findChallenge(table []ChallengeDefinition, id string) (ChallengeDefinition, bool) {
	for _, c := range table {
		if c.ID == id {
			return c, true
		}
	}
	return ChallengeDefinition{}, false
}
