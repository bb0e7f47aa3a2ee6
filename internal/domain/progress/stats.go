package progress

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ MODELS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressToNextLevel - чистое чтение прогресса до следующего уровня.
func (t *Tracker) ProgressToNextLevel(p *UserProgress) LevelProgress {
	return t.levels.ProgressToNext(p.XP)
}

// Challenges возвращает челленджи окна scope с прогрессом пользователя.
// Пустой scope возвращает все окна.
func (t *Tracker) Challenges(p *UserProgress, scope ChallengeScope) []Challenge {
	out := make([]Challenge, 0, len(t.challenges))
	for _, def := range t.challenges {
		if scope != "" && def.Scope != scope {
			continue
		}
		out = append(out, newChallengeView(def, p))
	}
	return out
}

// ActiveChallenges возвращает незавершённые дневные и недельные челленджи.
func (t *Tracker) ActiveChallenges(p *UserProgress) []Challenge {
	out := []Challenge{}
	for _, def := range t.challenges {
		if def.Scope == ScopeSpecial || p.HasCompletedChallenge(def.ID) {
			continue
		}
		out = append(out, newChallengeView(def, p))
	}
	return out
}

// AchievementStatus - достижение и признак его открытия.
type AchievementStatus struct {
	Achievement
	Unlocked bool `json:"unlocked"`
}

// AchievementStatuses возвращает всю таблицу достижений с отметками.
func (t *Tracker) AchievementStatuses(p *UserProgress) []AchievementStatus {
	out := make([]AchievementStatus, 0, len(t.achievements))
	for _, a := range t.achievements {
		out = append(out, AchievementStatus{Achievement: a, Unlocked: p.HasAchievement(a.ID)})
	}
	return out
}

// UserStats - сводка для попапа расширения.
type UserStats struct {
	Level      int           `json:"level"`
	LevelName  string        `json:"levelName"`
	LevelIcon  string        `json:"levelIcon"`
	LevelColor string        `json:"levelColor"`
	XP         int           `json:"xp"`
	Progress   LevelProgress `json:"progress"`

	Streak        int `json:"streak"`
	LongestStreak int `json:"longestStreak"`

	TotalCO2Saved      float64 `json:"totalCO2Saved"`
	TotalMoneySaved    float64 `json:"totalMoneySaved"`
	ItemsReused        int     `json:"itemsReused"`
	AlternativesViewed int     `json:"alternativesViewed"`

	AchievementsUnlocked int         `json:"achievementsUnlocked"`
	AchievementsTotal    int         `json:"achievementsTotal"`
	ChallengesCompleted  int         `json:"challengesCompleted"`
	ActiveChallenges     []Challenge `json:"activeChallenges"`
}

// Stats собирает сводку по записи.
func (t *Tracker) Stats(p *UserProgress) UserStats {
	tier := t.levels.TierFor(p.XP)
	return UserStats{
		Level:                tier.Level,
		LevelName:            tier.Name,
		LevelIcon:            tier.Icon,
		LevelColor:           tier.Color,
		XP:                   p.XP.Int(),
		Progress:             t.ProgressToNextLevel(p),
		Streak:               p.Streak,
		LongestStreak:        p.LongestStreak,
		TotalCO2Saved:        p.TotalCO2Saved,
		TotalMoneySaved:      p.TotalMoneySaved,
		ItemsReused:          p.ItemsReused,
		AlternativesViewed:   p.AlternativesViewed,
		AchievementsUnlocked: len(p.UnlockedAchievements),
		AchievementsTotal:    len(t.achievements),
		ChallengesCompleted:  len(p.CompletedChallenges),
		ActiveChallenges:     t.ActiveChallenges(p),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY GOALS
// ══════════════════════════════════════════════════════════════════════════════

// Месячные цели.
const (
	MonthlyGoalCO2   = 50.0
	MonthlyGoalMoney = 200.0
	MonthlyGoalItems = 5
)

// GoalProgress - прогресс по одной месячной цели.
type GoalProgress struct {
	Current float64 `json:"current"`
	Goal    float64 `json:"goal"`
	Percent float64 `json:"percent"`
}

func newGoalProgress(current, goal float64) GoalProgress {
	return GoalProgress{
		Current: current,
		Goal:    goal,
		Percent: math.Min(100, current/goal*100),
	}
}

// MonthlyProgress - прогресс за календарный месяц.
type MonthlyProgress struct {
	Month       string       `json:"month"`
	CO2Saved    GoalProgress `json:"co2Saved"`
	MoneySaved  GoalProgress `json:"moneySaved"`
	ItemsReused GoalProgress `json:"itemsReused"`
	ActiveDays  int          `json:"activeDays"`
	XPEarned    int          `json:"xpEarned"`
}

// MonthlyProgress суммирует дневную статистику месяца, в который попадает at.
func (t *Tracker) MonthlyProgress(p *UserProgress, at time.Time) MonthlyProgress {
	today := t.Today(at)
	month := fmt.Sprintf("%04d-%02d", today.Year(), int(today.Month()))

	var co2, money float64
	var items, days, xp int
	for date, s := range p.DailyStats {
		if !strings.HasPrefix(date, month+"-") {
			continue
		}
		co2 += s.CO2Saved
		money += s.MoneySaved
		items += s.SecondhandChosen
		xp += s.XPEarned
		if s.ActionsRecorded > 0 {
			days++
		}
	}

	return MonthlyProgress{
		Month:       month,
		CO2Saved:    newGoalProgress(co2, MonthlyGoalCO2),
		MoneySaved:  newGoalProgress(money, MonthlyGoalMoney),
		ItemsReused: newGoalProgress(float64(items), MonthlyGoalItems),
		ActiveDays:  days,
		XPEarned:    xp,
	}
}
