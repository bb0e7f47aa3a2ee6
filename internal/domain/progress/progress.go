package progress

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/activity"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// Ограничения на размер хранимых коллекций.
const (
	// MaxActionKeys - сколько последних ключей идемпотентности помнит запись.
	MaxActionKeys = 100
	// MaxDailyStatsDays - сколько дней дневной статистики хранится.
	MaxDailyStatsDays = 62
)

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress - единственная запись прогресса на установку.
//
// Инварианты:
//   - XP не убывает
//   - Level == наивысший уровень с порогом <= XP
//   - LongestStreak >= Streak
//   - UnlockedAchievements только растёт
//   - 0 <= ChallengeProgress[id] <= target
type UserProgress struct {
	InstallationID shared.InstallationID `json:"installationId"`

	XP             shared.XP   `json:"xp"`
	Level          int         `json:"level"`
	Streak         int         `json:"streak"`
	LongestStreak  int         `json:"longestStreak"`
	LastActiveDate shared.Date `json:"lastActiveDate"`

	TotalCO2Saved      float64 `json:"totalCO2Saved"`
	TotalMoneySaved    float64 `json:"totalMoneySaved"`
	ItemsReused        int     `json:"itemsReused"`
	AlternativesViewed int     `json:"alternativesViewed"`

	UnlockedAchievements []string `json:"unlockedAchievements"`
	CompletedChallenges  []string `json:"completedChallenges"`

	// ChallengeProgress - текущий прогресс по ID челленджа.
	ChallengeProgress map[string]float64 `json:"challengeProgress"`
	// ChallengePeriods - ключ периода последнего сброса по окну.
	ChallengePeriods map[ChallengeScope]string `json:"challengePeriods"`

	// DailyStats - статистика по датам (YYYY-MM-DD).
	DailyStats map[string]DailyStats `json:"dailyStats"`
	// RecentActivity - последние действия, новые в начале.
	RecentActivity []activity.Entry `json:"recentActivity"`
	// RecentActionKeys - ключи идемпотентности, старые в начале.
	RecentActionKeys []string `json:"recentActionKeys"`

	// Version - версия для оптимистичной блокировки. Увеличивается хранилищем.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DailyStats - счётчики за один день.
type DailyStats struct {
	CO2Saved          float64 `json:"co2Saved"`
	MoneySaved        float64 `json:"moneySaved"`
	ItemsViewed       int     `json:"itemsViewed"`
	SecondhandChosen  int     `json:"secondhandChosen"`
	EcoShippingChosen int     `json:"ecoShippingChosen"`
	ActionsRecorded   int     `json:"actionsRecorded"`
	XPEarned          int     `json:"xpEarned"`
}

// NewUserProgress создаёт запись с нулевыми значениями по умолчанию.
func NewUserProgress(id shared.InstallationID, now time.Time) *UserProgress {
	return &UserProgress{
		InstallationID:       id,
		Level:                1,
		UnlockedAchievements: []string{},
		CompletedChallenges:  []string{},
		ChallengeProgress:    map[string]float64{},
		ChallengePeriods:     map[ChallengeScope]string{},
		DailyStats:           map[string]DailyStats{},
		RecentActivity:       []activity.Entry{},
		RecentActionKeys:     []string{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Clone возвращает глубокую копию записи.
func (p *UserProgress) Clone() *UserProgress {
	c := *p
	c.UnlockedAchievements = slices.Clone(p.UnlockedAchievements)
	c.CompletedChallenges = slices.Clone(p.CompletedChallenges)
	c.ChallengeProgress = maps.Clone(p.ChallengeProgress)
	c.ChallengePeriods = maps.Clone(p.ChallengePeriods)
	c.DailyStats = maps.Clone(p.DailyStats)
	c.RecentActivity = slices.Clone(p.RecentActivity)
	c.RecentActionKeys = slices.Clone(p.RecentActionKeys)
	return &c
}

// Normalize заполняет пустые коллекции и восстанавливает производные поля
// после загрузки из хранилища.
func (p *UserProgress) Normalize(levels LevelTable) {
	if p.UnlockedAchievements == nil {
		p.UnlockedAchievements = []string{}
	}
	if p.CompletedChallenges == nil {
		p.CompletedChallenges = []string{}
	}
	if p.ChallengeProgress == nil {
		p.ChallengeProgress = map[string]float64{}
	}
	if p.ChallengePeriods == nil {
		p.ChallengePeriods = map[ChallengeScope]string{}
	}
	if p.DailyStats == nil {
		p.DailyStats = map[string]DailyStats{}
	}
	if p.RecentActivity == nil {
		p.RecentActivity = []activity.Entry{}
	}
	if p.RecentActionKeys == nil {
		p.RecentActionKeys = []string{}
	}
	if p.XP < 0 {
		p.XP = 0
	}
	if p.LongestStreak < p.Streak {
		p.LongestStreak = p.Streak
	}
	p.TotalCO2Saved = shared.ClampTotal(p.TotalCO2Saved)
	p.TotalMoneySaved = shared.ClampTotal(p.TotalMoneySaved)
	p.Level = levels.TierFor(p.XP).Level
}

// HasAchievement проверяет, открыто ли достижение.
func (p *UserProgress) HasAchievement(id string) bool {
	return slices.Contains(p.UnlockedAchievements, id)
}

// HasCompletedChallenge проверяет, завершён ли челлендж.
func (p *UserProgress) HasCompletedChallenge(id string) bool {
	return slices.Contains(p.CompletedChallenges, id)
}

// hasActionKey проверяет ключ идемпотентности.
func (p *UserProgress) hasActionKey(key string) bool {
	return key != "" && slices.Contains(p.RecentActionKeys, key)
}

// rememberActionKey добавляет ключ, вытесняя самые старые.
func (p *UserProgress) rememberActionKey(key string) {
	if key == "" {
		return
	}
	p.RecentActionKeys = append(p.RecentActionKeys, key)
	if over := len(p.RecentActionKeys) - MaxActionKeys; over > 0 {
		p.RecentActionKeys = slices.Delete(p.RecentActionKeys, 0, over)
	}
}

// updateStats сохраняет статистику и удаляет самые старые дни.
func (p *UserProgress) updateStats(day shared.Date, fn func(*DailyStats)) {
	s := p.DailyStats[day.String()]
	fn(&s)
	p.DailyStats[day.String()] = s

	if len(p.DailyStats) <= MaxDailyStatsDays {
		return
	}
	keys := make([]string, 0, len(p.DailyStats))
	for k := range p.DailyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-MaxDailyStatsDays] {
		delete(p.DailyStats, k)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// streakChange описывает результат отметки активного дня.
type streakChange struct {
	NewDay   bool
	WasReset bool
}

// touchStreak отмечает активность в день today.
//   - тот же день: без изменений
//   - вчера: серия +1
//   - пропуск или первая активность: серия = 1
//
// Дата в прошлом относительно LastActiveDate (сдвиг часов) ничего не меняет.
func (p *UserProgress) touchStreak(today shared.Date) streakChange {
	if !p.LastActiveDate.IsZero() {
		diff := p.LastActiveDate.DaysUntil(today)
		switch {
		case diff <= 0:
			return streakChange{}
		case diff == 1:
			p.Streak++
			p.LongestStreak = max(p.LongestStreak, p.Streak)
			p.LastActiveDate = today
			return streakChange{NewDay: true}
		}
	}

	hadStreak := p.Streak > 0
	p.Streak = 1
	p.LongestStreak = max(p.LongestStreak, p.Streak)
	p.LastActiveDate = today
	return streakChange{NewDay: true, WasReset: hadStreak}
}
