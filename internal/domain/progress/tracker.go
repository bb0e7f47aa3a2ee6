package progress

import (
	"math"
	"slices"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// Config - таблицы и часовой пояс трекера.
type Config struct {
	Levels       LevelTable
	Achievements []Achievement
	Challenges   []ChallengeDefinition
	// Location - пояс, в котором считаются календарные дни. По умолчанию UTC.
	Location *time.Location
}

// DefaultConfig возвращает стандартные таблицы.
func DefaultConfig() Config {
	return Config{
		Levels:       DefaultLevels(),
		Achievements: DefaultAchievements(),
		Challenges:   DefaultChallenges(),
		Location:     time.UTC,
	}
}

// Tracker - чистая логика прогрессии. Не хранит состояние пользователя:
// каждая операция получает *UserProgress и изменяет его на месте.
// Загрузка и сохранение записи - забота вызывающего кода.
type Tracker struct {
	levels       LevelTable
	achievements []Achievement
	challenges   []ChallengeDefinition
	loc          *time.Location
}

// NewTracker создаёт трекер и проверяет таблицы.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Levels.Validate(); err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		levels:       cfg.Levels,
		achievements: cfg.Achievements,
		challenges:   cfg.Challenges,
		loc:          loc,
	}, nil
}

// Levels возвращает таблицу уровней.
func (t *Tracker) Levels() LevelTable { return t.levels }

// Achievements возвращает таблицу достижений.
func (t *Tracker) Achievements() []Achievement { return t.achievements }

// ChallengeDefinitions возвращает таблицу челленджей.
func (t *Tracker) ChallengeDefinitions() []ChallengeDefinition { return t.challenges }

// Today возвращает календарную дату момента at в поясе трекера.
func (t *Tracker) Today(at time.Time) shared.Date {
	return shared.DateOf(at.In(t.loc))
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// Outcome - итог одной операции вместе со всеми отложенными мутациями.
type Outcome struct {
	// XPGained - весь XP, начисленный за операцию, включая награды.
	XPGained  int  `json:"xpGained"`
	NewLevel  int  `json:"newLevel"`
	LeveledUp bool `json:"leveledUp"`

	UnlockedAchievements []string `json:"unlockedAchievements"`
	CompletedChallenges  []string `json:"completedChallenges"`

	// Events - события в порядке возникновения.
	Events []shared.Event `json:"-"`
}

// ActionResult - результат RecordAction.
type ActionResult struct {
	Outcome
	// XPAwarded - XP за само действие, без наград за достижения и челленджи.
	XPAwarded int `json:"xpAwarded"`
	// Duplicate - действие с этим ключом уже было учтено.
	Duplicate bool `json:"duplicate"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATION PASS
// ══════════════════════════════════════════════════════════════════════════════

// mutation - один проход изменения записи: основная мутация, затем
// очередь отложенных.
type mutation struct {
	t          *Tracker
	p          *UserProgress
	at         time.Time
	today      shared.Date
	startLevel int

	q   queue
	out Outcome
}

func (t *Tracker) begin(p *UserProgress, at time.Time) *mutation {
	return &mutation{
		t:          t,
		p:          p,
		at:         at,
		today:      t.Today(at),
		startLevel: p.Level,
	}
}

func (m *mutation) aggregate() string {
	return m.p.InstallationID.String()
}

// seq возвращает номер следующего события операции.
func (m *mutation) seq() int {
	return len(m.out.Events) + 1
}

func (m *mutation) emit(e shared.Event) {
	m.out.Events = append(m.out.Events, e)
}

// drain выполняет очередь до опустошения.
func (m *mutation) drain() {
	for {
		f, ok := m.q.pop()
		if !ok {
			return
		}
		switch f := f.(type) {
		case awardXP:
			m.applyXP(f)
		case advanceChallenge:
			m.applyChallenge(f)
		case evaluateAchievements:
			m.applyAchievements()
		}
	}
}

// finish завершает проход и заполняет итог.
func (m *mutation) finish() Outcome {
	m.drain()
	m.p.UpdatedAt = m.at
	m.out.NewLevel = m.p.Level
	m.out.LeveledUp = m.p.Level > m.startLevel
	if m.out.UnlockedAchievements == nil {
		m.out.UnlockedAchievements = []string{}
	}
	if m.out.CompletedChallenges == nil {
		m.out.CompletedChallenges = []string{}
	}
	return m.out
}

func (m *mutation) applyXP(f awardXP) {
	if f.amount <= 0 {
		return
	}
	p := m.p
	before := p.XP
	oldLevel := p.Level

	p.XP = p.XP.Add(f.amount)
	gained := p.XP.Int() - before.Int()
	if gained == 0 {
		return
	}
	m.out.XPGained += gained
	p.updateStats(m.today, func(s *DailyStats) { s.XPEarned += gained })

	ev := shared.NewXPGainedEvent(m.aggregate(), gained, p.XP.Int(), f.reason, m.at)
	ev.BaseEvent = ev.WithSequence(m.seq())
	m.emit(ev)

	tier := m.t.levels.TierFor(p.XP)
	p.Level = tier.Level
	if p.Level > oldLevel {
		lv := shared.NewLevelUpEvent(m.aggregate(), oldLevel, p.Level, tier.Name, tier.Icon, m.at)
		lv.BaseEvent = lv.WithSequence(m.seq())
		m.emit(lv)
	}

	m.q.push(evaluateAchievements{})
}

func (m *mutation) applyChallenge(f advanceChallenge) {
	def, ok := findChallenge(m.t.challenges, f.id)
	if !ok || f.delta <= 0 || !def.ActiveOn(m.today) {
		return
	}
	p := m.p
	current := math.Min(def.Target, p.ChallengeProgress[def.ID]+f.delta)
	p.ChallengeProgress[def.ID] = current

	if current < def.Target || p.HasCompletedChallenge(def.ID) {
		return
	}
	p.CompletedChallenges = append(p.CompletedChallenges, def.ID)
	m.out.CompletedChallenges = append(m.out.CompletedChallenges, def.ID)

	ev := shared.NewChallengeCompletedEvent(m.aggregate(), def.ID, def.Name, def.Icon, string(def.Scope), def.XPReward, m.at)
	ev.BaseEvent = ev.WithSequence(m.seq())
	m.emit(ev)

	m.q.push(awardXP{amount: def.XPReward, reason: "challenge:" + def.ID})
}

func (m *mutation) applyAchievements() {
	p := m.p
	for _, a := range m.t.achievements {
		if p.HasAchievement(a.ID) || a.Condition == nil || !a.Condition(p) {
			continue
		}
		p.UnlockedAchievements = append(p.UnlockedAchievements, a.ID)
		m.out.UnlockedAchievements = append(m.out.UnlockedAchievements, a.ID)

		ev := shared.NewAchievementUnlockedEvent(m.aggregate(), a.ID, a.Name, a.Icon, a.XPReward, m.at)
		ev.BaseEvent = ev.WithSequence(m.seq())
		m.emit(ev)

		m.q.push(awardXP{amount: a.XPReward, reason: "achievement:" + a.ID})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// RecordAction учитывает действие пользователя.
//
// Порядок: серия дней, счётчики, событие действия, затем очередь:
// XP за действие, продвижение челленджей, проверка достижений.
// Непустой key, уже встречавшийся среди последних MaxActionKeys действий,
// делает вызов пустой операцией с Duplicate = true.
func (t *Tracker) RecordAction(p *UserProgress, action Action, key string, at time.Time) (ActionResult, error) {
	if action == nil {
		return ActionResult{}, shared.ErrUnknownAction
	}
	if err := action.Validate(); err != nil {
		return ActionResult{}, err
	}
	if p.hasActionKey(key) {
		return ActionResult{
			Outcome: Outcome{
				NewLevel:             p.Level,
				UnlockedAchievements: []string{},
				CompletedChallenges:  []string{},
			},
			Duplicate: true,
		}, nil
	}

	m := t.begin(p, at)

	sc := p.touchStreak(m.today)
	if sc.NewDay {
		ev := shared.NewStreakUpdatedEvent(m.aggregate(), p.Streak, p.LongestStreak, sc.WasReset, at)
		ev.BaseEvent = ev.WithSequence(m.seq())
		m.emit(ev)
	}

	var advances []advanceChallenge
	switch a := action.(type) {
	case ViewedAlternative:
		p.AlternativesViewed++
		p.updateStats(m.today, func(s *DailyStats) { s.ItemsViewed++ })
		advances = append(advances, advanceChallenge{id: ChallengeWeeklyExplorer, delta: 1})
	case ChoseSecondhand:
		p.ItemsReused++
		p.TotalCO2Saved = shared.AddAmount(p.TotalCO2Saved, a.CO2Kg)
		p.TotalMoneySaved = shared.AddAmount(p.TotalMoneySaved, a.MoneySaved)
		p.updateStats(m.today, func(s *DailyStats) {
			s.SecondhandChosen++
			s.CO2Saved = shared.AddAmount(s.CO2Saved, a.CO2Kg)
			s.MoneySaved = shared.AddAmount(s.MoneySaved, a.MoneySaved)
		})
		advances = append(advances, advanceChallenge{id: ChallengeDailySecondhand, delta: 1})
	case ChoseEcoShipping:
		p.TotalCO2Saved = shared.AddAmount(p.TotalCO2Saved, a.CO2Kg)
		p.updateStats(m.today, func(s *DailyStats) {
			s.EcoShippingChosen++
			s.CO2Saved = shared.AddAmount(s.CO2Saved, a.CO2Kg)
		})
		advances = append(advances, advanceChallenge{id: ChallengeDailyShipping, delta: 1})
	case SavedEmissions:
		p.TotalCO2Saved = shared.AddAmount(p.TotalCO2Saved, a.Kg)
		p.updateStats(m.today, func(s *DailyStats) { s.CO2Saved = shared.AddAmount(s.CO2Saved, a.Kg) })
		advances = append(advances, advanceChallenge{id: ChallengeDailyCO2, delta: a.Kg})
	case SavedMoney:
		p.TotalMoneySaved = shared.AddAmount(p.TotalMoneySaved, a.Amount)
		p.updateStats(m.today, func(s *DailyStats) { s.MoneySaved = shared.AddAmount(s.MoneySaved, a.Amount) })
		advances = append(advances, advanceChallenge{id: ChallengeWeeklySaver, delta: math.Floor(a.Amount)})
	case PriceAlertSet:
	}
	p.updateStats(m.today, func(s *DailyStats) { s.ActionsRecorded++ })

	xp := action.XP()
	ev := shared.NewActionRecordedEvent(m.aggregate(), string(action.Kind()), xp, action.Description(), at)
	ev.BaseEvent = ev.WithSequence(m.seq())
	m.emit(ev)

	m.q.push(awardXP{amount: xp, reason: "action:" + string(action.Kind())})
	if sc.NewDay {
		m.q.push(advanceChallenge{id: ChallengeWeeklyStreak, delta: 1})
	}
	for _, adv := range advances {
		m.q.push(adv)
	}
	for _, def := range t.challenges {
		if def.Scope == ScopeSpecial && def.Window != nil && def.ActiveOn(m.today) {
			m.q.push(advanceChallenge{id: def.ID, delta: 1})
		}
	}
	m.q.push(evaluateAchievements{})

	out := m.finish()
	p.rememberActionKey(key)

	return ActionResult{Outcome: out, XPAwarded: xp}, nil
}

// EvaluateAchievements открывает все достижения, условия которых выполнены.
// Повторный вызов без изменений записи ничего не меняет.
func (t *Tracker) EvaluateAchievements(p *UserProgress, at time.Time) Outcome {
	m := t.begin(p, at)
	m.q.push(evaluateAchievements{})
	return m.finish()
}

// UpdateChallengeProgress двигает челлендж на delta с ограничением сверху.
// Особый челлендж вне своего дня прогресс не принимает.
func (t *Tracker) UpdateChallengeProgress(p *UserProgress, id string, delta float64, at time.Time) (Outcome, error) {
	if _, ok := findChallenge(t.challenges, id); !ok {
		return Outcome{}, shared.ErrUnknownChallenge
	}
	if err := shared.ValidateMagnitude(delta); err != nil {
		return Outcome{}, err
	}
	m := t.begin(p, at)
	m.q.push(advanceChallenge{id: id, delta: delta})
	return m.finish(), nil
}

// Rollover сбрасывает челленджи окон, период которых сменился.
// Прогресс обнуляется, а ID челленджей окна удаляются из CompletedChallenges.
// Событие ChallengesReset возникает, только если период был записан ранее.
func (t *Tracker) Rollover(p *UserProgress, at time.Time) []shared.Event {
	today := t.Today(at)
	var events []shared.Event
	for _, scope := range Scopes() {
		key := PeriodKey(scope, today)
		stored := p.ChallengePeriods[scope]
		if stored == key {
			continue
		}
		p.ChallengePeriods[scope] = key

		for _, def := range t.challenges {
			if def.Scope != scope {
				continue
			}
			delete(p.ChallengeProgress, def.ID)
			p.CompletedChallenges = slices.DeleteFunc(p.CompletedChallenges, func(id string) bool {
				return id == def.ID
			})
		}

		if stored != "" {
			ev := shared.NewChallengesResetEvent(p.InstallationID.String(), string(scope), key, at)
			ev.BaseEvent = ev.WithSequence(len(events) + 1)
			events = append(events, ev)
		}
	}
	return events
}
