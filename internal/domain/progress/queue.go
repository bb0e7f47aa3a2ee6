package progress

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW-UP QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// followUp - отложенная мутация, порождённая основной операцией.
// Начисление XP, продвижение челленджа и проверка достижений не вызывают
// друг друга рекурсивно, а ставятся в очередь и выполняются по порядку.
type followUp interface {
	isFollowUp()
}

// awardXP начисляет XP и пересчитывает уровень.
type awardXP struct {
	amount int
	reason string
}

// advanceChallenge двигает прогресс челленджа на delta.
type advanceChallenge struct {
	id    string
	delta float64
}

// evaluateAchievements проверяет таблицу достижений.
type evaluateAchievements struct{}

func (awardXP) isFollowUp()              {}
func (advanceChallenge) isFollowUp()     {}
func (evaluateAchievements) isFollowUp() {}

// queue - FIFO очередь отложенных мутаций.
type queue struct {
	items []followUp
	// evalPending - в очереди уже есть проверка достижений.
	evalPending bool
}

func (q *queue) push(f followUp) {
	if _, ok := f.(evaluateAchievements); ok {
		if q.evalPending {
			return
		}
		q.evalPending = true
	}
	q.items = append(q.items, f)
}

func (q *queue) pop() (followUp, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	if _, ok := f.(evaluateAchievements); ok {
		q.evalPending = false
	}
	return f, true
}
