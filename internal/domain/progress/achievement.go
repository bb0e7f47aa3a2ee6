package progress

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Rarity - редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Condition - чистый предикат над состоянием.
type Condition func(p *UserProgress) bool

// Achievement - разовое достижение.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	XPReward    int       `json:"xpReward"`
	Rarity      Rarity    `json:"rarity"`
	Condition   Condition `json:"-"`
}

// DefaultAchievements возвращает таблицу достижений. Порядок таблицы задаёт
// порядок проверки и, как следствие, порядок событий.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{
			ID: "first_steps", Name: "First Steps", Description: "Make your first sustainable choice",
			Icon: "👶", XPReward: 25, Rarity: RarityCommon,
			Condition: func(p *UserProgress) bool { return p.XP > 0 },
		},
		{
			ID: "first_alternative", Name: "Eco Explorer", Description: "Choose your first reused item",
			Icon: "🌱", XPReward: 50, Rarity: RarityCommon,
			Condition: func(p *UserProgress) bool { return p.ItemsReused >= 1 },
		},
		{
			ID: "streak_7", Name: "Week Warrior", Description: "Maintain a 7-day streak",
			Icon: "🔥", XPReward: 50, Rarity: RarityRare,
			Condition: func(p *UserProgress) bool { return p.Streak >= 7 },
		},
		{
			ID: "streak_master", Name: "Streak Master", Description: "Maintain a 30-day sustainability streak",
			Icon: "🔥", XPReward: 300, Rarity: RarityEpic,
			Condition: func(p *UserProgress) bool { return p.LongestStreak >= 30 },
		},
		{
			ID: "co2_saver_10", Name: "Carbon Crusher", Description: "Save 10kg of CO₂",
			Icon: "💨", XPReward: 50, Rarity: RarityCommon,
			Condition: func(p *UserProgress) bool { return p.TotalCO2Saved >= 10 },
		},
		{
			ID: "co2_saver_50", Name: "Climate Hero", Description: "Save 50kg of CO₂",
			Icon: "🌍", XPReward: 50, Rarity: RarityRare,
			Condition: func(p *UserProgress) bool { return p.TotalCO2Saved >= 50 },
		},
		{
			ID: "co2_hero", Name: "CO₂ Hero", Description: "Save 100kg of CO₂ emissions",
			Icon: "🦸", XPReward: 500, Rarity: RarityLegendary,
			Condition: func(p *UserProgress) bool { return p.TotalCO2Saved >= 100 },
		},
		{
			ID: "money_saver_100", Name: "Smart Shopper", Description: "Save $100 through sustainable choices",
			Icon: "💰", XPReward: 50, Rarity: RarityCommon,
			Condition: func(p *UserProgress) bool { return p.TotalMoneySaved >= 100 },
		},
		{
			ID: "bargain_hunter", Name: "Eco Bargain Hunter", Description: "Save $1000 with sustainable choices",
			Icon: "🎯", XPReward: 400, Rarity: RarityEpic,
			Condition: func(p *UserProgress) bool { return p.TotalMoneySaved >= 1000 },
		},
		{
			ID: "level_5", Name: "Planet Guardian", Description: "Reach level 5",
			Icon: "⭐", XPReward: 50, Rarity: RarityRare,
			Condition: func(p *UserProgress) bool { return p.Level >= 5 },
		},
		{
			// Рейтинг не хранится локально, поэтому условие никогда не выполняется.
			ID: "community_leader", Name: "Community Leader", Description: "Rank in top 10 on leaderboard",
			Icon: "👑", XPReward: 250, Rarity: RarityRare,
			Condition: func(*UserProgress) bool { return false },
		},
	}
}

// findAchievement ищет достижение по ID.
func findAchievement(table []Achievement, id string) (Achievement, bool) {
	for _, a := range table {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}
