package notification

import (
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT -> NOTIFICATION
// Какие события прогресса видит пользователь и как они выглядят.
// ══════════════════════════════════════════════════════════════════════════════

// IconXP - иконка уведомления о XP.
const IconXP = "⭐"

// FromEvent строит уведомление для события. Возвращает false, если событие
// не показывается пользователю.
func FromEvent(id NotificationID, e shared.Event) (*Notification, bool) {
	params := NewNotificationParams{
		ID:             id,
		InstallationID: shared.InstallationID(e.AggregateID()),
		CreatedAt:      e.OccurredAt(),
	}

	switch ev := e.(type) {
	case shared.ActionRecordedEvent:
		if ev.XP <= 0 {
			return nil, false
		}
		params.Kind = KindXP
		params.Title = fmt.Sprintf("+%d XP", ev.XP)
		params.Message = ev.Message
		params.Icon = IconXP

	case shared.LevelUpEvent:
		params.Kind = KindLevelUp
		params.Title = "Level Up! 🎉"
		params.Message = fmt.Sprintf("You're now a %s!", ev.LevelName)
		params.Icon = ev.Icon

	case shared.ChallengeCompletedEvent:
		params.Kind = KindChallenge
		params.Title = fmt.Sprintf("Challenge Complete! %s", ev.Icon)
		params.Message = fmt.Sprintf("%s (+%d XP)", ev.Name, ev.XPReward)
		params.Icon = "🏆"

	case shared.AchievementUnlockedEvent:
		params.Kind = KindAchievement
		params.Title = "Achievement Unlocked! 🏆"
		params.Message = fmt.Sprintf("%s (+%d XP)", ev.Name, ev.XPReward)
		params.Icon = ev.Icon

	default:
		return nil, false
	}

	n, err := NewNotification(params)
	if err != nil {
		return nil, false
	}
	return n, true
}
