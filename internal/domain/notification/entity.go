// Package notification содержит доменную модель уведомлений Green Guardian.
// Уведомление - короткое сообщение поверх страницы магазина, которое живёт
// фиксированное время и исчезает само или по нажатию пользователя.
package notification

import (
	"errors"
	"strings"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID представляет уникальный идентификатор уведомления.
type NotificationID string

// IsValid проверяет, что ID не пустой.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID.
func (id NotificationID) String() string {
	return string(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет вид уведомления.
type Kind string

const (
	// KindXP - начислен XP за действие.
	// "+25 XP · Chose secondhand over new"
	KindXP Kind = "xp"

	// KindLevelUp - повышение уровня.
	// "Level Up! 🎉 · You're now a Green Shopper!"
	KindLevelUp Kind = "level_up"

	// KindChallenge - челлендж выполнен.
	// "Challenge Complete! 🔄 · Second Chance Sunday (+50 XP)"
	KindChallenge Kind = "challenge"

	// KindAchievement - открыто достижение.
	// "Achievement Unlocked! 🏆 · Eco Explorer (+50 XP)"
	KindAchievement Kind = "achievement"
)

// IsValid проверяет, что вид уведомления корректен.
func (k Kind) IsValid() bool {
	switch k {
	case KindXP, KindLevelUp, KindChallenge, KindAchievement:
		return true
	default:
		return false
	}
}

// Duration возвращает время показа уведомления.
func (k Kind) Duration() time.Duration {
	switch k {
	case KindXP:
		return 2000 * time.Millisecond
	case KindChallenge:
		return 3000 * time.Millisecond
	case KindLevelUp, KindAchievement:
		return 4000 * time.Millisecond
	default:
		return 3000 * time.Millisecond
	}
}

// Color возвращает цвет рамки уведомления.
func (k Kind) Color() string {
	switch k {
	case KindXP:
		return "#fbbf24"
	case KindChallenge:
		return "#22c55e"
	case KindAchievement:
		return "#8b5cf6"
	default:
		return "#16a34a"
	}
}

// IsSpecial возвращает true для крупных уведомлений (уровень, достижение).
func (k Kind) IsSpecial() bool {
	return k == KindLevelUp || k == KindAchievement
}

// String возвращает строковое представление вида.
func (k Kind) String() string {
	return string(k)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Domain errors.
var (
	ErrInvalidNotificationID = errors.New("notification: invalid ID")
	ErrInvalidKind           = errors.New("notification: invalid kind")
	ErrEmptyTitle            = errors.New("notification: title cannot be empty")
	ErrAlreadyDismissed      = errors.New("notification: already dismissed")
)

// Notification представляет показанное пользователю уведомление.
type Notification struct {
	ID             NotificationID        `json:"id"`
	InstallationID shared.InstallationID `json:"installationId"`
	Kind           Kind                  `json:"kind"`
	Title          string                `json:"title"`
	Message        string                `json:"message"`
	Icon           string                `json:"icon"`
	Color          string                `json:"color"`
	Special        bool                  `json:"special"`

	// Duration - время показа; по истечении уведомление исчезает само.
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`

	// DismissedAt - время закрытия пользователем.
	DismissedAt *time.Time `json:"dismissedAt,omitempty"`
}

// NewNotificationParams содержит параметры для создания уведомления.
type NewNotificationParams struct {
	ID             NotificationID
	InstallationID shared.InstallationID
	Kind           Kind
	Title          string
	Message        string
	Icon           string
	CreatedAt      time.Time
}

// NewNotification создаёт уведомление; длительность и цвет задаются видом.
func NewNotification(params NewNotificationParams) (*Notification, error) {
	if !params.ID.IsValid() {
		return nil, ErrInvalidNotificationID
	}
	if !params.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	d := params.Kind.Duration()
	return &Notification{
		ID:             params.ID,
		InstallationID: params.InstallationID,
		Kind:           params.Kind,
		Title:          title,
		Message:        params.Message,
		Icon:           params.Icon,
		Color:          params.Kind.Color(),
		Special:        params.Kind.IsSpecial(),
		Duration:       d,
		CreatedAt:      params.CreatedAt,
		ExpiresAt:      params.CreatedAt.Add(d),
	}, nil
}

// IsExpired возвращает true, если время показа истекло.
func (n *Notification) IsExpired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// IsVisible возвращает true, если уведомление ещё на экране.
func (n *Notification) IsVisible(now time.Time) bool {
	return n.DismissedAt == nil && !n.IsExpired(now)
}

// Dismiss закрывает уведомление немедленно, независимо от оставшегося времени.
func (n *Notification) Dismiss(now time.Time) error {
	if n.DismissedAt != nil {
		return ErrAlreadyDismissed
	}
	n.DismissedAt = &now
	return nil
}

// Remaining возвращает оставшееся время показа.
func (n *Notification) Remaining(now time.Time) time.Duration {
	if !n.IsVisible(now) {
		return 0
	}
	return n.ExpiresAt.Sub(now)
}
