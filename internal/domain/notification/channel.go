package notification

import (
	"context"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL TYPE
// ══════════════════════════════════════════════════════════════════════════════

// ChannelType определяет канал доставки уведомления.
type ChannelType string

const (
	// ChannelOverlay - показ поверх страницы (список активных уведомлений).
	ChannelOverlay ChannelType = "overlay"

	// ChannelPubSub - рассылка подписчикам (открытые вкладки расширения).
	ChannelPubSub ChannelType = "pubsub"
)

// IsValid проверяет корректность канала.
func (ct ChannelType) IsValid() bool {
	return ct == ChannelOverlay || ct == ChannelPubSub
}

// String возвращает строковое представление канала.
func (ct ChannelType) String() string {
	return string(ct)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Channel - один канал доставки. Доставка без подтверждения: ошибка канала
// логируется и не влияет на операцию, которая породила уведомление.
type Channel interface {
	// Type возвращает тип канала.
	Type() ChannelType

	// Deliver отправляет уведомление.
	Deliver(ctx context.Context, n *Notification) error
}

// Surface - поверхность показа уведомлений.
type Surface interface {
	// Show показывает уведомление на время n.Duration.
	Show(ctx context.Context, n *Notification) error

	// Dismiss немедленно убирает уведомление.
	Dismiss(ctx context.Context, id NotificationID) error

	// Active возвращает видимые в момент now уведомления установки,
	// новые первыми.
	Active(ctx context.Context, installationID shared.InstallationID, now time.Time) ([]*Notification, error)
}
