package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
)

// NotificationChannel publishes shown notifications to a pub/sub channel
// so that every open client of an installation can render them.
type NotificationChannel struct {
	cache   *Cache
	channel string
}

var _ notification.Channel = (*NotificationChannel)(nil)

// NewNotificationChannel creates a publisher on channel.
func NewNotificationChannel(cache *Cache, channel string) *NotificationChannel {
	return &NotificationChannel{cache: cache, channel: channel}
}

// Type returns notification.ChannelPubSub.
func (c *NotificationChannel) Type() notification.ChannelType {
	return notification.ChannelPubSub
}

// Deliver publishes n as JSON.
func (c *NotificationChannel) Deliver(ctx context.Context, n *notification.Notification) error {
	if err := c.cache.Publish(ctx, c.channel, n); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe streams published notifications until ctx is done.
// Malformed messages are skipped. The returned channel is closed on exit.
func (c *NotificationChannel) Subscribe(ctx context.Context) (<-chan *notification.Notification, error) {
	sub := c.cache.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	out := make(chan *notification.Notification)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n notification.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					continue
				}
				select {
				case out <- &n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
