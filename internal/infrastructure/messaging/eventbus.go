// Package messaging implements the event bus that carries progression events
// from the application runner to their handlers (notifications, logging).
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	errNilHandler     = errors.New("handler cannot be nil")
)

// Bus delivers each event synchronously: type handlers first, then the
// catch-all ones, in subscription order. Notifications therefore follow
// event order. Handler errors are logged and never fail Publish.
type Bus struct {
	log  *slog.Logger
	wrap []Middleware

	mu     sync.RWMutex
	byType map[shared.EventType][]shared.EventHandler
	all    []shared.EventHandler
	closed bool
}

// NewBus wraps every subscribed handler with mw, first one outermost.
func NewBus(log *slog.Logger, mw ...Middleware) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:    log,
		wrap:   mw,
		byType: make(map[shared.EventType][]shared.EventHandler),
	}
}

func (b *Bus) Subscribe(t shared.EventType, h shared.EventHandler) error {
	return b.add(&t, h)
}

func (b *Bus) SubscribeAll(h shared.EventHandler) error {
	return b.add(nil, h)
}

func (b *Bus) add(t *shared.EventType, h shared.EventHandler) error {
	if h == nil {
		return errNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	h = Chain(h, b.wrap...)
	if t == nil {
		b.all = append(b.all, h)
	} else {
		b.byType[*t] = append(b.byType[*t], h)
	}
	return nil
}

func (b *Bus) Publish(e shared.Event) error {
	if e == nil {
		return errors.New("event cannot be nil")
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed, all := b.byType[e.EventType()], b.all
	b.mu.RUnlock()

	for _, hs := range [][]shared.EventHandler{typed, all} {
		for _, h := range hs {
			if err := h(e); err != nil {
				b.log.Error("event handler failed", "event_type", e.EventType(), "error", err)
			}
		}
	}
	return nil
}

// Close rejects further subscriptions and publishes. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// RedisClient is the Pub/Sub subset RedisBus needs.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage is one Pub/Sub delivery.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisConfig for NewRedisBus. Channel defaults to "gg:events" and
// InstanceID to a random UUID.
type RedisConfig struct {
	Client      RedisClient
	Channel     string
	InstanceID  string
	Logger      *slog.Logger
	Middlewares []Middleware
}

// RedisBus is a Bus that also mirrors every published event to a Redis
// channel so that other instances sharing the store can observe it. Local
// handlers get the typed event; events from other instances arrive as
// RemoteEvent.
type RedisBus struct {
	*Bus
	client   RedisClient
	channel  string
	instance string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewRedisBus(cfg RedisConfig) (*RedisBus, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = "gg:events"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		Bus:      NewBus(cfg.Logger, cfg.Middlewares...),
		client:   cfg.Client,
		channel:  cfg.Channel,
		instance: cfg.InstanceID,
		ctx:      ctx,
		cancel:   cancel,
	}

	msgs, err := cfg.Client.Subscribe(ctx, cfg.Channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Channel, err)
	}
	b.wg.Add(1)
	go b.receive(msgs)
	return b, nil
}

// Publish delivers locally even when Redis rejects the message.
func (b *RedisBus) Publish(e shared.Event) error {
	if e == nil {
		return errors.New("event cannot be nil")
	}
	if b.closed.Load() {
		return ErrEventBusClosed
	}

	env, err := shared.NewEventEnvelope(uuid.NewString(), e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data, err := json.Marshal(wireEnvelope{InstanceID: b.instance, EventEnvelope: env})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(b.ctx, b.channel, string(data)); err != nil {
		b.log.Error("redis publish failed", "event_type", e.EventType(), "error", err)
	}
	return b.Bus.Publish(e)
}

func (b *RedisBus) receive(msgs <-chan RedisMessage) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.log.Error("redis subscription error", "error", msg.Err)
				continue
			}
			var wire wireEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				b.log.Error("malformed remote event", "error", err)
				continue
			}
			if wire.InstanceID == b.instance {
				continue
			}
			_ = b.Bus.Publish(RemoteEvent{Envelope: wire.EventEnvelope})
		}
	}
}

// Close stops the subscriber and closes the client's subscriptions.
func (b *RedisBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()
	b.wg.Wait()
	_ = b.Bus.Close()
	return b.client.Close()
}

type wireEnvelope struct {
	InstanceID string `json:"instance_id"`
	shared.EventEnvelope
}

// RemoteEvent is an event published by another instance. Only the envelope
// survives the trip, so type switches on concrete event types skip it.
type RemoteEvent struct {
	Envelope shared.EventEnvelope
}

func (e RemoteEvent) EventType() shared.EventType { return e.Envelope.Type }
func (e RemoteEvent) AggregateID() string         { return e.Envelope.AggregateID }
func (e RemoteEvent) OccurredAt() time.Time       { return e.Envelope.Timestamp }

func (e RemoteEvent) Payload() map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(e.Envelope.Payload, &m)
	return m
}
