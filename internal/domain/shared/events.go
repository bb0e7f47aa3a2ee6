// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one records something the progression model did.
const (
	// Progress events
	EventActionRecorded      EventType = "progress.action_recorded"
	EventXPGained            EventType = "progress.xp_gained"
	EventLevelUp             EventType = "progress.level_up"
	EventDailyStreakUpdated  EventType = "progress.streak_updated"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"
	EventChallengeCompleted  EventType = "progress.challenge_completed"
	EventChallengesReset     EventType = "progress.challenges_reset"

	// Notification events
	EventNotificationShown     EventType = "notification.shown"
	EventNotificationDismissed EventType = "notification.dismissed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Sequence      int       `json:"sequence"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a base event stamped with the operation clock.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// WithSequence sets the position of the event within one operation.
func (e BaseEvent) WithSequence(n int) BaseEvent {
	e.Sequence = n
	return e
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// WithCorrelation returns a copy of e carrying the correlation ID.
// Events of unknown types are returned unchanged.
func WithCorrelation(e Event, id string) Event {
	switch ev := e.(type) {
	case ActionRecordedEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	case XPGainedEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	case LevelUpEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	case StreakUpdatedEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	case AchievementUnlockedEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	case ChallengeCompletedEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	case ChallengesResetEvent:
		ev.BaseEvent = ev.WithCorrelationID(id)
		return ev
	default:
		return e
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ActionRecordedEvent is emitted once per accepted action.
type ActionRecordedEvent struct {
	BaseEvent
	Kind    string `json:"kind"`
	XP      int    `json:"xp"`
	Message string `json:"message"`
}

// Payload implements Event interface.
func (e ActionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":    e.Kind,
		"xp":      e.XP,
		"message": e.Message,
	}
}

// NewActionRecordedEvent creates a new ActionRecordedEvent.
func NewActionRecordedEvent(installationID, kind string, xp int, message string, at time.Time) ActionRecordedEvent {
	return ActionRecordedEvent{
		BaseEvent: NewBaseEvent(EventActionRecorded, installationID, at),
		Kind:      kind,
		XP:        xp,
		Message:   message,
	}
}

// XPGainedEvent is emitted for every XP award.
type XPGainedEvent struct {
	BaseEvent
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Reason   string `json:"reason"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"reason":    e.Reason,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(installationID string, amount, newTotal int, reason string, at time.Time) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, installationID, at),
		Amount:    amount,
		NewTotal:  newTotal,
		Reason:    reason,
	}
}

// LevelUpEvent is emitted when XP crosses a tier threshold.
type LevelUpEvent struct {
	BaseEvent
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	LevelName string `json:"level_name"`
	Icon      string `json:"icon"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"level_name": e.LevelName,
		"icon":       e.Icon,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(installationID string, oldLevel, newLevel int, name, icon string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, installationID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LevelName: name,
		Icon:      icon,
	}
}

// StreakUpdatedEvent is emitted when the first action of a day moves the streak.
type StreakUpdatedEvent struct {
	BaseEvent
	Streak        int  `json:"streak"`
	LongestStreak int  `json:"longest_streak"`
	WasReset      bool `json:"was_reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"streak":         e.Streak,
		"longest_streak": e.LongestStreak,
		"was_reset":      e.WasReset,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(installationID string, streak, longest int, wasReset bool, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventDailyStreakUpdated, installationID, at),
		Streak:        streak,
		LongestStreak: longest,
		WasReset:      wasReset,
	}
}

// AchievementUnlockedEvent is emitted once per achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"icon":           e.Icon,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(installationID, achievementID, name, icon string, xpReward int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, installationID, at),
		AchievementID: achievementID,
		Name:          name,
		Icon:          icon,
		XPReward:      xpReward,
	}
}

// ChallengeCompletedEvent is emitted when a challenge reaches its target.
type ChallengeCompletedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Scope       string `json:"scope"`
	XPReward    int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"name":         e.Name,
		"icon":         e.Icon,
		"scope":        e.Scope,
		"xp_reward":    e.XPReward,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(installationID, challengeID, name, icon, scope string, xpReward int, at time.Time) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeCompleted, installationID, at),
		ChallengeID: challengeID,
		Name:        name,
		Icon:        icon,
		Scope:       scope,
		XPReward:    xpReward,
	}
}

// ChallengesResetEvent is emitted when a scope rolls over to a new period.
type ChallengesResetEvent struct {
	BaseEvent
	Scope  string `json:"scope"`
	Period string `json:"period"`
}

// Payload implements Event interface.
func (e ChallengesResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scope":  e.Scope,
		"period": e.Period,
	}
}

// NewChallengesResetEvent creates a new ChallengesResetEvent.
func NewChallengesResetEvent(installationID, scope, period string, at time.Time) ChallengesResetEvent {
	return ChallengesResetEvent{
		BaseEvent: NewBaseEvent(EventChallengesReset, installationID, at),
		Scope:     scope,
		Period:    period,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event payload into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	}
	if c, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = c.Correlation()
	}
	return env, nil
}

// Correlation returns the correlation ID.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
