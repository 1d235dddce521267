package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Leveling event types.
const (
	// EventNewLevel is published when a member crosses the XP threshold.
	EventNewLevel EventType = "leveling.new_level"

	// Mutation events, published after every successful write.
	EventXPAdded         EventType = "leveling.xp_added"
	EventXPSubtracted    EventType = "leveling.xp_subtracted"
	EventXPSet           EventType = "leveling.xp_set"
	EventLevelAdded      EventType = "leveling.level_added"
	EventLevelSubtracted EventType = "leveling.level_subtracted"
	EventLevelSet        EventType = "leveling.level_set"
)

// AllEventTypes lists every event type the engine can publish.
func AllEventTypes() []EventType {
	return []EventType{
		EventNewLevel,
		EventXPAdded,
		EventXPSubtracted,
		EventXPSet,
		EventLevelAdded,
		EventLevelSubtracted,
		EventLevelSet,
	}
}

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
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventID returns the unique ID of this occurrence.
func (e BaseEvent) EventID() string {
	return e.ID
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

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// MemberAggregateID is the aggregate ID used by all member events.
func MemberAggregateID(guildID, memberID string) string {
	return guildID + "/" + memberID
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// NewLevelEvent is emitted when a member levels up.
type NewLevelEvent struct {
	BaseEvent
	GuildID  string `json:"guild_id"`
	MemberID string `json:"member_id"`
	Level    int    `json:"level"`
}

// Payload implements Event interface.
func (e NewLevelEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":  e.GuildID,
		"member_id": e.MemberID,
		"level":     e.Level,
	}
}

// NewNewLevelEvent creates a new NewLevelEvent.
func NewNewLevelEvent(guildID, memberID string, level int) NewLevelEvent {
	return NewLevelEvent{
		BaseEvent: NewBaseEvent(EventNewLevel, MemberAggregateID(guildID, memberID)),
		GuildID:   guildID,
		MemberID:  memberID,
		Level:     level,
	}
}

// MutationEvent is emitted after an add/subtract/set write. Old and New carry
// the value of the mutated property before and after the write.
type MutationEvent struct {
	BaseEvent
	GuildID  string `json:"guild_id"`
	MemberID string `json:"member_id"`
	Amount   int    `json:"amount"`
	Old      int    `json:"old"`
	New      int    `json:"new"`
}

// Payload implements Event interface.
func (e MutationEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"guild_id":  e.GuildID,
		"member_id": e.MemberID,
		"amount":    e.Amount,
		"old":       e.Old,
		"new":       e.New,
	}
}

// NewMutationEvent creates a new MutationEvent of the given type.
func NewMutationEvent(eventType EventType, guildID, memberID string, amount, oldValue, newValue int) MutationEvent {
	return MutationEvent{
		BaseEvent: NewBaseEvent(eventType, MemberAggregateID(guildID, memberID)),
		GuildID:   guildID,
		MemberID:  memberID,
		Amount:    amount,
		Old:       oldValue,
		New:       newValue,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type and returns
	// an ID that can be passed to Unsubscribe.
	Subscribe(eventType EventType, handler EventHandler) (string, error)

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) (string, error)

	// Once registers a handler that is removed after its first delivery.
	Once(eventType EventType, handler EventHandler) (string, error)

	// Unsubscribe removes a handler. Unknown IDs are ignored.
	Unsubscribe(id string) bool
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
