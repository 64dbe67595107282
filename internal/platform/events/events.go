// Package events carries domain events from the workflow core to external
// presentation and reporting collaborators. The core publishes and does not
// care who subscribes.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of a domain event.
type Type string

const (
	// TypeSessionStateChanged is emitted after every committed workflow
	// transition.
	TypeSessionStateChanged Type = "session.state_changed"
	// TypeReferralCreated is emitted when a referral record is opened,
	// whether by an explicit transition or by the sync engine.
	TypeReferralCreated Type = "referral.created"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// SessionStateChanged is the payload for TypeSessionStateChanged.
type SessionStateChanged struct {
	SessionID int64     `json:"session_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReferralCreated is the payload for TypeReferralCreated.
type ReferralCreated struct {
	ReferralID int64  `json:"referral_id"`
	SessionID  int64  `json:"session_id"`
	Priority   string `json:"priority"`
	Specialty  string `json:"specialty,omitempty"`
}

// New wraps a payload into an Event envelope.
func New(eventType Type, payload interface{}) Event {
	data, _ := json.Marshal(payload)
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}
}

// Bus publishes domain events.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
}

// Handler consumes an event delivered by the in-process bus.
type Handler func(ctx context.Context, evt Event)

// MemoryBus is a thread-safe in-process Bus that dispatches synchronously to
// registered handlers.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for an event type.
func (b *MemoryBus) Subscribe(eventType Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish delivers the event to every handler registered for its type.
func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[evt.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, evt)
	}
	return nil
}

// NopBus discards every event. Used where no consumer is wired.
type NopBus struct{}

func (NopBus) Publish(context.Context, Event) error { return nil }
