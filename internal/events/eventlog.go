// Package events provides the append-only activity log of the game server.
// Every user-visible state mutation leaves a record here; the websocket hub
// streams it to clients and the admin feed, storage writes it through.
package events

import (
	"math/rand"
	"sync"
	"time"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeTap                 EventType = "TAP"
	EventTypeInvestmentPurchased EventType = "INVESTMENT_PURCHASED"
	EventTypeBoostApplied        EventType = "BOOST_APPLIED"
	EventTypeBoostRemoved        EventType = "BOOST_REMOVED"
	EventTypeBoostExpired        EventType = "BOOST_EXPIRED"
	EventTypeOfflineSync         EventType = "OFFLINE_SYNC"
	EventTypeLevelUp             EventType = "LEVEL_UP"
	EventTypeSettingsReloaded    EventType = "SETTINGS_RELOADED"
	EventTypeSessionStarted      EventType = "SESSION_STARTED"
	EventTypeSessionClosed       EventType = "SESSION_CLOSED"
)

// GameEvent represents an immutable record of an action in the game.
// Engine ticks are deliberately NOT logged: at 10/s they would drown the log.
type GameEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of game events, optionally backed
// by a persister writing through to SQLite/PostgreSQL.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
// A persistence failure never blocks or rolls back the in-memory append.
func (el *EventLog) Append(event GameEvent) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.events = append(el.events, event)

	if el.persister != nil {
		// Write through to persistent storage off the caller's path.
		go func(e GameEvent) {
			_ = el.persister.Append(e)
		}(event)
	}
}

// GetByUser returns all events recorded for a specific player.
func (el *EventLog) GetByUser(userID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of one category.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns the full in-memory history of events.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.events
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomSuffix()
}

// randomSuffix generates a short random string.
func randomSuffix() string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 6)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
