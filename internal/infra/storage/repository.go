// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

// EventRecord mirrors the domain event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type EventRecord struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"user_id" db:"user_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event EventRecord) error

	// GetByUserID retrieves all events recorded for a player, oldest first.
	GetByUserID(ctx context.Context, userID string) ([]EventRecord, error)

	// GetByUserSince retrieves a player's events after the given time.
	GetByUserSince(ctx context.Context, userID string, since time.Time) ([]EventRecord, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, eventType string) ([]EventRecord, error)
}

// PlayerRepository stores the full per-player state bundle as an opaque
// record keyed by the Telegram user identity.
type PlayerRepository interface {
	// Get retrieves a player's persisted snapshot. Returns (nil, nil) when
	// the player has no record yet.
	Get(ctx context.Context, userID string) (*player.Snapshot, error)

	// Upsert writes the player's state bundle.
	Upsert(ctx context.Context, userID string, snap player.Snapshot, updatedAt time.Time) error

	// ListUserIDs returns every known player id (admin back-office listing).
	ListUserIDs(ctx context.Context) ([]string, error)
}

// SettingsRepository is the key/value store behind the settings provider.
type SettingsRepository interface {
	// All returns every stored key/value pair.
	All(ctx context.Context) (map[string]string, error)

	// Set writes one key/value pair.
	Set(ctx context.Context, key, value string) error
}
