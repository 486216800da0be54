// Package storage - recap.go
// Builds the "welcome back" recap: what happened around a player's account
// since the last session, reconstructed from the event ledger.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Recapper turns the raw event ledger into a recap the mini-app can render.
type Recapper struct {
	eventRepo EventRepository
}

// NewRecapper creates a new recap builder.
func NewRecapper(eventRepo EventRepository) *Recapper {
	return &Recapper{eventRepo: eventRepo}
}

// RecapEvent is a simplified event for the welcome-back screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`
}

// BuildRecap returns a human-readable list of the player's events since the
// given time, oldest first.
func (r *Recapper) BuildRecap(ctx context.Context, userID string, since time.Time) ([]RecapEvent, error) {
	records, err := r.eventRepo.GetByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for recap: %w", err)
	}

	recap := make([]RecapEvent, 0, len(records))
	for _, rec := range records {
		recap = append(recap, RecapEvent{
			Timestamp: rec.Timestamp.Format(time.RFC3339),
			EventType: rec.EventType,
			Summary:   summarize(rec),
		})
	}
	return recap, nil
}

func summarize(rec EventRecord) string {
	switch rec.EventType {
	case "INVESTMENT_PURCHASED":
		if id, ok := rec.Payload["investment_id"].(string); ok {
			return "Purchased investment " + id
		}
		return "Purchased an investment"
	case "BOOST_APPLIED":
		if bt, ok := rec.Payload["boost"].(string); ok {
			return "Activated boost " + bt
		}
		return "Activated a boost"
	case "BOOST_EXPIRED":
		return "A boost expired"
	case "LEVEL_UP":
		if title, ok := rec.Payload["title"].(string); ok {
			return "Reached a new title: " + title
		}
		return "Leveled up"
	case "OFFLINE_SYNC":
		return "Offline income credited"
	default:
		return rec.EventType
	}
}
