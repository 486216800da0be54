// Package cache provides Redis-based caching for quick state reads.
// Cached snapshots feed the mini-app UI between persisted writes; the
// database remains the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

// RedisClient is an interface for Redis operations.
// This allows for easy mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// PlayerStateCache provides fast access to player state snapshots.
type PlayerStateCache struct {
	client     RedisClient
	expiration time.Duration
}

// NewPlayerStateCache creates a new player state cache instance.
func NewPlayerStateCache(client RedisClient) *PlayerStateCache {
	return &PlayerStateCache{
		client:     client,
		expiration: 15 * time.Minute, // Cache expires after 15 minutes
	}
}

// SetState caches the current snapshot of a player.
func (c *PlayerStateCache) SetState(ctx context.Context, userID string, snap player.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal player state: %w", err)
	}
	return c.client.Set(ctx, c.playerKey(userID), data, c.expiration)
}

// GetState retrieves the cached snapshot of a player.
func (c *PlayerStateCache) GetState(ctx context.Context, userID string) (*player.Snapshot, error) {
	data, err := c.client.Get(ctx, c.playerKey(userID))
	if err != nil {
		return nil, err // Cache miss or error
	}

	var snap player.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player state: %w", err)
	}
	return &snap, nil
}

// Invalidate removes the cached snapshot of a player.
func (c *PlayerStateCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.playerKey(userID))
}

// playerKey generates the Redis key for a player snapshot.
func (c *PlayerStateCache) playerKey(userID string) string {
	return fmt.Sprintf("magnat:player:%s", userID)
}
