package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event EventRecord) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, user_id, timestamp, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.Timestamp, event.EventType, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var payloadStr string
		err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.EventType, &payloadStr)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByUserID(ctx context.Context, userID string) ([]EventRecord, error) {
	query := `SELECT id, user_id, timestamp, event_type, payload FROM events WHERE user_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, userID)
}

func (r *SQLiteEventRepository) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]EventRecord, error) {
	query := `SELECT id, user_id, timestamp, event_type, payload FROM events WHERE user_id = ? AND timestamp > ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, userID, since)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, eventType string) ([]EventRecord, error) {
	query := `SELECT id, user_id, timestamp, event_type, payload FROM events WHERE event_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, eventType)
}

// ---------------------------------------------------------
// SQLitePlayerRepository
// ---------------------------------------------------------

// SQLitePlayerRepository stores the full player state bundle as a JSON
// document keyed by the Telegram user id.
type SQLitePlayerRepository struct {
	db *sql.DB
}

func NewSQLitePlayerRepository(db *sql.DB) *SQLitePlayerRepository {
	return &SQLitePlayerRepository{db: db}
}

func (r *SQLitePlayerRepository) Get(ctx context.Context, userID string) (*player.Snapshot, error) {
	var stateStr string
	query := `SELECT state FROM players WHERE user_id = ?`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&stateStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player state: %w", err)
	}

	var snap player.Snapshot
	if err := json.Unmarshal([]byte(stateStr), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode player state: %w", err)
	}
	return &snap, nil
}

func (r *SQLitePlayerRepository) Upsert(ctx context.Context, userID string, snap player.Snapshot, updatedAt time.Time) error {
	stateBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal player state: %w", err)
	}

	query := `
		INSERT INTO players (user_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			state=excluded.state,
			updated_at=excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query, userID, string(stateBytes), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert player state: %w", err)
	}
	return nil
}

func (r *SQLitePlayerRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM players ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---------------------------------------------------------
// SQLiteSettingsRepository
// ---------------------------------------------------------

type SQLiteSettingsRepository struct {
	db *sql.DB
}

func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

func (r *SQLiteSettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

func (r *SQLiteSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, key, value, time.Now())
	return err
}
