// Package storage - postgres.go
// PostgreSQL implementations of the repositories, for deployments where the
// mini-app backend shares a database with the admin back-office.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// InitPostgres opens a PostgreSQL connection and creates the schemas.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	if err := createPostgresSchemas(db); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createPostgresSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS players (
			user_id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// PostgresEventRepository implements EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Append(ctx context.Context, event EventRecord) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, user_id, timestamp, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.Timestamp, event.EventType, payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *PostgresEventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var payloadBytes []byte
		err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.EventType, &payloadBytes)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadBytes, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *PostgresEventRepository) GetByUserID(ctx context.Context, userID string) ([]EventRecord, error) {
	query := `SELECT id, user_id, timestamp, event_type, payload FROM events WHERE user_id = $1 ORDER BY timestamp ASC`
	return r.queryEvents(ctx, query, userID)
}

func (r *PostgresEventRepository) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]EventRecord, error) {
	query := `SELECT id, user_id, timestamp, event_type, payload FROM events WHERE user_id = $1 AND timestamp > $2 ORDER BY timestamp ASC`
	return r.queryEvents(ctx, query, userID, since)
}

func (r *PostgresEventRepository) GetByEventType(ctx context.Context, eventType string) ([]EventRecord, error) {
	query := `SELECT id, user_id, timestamp, event_type, payload FROM events WHERE event_type = $1 ORDER BY timestamp ASC`
	return r.queryEvents(ctx, query, eventType)
}

// PostgresPlayerRepository implements PlayerRepository using PostgreSQL.
type PostgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) *PostgresPlayerRepository {
	return &PostgresPlayerRepository{db: db}
}

func (r *PostgresPlayerRepository) Get(ctx context.Context, userID string) (*player.Snapshot, error) {
	var stateBytes []byte
	query := `SELECT state FROM players WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&stateBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player state: %w", err)
	}

	var snap player.Snapshot
	if err := json.Unmarshal(stateBytes, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode player state: %w", err)
	}
	return &snap, nil
}

func (r *PostgresPlayerRepository) Upsert(ctx context.Context, userID string, snap player.Snapshot, updatedAt time.Time) error {
	stateBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal player state: %w", err)
	}

	query := `
		INSERT INTO players (user_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query, userID, stateBytes, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert player state: %w", err)
	}
	return nil
}

func (r *PostgresPlayerRepository) ListUserIDs(ctx context.Context) ([]string, error) {
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

// PostgresSettingsRepository implements SettingsRepository using PostgreSQL.
type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) All(ctx context.Context) (map[string]string, error) {
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

func (r *PostgresSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}
