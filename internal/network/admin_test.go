package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/catalog"
	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/events"
	"github.com/ddanshin/MagnatTap/server/internal/infra/storage"
	"github.com/ddanshin/MagnatTap/server/internal/platform/logger"
	"github.com/ddanshin/MagnatTap/server/internal/platform/metrics"
	"github.com/ddanshin/MagnatTap/server/internal/session"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

type memPlayerRepo struct {
	mu    sync.Mutex
	snaps map[string]player.Snapshot
}

func (f *memPlayerRepo) Get(ctx context.Context, userID string) (*player.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[userID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (f *memPlayerRepo) Upsert(ctx context.Context, userID string, snap player.Snapshot, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[userID] = snap
	return nil
}

func (f *memPlayerRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

type memEventRepo struct {
	records []storage.EventRecord
}

func (f *memEventRepo) Append(ctx context.Context, event storage.EventRecord) error {
	f.records = append(f.records, event)
	return nil
}

func (f *memEventRepo) GetByUserID(ctx context.Context, userID string) ([]storage.EventRecord, error) {
	return f.records, nil
}

func (f *memEventRepo) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]storage.EventRecord, error) {
	var out []storage.EventRecord
	for _, r := range f.records {
		if r.UserID == userID && r.Timestamp.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *memEventRepo) GetByEventType(ctx context.Context, eventType string) ([]storage.EventRecord, error) {
	return nil, nil
}

func newTestAdminAPI(eventLog *events.EventLog) *AdminAPI {
	manager := session.NewManager(session.Deps{
		Players:  &memPlayerRepo{snaps: make(map[string]player.Snapshot)},
		EventLog: eventLog,
		Settings: settings.NewProvider(nil),
		Catalog:  catalog.Default(),
		Logger:   logger.NewLogger(),
		Metrics:  metrics.NewCollector(),
	}, 5*time.Second)

	return NewAdminAPI(eventLog, storage.NewRecapper(&memEventRepo{}), manager, settings.NewProvider(nil), logger.NewLogger())
}

func TestHandleStatsCountsByType(t *testing.T) {
	eventLog := events.NewEventLog(nil)
	eventLog.Append(events.GameEvent{ID: "1", Type: events.EventTypeTap, UserID: "U1"})
	eventLog.Append(events.GameEvent{ID: "2", Type: events.EventTypeTap, UserID: "U2"})
	eventLog.Append(events.GameEvent{ID: "3", Type: events.EventTypeLevelUp, UserID: "U1"})

	api := newTestAdminAPI(eventLog)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	api.HandleStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		TotalEvents int            `json:"total_events"`
		ByType      map[string]int `json:"by_type"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.TotalEvents != 3 {
		t.Errorf("Expected 3 total events, got %d", body.TotalEvents)
	}
	if body.ByType["TAP"] != 2 || body.ByType["LEVEL_UP"] != 1 {
		t.Errorf("Unexpected counts: %+v", body.ByType)
	}
}

func TestHandleReplayFilters(t *testing.T) {
	eventLog := events.NewEventLog(nil)
	eventLog.Append(events.GameEvent{ID: "1", Type: events.EventTypeTap, UserID: "U1"})
	eventLog.Append(events.GameEvent{ID: "2", Type: events.EventTypeLevelUp, UserID: "U1"})
	eventLog.Append(events.GameEvent{ID: "3", Type: events.EventTypeTap, UserID: "U2"})

	api := newTestAdminAPI(eventLog)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/events?user_id=U1&type=TAP", nil)
	rec := httptest.NewRecorder()
	api.HandleReplay(rec, req)

	var body ReplayResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.TotalEvents != 1 {
		t.Fatalf("Expected 1 filtered event, got %d", body.TotalEvents)
	}
	if body.Events[0].ID != "1" {
		t.Errorf("Expected event 1, got %s", body.Events[0].ID)
	}
}

func TestHandleReplayRejectsWrongMethod(t *testing.T) {
	api := newTestAdminAPI(events.NewEventLog(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/events", nil)
	rec := httptest.NewRecorder()
	api.HandleReplay(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestHandleSettingsReloadAppendsEvent(t *testing.T) {
	eventLog := events.NewEventLog(nil)
	api := newTestAdminAPI(eventLog)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/settings/reload", nil)
	rec := httptest.NewRecorder()
	api.HandleSettingsReload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := len(eventLog.GetByType(events.EventTypeSettingsReloaded)); got != 1 {
		t.Errorf("Expected 1 reload event, got %d", got)
	}
}

func TestAnnounceableFiltersPerPlayerTraffic(t *testing.T) {
	if !announceable(events.EventTypeLevelUp) {
		t.Errorf("Expected level-ups broadcast")
	}
	if announceable(events.EventTypeTap) {
		t.Errorf("Expected taps kept per-player")
	}
	if announceable(events.EventTypeOfflineSync) {
		t.Errorf("Expected offline syncs kept per-player")
	}
}
