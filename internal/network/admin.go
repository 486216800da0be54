// Package network - admin.go
// Operations API: event ledger replay, per-player recaps and the settings
// reload hook used by the backoffice after editing economy tunables.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/events"
	"github.com/ddanshin/MagnatTap/server/internal/infra/storage"
	"github.com/ddanshin/MagnatTap/server/internal/platform/logger"
	"github.com/ddanshin/MagnatTap/server/internal/session"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

// AdminAPI exposes the moderation and operations endpoints.
type AdminAPI struct {
	eventLog *events.EventLog
	recapper *storage.Recapper
	sessions *session.Manager
	provider *settings.Provider
	logger   *logger.Logger
}

// NewAdminAPI creates the admin endpoint handler.
func NewAdminAPI(el *events.EventLog, recapper *storage.Recapper, sessions *session.Manager, provider *settings.Provider, log *logger.Logger) *AdminAPI {
	return &AdminAPI{
		eventLog: el,
		recapper: recapper,
		sessions: sessions,
		provider: provider,
		logger:   log,
	}
}

// ReplayResponse is the API response for the event replay.
type ReplayResponse struct {
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleReplay returns the in-memory event history, optionally filtered.
// GET /api/admin/events?user_id=XXX&type=LEVEL_UP&limit=N
func (a *AdminAPI) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	eventType := r.URL.Query().Get("type")
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		limit, _ = strconv.Atoi(ls)
	}

	allEvents := a.eventLog.Replay()

	var filtered []events.GameEvent
	filterDesc := ""
	for _, e := range allEvents {
		if userID != "" && e.UserID != userID {
			continue
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		filtered = append(filtered, e)
	}
	if userID != "" {
		filterDesc = "user " + userID
	}
	if eventType != "" {
		if filterDesc != "" {
			filterDesc += ", "
		}
		filterDesc += "type " + eventType
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	response := ReplayResponse{
		TotalEvents: len(filtered),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleRecap returns a player's durable event recap from the database ledger.
// GET /api/admin/recap?user_id=XXX&since_hours=24
func (a *AdminAPI) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		a.jsonError(w, "Missing user_id", http.StatusBadRequest)
		return
	}

	sinceHours := 24
	if hs := r.URL.Query().Get("since_hours"); hs != "" {
		if v, err := strconv.Atoi(hs); err == nil && v > 0 {
			sinceHours = v
		}
	}
	since := time.Now().Add(-time.Duration(sinceHours) * time.Hour)

	recap, err := a.recapper.BuildRecap(r.Context(), userID, since)
	if err != nil {
		a.logger.Error("Recap build failed for " + userID + ": " + err.Error())
		a.jsonError(w, "Failed to build recap", http.StatusInternalServerError)
		return
	}

	a.jsonSuccess(w, map[string]interface{}{
		"user_id":      userID,
		"since":        since.Format(time.RFC3339),
		"total_events": len(recap),
		"events":       recap,
	})
}

// HandleStats returns aggregate event counts plus live session figures.
// GET /api/admin/stats
func (a *AdminAPI) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	allEvents := a.eventLog.Replay()

	counts := make(map[string]int)
	for _, e := range allEvents {
		counts[string(e.Type)]++
	}

	a.jsonSuccess(w, map[string]interface{}{
		"generated_at":  time.Now().Format(time.RFC3339),
		"live_sessions": a.sessions.Count(),
		"total_events":  len(allEvents),
		"by_type":       counts,
	})
}

// HandleSettingsReload re-reads the economy tunables from the database.
// Running sessions keep their engine-side values; new sessions pick the
// reloaded ones up.
// POST /api/admin/settings/reload
func (a *AdminAPI) HandleSettingsReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := a.provider.Refresh(r.Context()); err != nil {
		a.logger.Error("Settings reload failed: " + err.Error())
		a.jsonError(w, "Reload failed", http.StatusInternalServerError)
		return
	}

	a.eventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeSettingsReloaded,
		UserID:    "ADMIN",
	})
	a.logger.Event("SETTINGS_RELOADED", "ADMIN", "reload requested via API")

	a.jsonSuccess(w, map[string]string{"status": "ok"})
}

// RegisterRoutes sets up the admin API routes.
func (a *AdminAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/admin/events", a.HandleReplay)
	mux.HandleFunc("/api/admin/recap", a.HandleRecap)
	mux.HandleFunc("/api/admin/stats", a.HandleStats)
	mux.HandleFunc("/api/admin/settings/reload", a.HandleSettingsReload)
}

// jsonError sends an error response.
func (a *AdminAPI) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func (a *AdminAPI) jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
