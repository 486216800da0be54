// Package main is the entry point for the Magnat Tap game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/ddanshin/MagnatTap/server/internal/catalog"
	"github.com/ddanshin/MagnatTap/server/internal/events"
	"github.com/ddanshin/MagnatTap/server/internal/infra/cache"
	"github.com/ddanshin/MagnatTap/server/internal/infra/storage"
	"github.com/ddanshin/MagnatTap/server/internal/network"
	"github.com/ddanshin/MagnatTap/server/internal/platform/config"
	"github.com/ddanshin/MagnatTap/server/internal/platform/logger"
	"github.com/ddanshin/MagnatTap/server/internal/platform/metrics"
	"github.com/ddanshin/MagnatTap/server/internal/platform/optimization"
	"github.com/ddanshin/MagnatTap/server/internal/session"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

// EventPersisterAdapter translates domain events to storage records.
type EventPersisterAdapter struct {
	repo storage.EventRepository
}

func (a *EventPersisterAdapter) Append(event events.GameEvent) error {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payloadMap map[string]interface{}
	json.Unmarshal(payloadBytes, &payloadMap)

	record := storage.EventRecord{
		ID:        event.ID,
		UserID:    event.UserID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		Payload:   payloadMap,
	}
	return a.repo.Append(context.Background(), record)
}

type repositories struct {
	events   storage.EventRepository
	players  storage.PlayerRepository
	settings storage.SettingsRepository
}

func openDatabase(cfg config.Server, opt *optimization.Config, appLogger *logger.Logger) (*sql.DB, repositories, error) {
	switch cfg.DBDriver {
	case "postgres":
		appLogger.Info("Initializing PostgreSQL storage...")
		db, err := storage.InitPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, repositories{}, err
		}
		db.SetMaxOpenConns(opt.DBMaxOpenConns)
		db.SetMaxIdleConns(opt.DBMaxIdleConns)
		return db, repositories{
			events:   storage.NewPostgresEventRepository(db),
			players:  storage.NewPostgresPlayerRepository(db),
			settings: storage.NewPostgresSettingsRepository(db),
		}, nil
	default:
		appLogger.Info("Initializing SQLite database '" + cfg.SQLitePath + "'...")
		db, err := storage.InitSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, repositories{}, err
		}
		return db, repositories{
			events:   storage.NewSQLiteEventRepository(db),
			players:  storage.NewSQLitePlayerRepository(db),
			settings: storage.NewSQLiteSettingsRepository(db),
		}, nil
	}
}

func main() {
	log.Println("[MAGNAT-SERVER] Initializing Magnat Tap authoritative server...")

	appLogger := logger.NewLogger()

	var cfg config.Server
	if err := config.ParseEnv(&cfg); err != nil {
		appLogger.Error("Failed to parse environment: " + err.Error())
		os.Exit(1)
	}

	opt := optimization.DefaultConfig()

	db, repos, err := openDatabase(cfg, opt, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize storage: " + err.Error())
		os.Exit(1)
	}
	defer db.Close()

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(&EventPersisterAdapter{repo: repos.events})

	appLogger.Info("Loading economy settings...")
	provider := settings.NewProvider(repos.settings)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := provider.Refresh(ctx); err != nil {
		appLogger.Warn("Settings refresh failed, running on defaults: " + err.Error())
	}

	collector := metrics.NewCollector()
	gameCatalog := catalog.Default()

	stateCache := cache.NewPlayerStateCache(cache.NewMemoryClient())

	manager := session.NewManager(session.Deps{
		Players:  repos.players,
		Cache:    stateCache,
		EventLog: eventLog,
		Settings: provider,
		Catalog:  gameCatalog,
		Logger:   appLogger,
		Metrics:  collector,
	}, cfg.SnapshotEvery)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(manager, appLogger, collector, opt)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog)

	recapper := storage.NewRecapper(repos.events)
	adminAPI := network.NewAdminAPI(eventLog, recapper, manager, provider, appLogger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(ctx, hub, manager, w, r, appLogger)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ok",
			"live_sessions": manager.Count(),
		})
	})
	mux.HandleFunc("/metrics", collector.Handler())
	mux.HandleFunc("/metrics/prometheus", collector.PrometheusHandler())
	adminAPI.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		log.Println("[MAGNAT-SERVER] HTTP API & WS server listening on " + cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[MAGNAT-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[MAGNAT-SERVER] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown error: " + err.Error())
	}
	manager.StopAll(shutdownCtx)
	appLogger.Info("All sessions persisted. Bye.")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Telegram WebView origins vary; auth rides on user_id
	},
}

// serveWs handles websocket requests from the mini-app.
func serveWs(ctx context.Context, hub *network.Hub, manager *session.Manager, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	sess, _, err := manager.Attach(ctx, userID)
	if err != nil {
		log.Error("Failed to attach session for " + userID + ": " + err.Error())
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection for " + userID)
		return
	}

	client := network.NewClient(hub, conn, userID, sess)
	client.Register()

	go client.WritePump()
	go client.ReadPump()

	client.SendWelcome(sess.OfflineReport())
}
