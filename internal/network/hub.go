package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/events"
	"github.com/ddanshin/MagnatTap/server/internal/platform/logger"
	"github.com/ddanshin/MagnatTap/server/internal/platform/metrics"
	"github.com/ddanshin/MagnatTap/server/internal/platform/optimization"
	"github.com/ddanshin/MagnatTap/server/internal/session"
)

// Hub maintains the set of active clients and fans global announcements out
// to them. Per-player responses never go through the hub; each client answers
// on its own send channel.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex

	sessions *session.Manager
	logger   *logger.Logger
	metrics  *metrics.Collector
	opt      *optimization.Config
}

// NewHub initializes a new WebSocket Hub.
func NewHub(sessions *session.Manager, log *logger.Logger, collector *metrics.Collector, opt *optimization.Config) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, opt.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		sessions:   sessions,
		logger:     log,
		metrics:    collector,
		opt:        opt,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("WebSocket client connected: " + client.userID)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected: " + client.userID)
			}
			h.mu.Unlock()
			h.sessions.Detach(ctx, client.userID)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent serializes a game event and sends it to every connected client.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	msg := ServerMessage{
		Type:      MsgTypeEvent,
		Timestamp: event.Timestamp.Unix(),
		Payload:   event,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize event for broadcast: " + err.Error())
		return
	}
	h.broadcast <- payload
}

// announceable reports whether an event is worth showing to everyone.
// Per-player state deltas are answered directly; only social moments fan out.
func announceable(t events.EventType) bool {
	switch t {
	case events.EventTypeLevelUp, events.EventTypeSessionStarted:
		return true
	default:
		return false
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new
// announceable events to all clients. The hub stays decoupled from the
// sessions' append path this way.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		pollInterval := time.NewTicker(200 * time.Millisecond)
		defer pollInterval.Stop()

		lastProcessed := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				allEvents := eventLog.Replay()
				if len(allEvents) <= lastProcessed {
					continue
				}
				for _, event := range allEvents[lastProcessed:] {
					if announceable(event.Type) {
						h.BroadcastEvent(event)
					}
				}
				lastProcessed = len(allEvents)
			}
		}
	}()
}
