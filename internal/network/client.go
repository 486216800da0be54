package network

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/engine"
	"github.com/ddanshin/MagnatTap/server/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Server-to-client message types.
const (
	MsgTypeWelcome   = "WELCOME"
	MsgTypeState     = "STATE"
	MsgTypeTapResult = "TAP_RESULT"
	MsgTypeEvent     = "EVENT"
	MsgTypeError     = "ERROR"
)

// Client-to-server action types.
const (
	ActionTap           = "TAP"
	ActionBuyInvestment = "BUY_INVESTMENT"
	ActionApplyBoost    = "APPLY_BOOST"
	ActionRemoveBoost   = "REMOVE_BOOST"
	ActionGetState      = "GET_STATE"
)

// PlayerAction represents an incoming command from the mini-app frontend.
type PlayerAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the envelope for everything sent back to the frontend.
type ServerMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Client represents one authenticated WebSocket connection bound to a session.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	sess   *session.Session

	// per-second action window
	windowStart time.Time
	windowCount int
}

// NewClient creates a new WebSocket client bound to the user's session.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, sess *session.Session) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.opt.ClientSendBuffer),
		userID: userID,
		sess:   sess,
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// SendWelcome pushes the initial state plus the offline catch-up summary.
func (c *Client) SendWelcome(report engine.OfflineReport) {
	st := c.sess.State()
	c.reply(MsgTypeWelcome, map[string]interface{}{
		"state":           st,
		"offline_seconds": report.ElapsedSeconds,
		"offline_income":  report.IncomeGranted,
	})
}

// ReadPump pumps messages from the websocket connection into the session.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warn("WebSocket read error for " + c.userID + ": " + err.Error())
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Error("Failed to parse PlayerAction from " + c.userID + ": " + err.Error())
			c.replyError("BAD_REQUEST", "malformed action")
			continue
		}

		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	if !c.allowAction() {
		c.hub.logger.Warn("Rate limit exceeded for " + c.userID)
		c.replyError("RATE_LIMITED", "too many actions")
		return
	}

	ctx := context.Background()

	switch action.Type {
	case ActionTap:
		c.handleTap(ctx)
	case ActionBuyInvestment:
		c.handleBuyInvestment(ctx, action.Payload)
	case ActionApplyBoost:
		c.handleApplyBoost(ctx, action.Payload)
	case ActionRemoveBoost:
		c.handleRemoveBoost(ctx, action.Payload)
	case ActionGetState:
		c.replyState(c.sess.State())
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: " + action.Type)
		c.replyError("UNKNOWN_ACTION", action.Type)
	}
}

// allowAction enforces the per-second action budget. Taps arrive in bursts,
// so the window resets rather than leaks.
func (c *Client) allowAction() bool {
	now := time.Now()
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	return c.windowCount <= c.hub.opt.MaxActionsPerSecond
}

func (c *Client) handleTap(ctx context.Context) {
	reward, st := c.sess.Tap(ctx)
	c.reply(MsgTypeTapResult, map[string]interface{}{
		"reward":  reward,
		"granted": reward > 0,
		"balance": st.Balance,
		"energy":  st.Energy.Current,
	})
}

func (c *Client) handleBuyInvestment(ctx context.Context, rawPayload []byte) {
	var parsed struct {
		InvestmentID string `json:"investment_id"`
	}
	if err := json.Unmarshal(rawPayload, &parsed); err != nil || parsed.InvestmentID == "" {
		c.replyError("BAD_REQUEST", "missing investment_id")
		return
	}

	st, err := c.sess.Purchase(ctx, parsed.InvestmentID)
	switch {
	case errors.Is(err, session.ErrUnknownInvestment):
		c.replyError("UNKNOWN_INVESTMENT", parsed.InvestmentID)
	case errors.Is(err, session.ErrLevelTooLow):
		c.replyError("LEVEL_TOO_LOW", parsed.InvestmentID)
	case errors.Is(err, engine.ErrInsufficientFunds):
		c.replyError("INSUFFICIENT_FUNDS", parsed.InvestmentID)
	case err != nil:
		c.hub.metrics.RecordWSError()
		c.replyError("INTERNAL", "purchase failed")
	default:
		c.replyState(st)
	}
}

func (c *Client) handleApplyBoost(ctx context.Context, rawPayload []byte) {
	var parsed struct {
		Boost string `json:"boost"`
	}
	if err := json.Unmarshal(rawPayload, &parsed); err != nil || parsed.Boost == "" {
		c.replyError("BAD_REQUEST", "missing boost")
		return
	}

	st, ok := c.sess.ApplyBoost(ctx, player.BoostType(parsed.Boost))
	if !ok {
		c.replyError("UNKNOWN_BOOST", parsed.Boost)
		return
	}
	c.replyState(st)
}

func (c *Client) handleRemoveBoost(ctx context.Context, rawPayload []byte) {
	var parsed struct {
		Boost string `json:"boost"`
	}
	if err := json.Unmarshal(rawPayload, &parsed); err != nil || parsed.Boost == "" {
		c.replyError("BAD_REQUEST", "missing boost")
		return
	}

	st := c.sess.RemoveBoost(ctx, player.BoostType(parsed.Boost))
	c.replyState(st)
}

func (c *Client) replyState(st player.State) {
	c.reply(MsgTypeState, st)
}

func (c *Client) replyError(code, detail string) {
	c.reply(MsgTypeError, map[string]string{"code": code, "detail": detail})
}

// reply queues a message on the client's own channel. A full channel means a
// peer too slow to keep up; the message is dropped and the write pump's ping
// timeout will reap the connection.
func (c *Client) reply(msgType string, payload interface{}) {
	data, err := json.Marshal(ServerMessage{
		Type:      msgType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("Failed to serialize reply for " + c.userID + ": " + err.Error())
		return
	}
	select {
	case c.send <- data:
		c.hub.metrics.RecordWSMessage(false)
	default:
		c.hub.metrics.RecordWSError()
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
