// Package metrics provides observability for the game server.
// Collected per process, exported over HTTP for dashboards and load tests.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Gameplay metrics
	Taps             int64
	TapsBlocked      int64
	Purchases        int64
	PurchasesBlocked int64
	BoostsApplied    int64
	OfflineSyncs     int64

	// Persistence metrics
	StateWrites      int64
	StateWriteLatSum int64
	StateWriteLatMax int64
	StateWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordTap records a tap attempt; blocked means insufficient energy.
func (c *Collector) RecordTap(blocked bool) {
	if blocked {
		atomic.AddInt64(&c.TapsBlocked, 1)
		return
	}
	atomic.AddInt64(&c.Taps, 1)
}

// RecordPurchase records an investment purchase attempt.
func (c *Collector) RecordPurchase(blocked bool) {
	if blocked {
		atomic.AddInt64(&c.PurchasesBlocked, 1)
		return
	}
	atomic.AddInt64(&c.Purchases, 1)
}

// RecordBoost records a boost activation.
func (c *Collector) RecordBoost() {
	atomic.AddInt64(&c.BoostsApplied, 1)
}

// RecordOfflineSync records an offline catch-up run.
func (c *Collector) RecordOfflineSync() {
	atomic.AddInt64(&c.OfflineSyncs, 1)
}

// RecordStateWrite records a player snapshot write to the database.
func (c *Collector) RecordStateWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.StateWrites, 1)
	atomic.AddInt64(&c.StateWriteLatSum, int64(latency))

	if int64(latency) > atomic.LoadInt64(&c.StateWriteLatMax) {
		atomic.StoreInt64(&c.StateWriteLatMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.StateWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	stateWrites := atomic.LoadInt64(&c.StateWrites)

	var tickAvg, writeAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if stateWrites > 0 {
		writeAvg = float64(atomic.LoadInt64(&c.StateWriteLatSum)) / float64(stateWrites) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"gameplay": map[string]interface{}{
			"taps":              atomic.LoadInt64(&c.Taps),
			"taps_blocked":      atomic.LoadInt64(&c.TapsBlocked),
			"purchases":         atomic.LoadInt64(&c.Purchases),
			"purchases_blocked": atomic.LoadInt64(&c.PurchasesBlocked),
			"boosts_applied":    atomic.LoadInt64(&c.BoostsApplied),
			"offline_syncs":     atomic.LoadInt64(&c.OfflineSyncs),
		},

		"persistence": map[string]interface{}{
			"writes":           stateWrites,
			"avg_write_lat_ms": writeAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.StateWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.StateWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		fmt.Fprintf(w, "# HELP magnat_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE magnat_tick_count counter\n")
		fmt.Fprintf(w, "magnat_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP magnat_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE magnat_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "magnat_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP magnat_taps_total Total taps processed\n")
		fmt.Fprintf(w, "# TYPE magnat_taps_total counter\n")
		fmt.Fprintf(w, "magnat_taps_total{result=\"granted\"} %d\n", atomic.LoadInt64(&c.Taps))
		fmt.Fprintf(w, "magnat_taps_total{result=\"blocked\"} %d\n\n", atomic.LoadInt64(&c.TapsBlocked))

		fmt.Fprintf(w, "# HELP magnat_purchases_total Total investment purchases\n")
		fmt.Fprintf(w, "# TYPE magnat_purchases_total counter\n")
		fmt.Fprintf(w, "magnat_purchases_total{result=\"granted\"} %d\n", atomic.LoadInt64(&c.Purchases))
		fmt.Fprintf(w, "magnat_purchases_total{result=\"blocked\"} %d\n\n", atomic.LoadInt64(&c.PurchasesBlocked))

		fmt.Fprintf(w, "# HELP magnat_boosts_applied Total boosts activated\n")
		fmt.Fprintf(w, "# TYPE magnat_boosts_applied counter\n")
		fmt.Fprintf(w, "magnat_boosts_applied %d\n\n", atomic.LoadInt64(&c.BoostsApplied))

		fmt.Fprintf(w, "# HELP magnat_state_writes Total player state writes\n")
		fmt.Fprintf(w, "# TYPE magnat_state_writes counter\n")
		fmt.Fprintf(w, "magnat_state_writes %d\n\n", atomic.LoadInt64(&c.StateWrites))

		fmt.Fprintf(w, "# HELP magnat_state_write_errors Total player state write errors\n")
		fmt.Fprintf(w, "# TYPE magnat_state_write_errors counter\n")
		fmt.Fprintf(w, "magnat_state_write_errors %d\n\n", atomic.LoadInt64(&c.StateWriteErrors))

		fmt.Fprintf(w, "# HELP magnat_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE magnat_ws_connections gauge\n")
		fmt.Fprintf(w, "magnat_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP magnat_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE magnat_ws_messages_total counter\n")
		fmt.Fprintf(w, "magnat_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "magnat_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
