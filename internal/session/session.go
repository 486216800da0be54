// Package session hosts one progression engine per connected player.
// The session owns the engine's single logical timeline: the 100ms tick loop,
// the ad-hoc player operations and the one-shot offline catch-up all run
// behind one mutex, so the engine itself never needs locking.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/catalog"
	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/engine"
	"github.com/ddanshin/MagnatTap/server/internal/events"
	"github.com/ddanshin/MagnatTap/server/internal/infra/cache"
	"github.com/ddanshin/MagnatTap/server/internal/infra/storage"
	"github.com/ddanshin/MagnatTap/server/internal/platform/logger"
	"github.com/ddanshin/MagnatTap/server/internal/platform/metrics"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

// ErrUnknownInvestment signals a purchase request for an id the catalog does not carry.
var ErrUnknownInvestment = errors.New("unknown investment")

// ErrLevelTooLow signals a purchase blocked by the entry's required level.
// Expected and frequent; no state is changed.
var ErrLevelTooLow = errors.New("level too low")

// clickMilestone spaces out TAP ledger entries; individual taps are far too
// frequent to record.
const clickMilestone = 1000

// Session drives one player's engine.
type Session struct {
	userID string

	mu  sync.Mutex
	eng *engine.Engine

	deps          Deps
	offlineReport engine.OfflineReport

	ticksPerPersist int
	cancel          context.CancelFunc
	done            chan struct{}
}

// Deps bundles the collaborators a session needs.
type Deps struct {
	Players  storage.PlayerRepository
	Cache    *cache.PlayerStateCache // optional
	EventLog *events.EventLog
	Settings *settings.Provider
	Catalog  *catalog.Catalog
	Logger   *logger.Logger
	Metrics  *metrics.Collector
	Clock    engine.Clock // nil means the system clock
}

// newSession loads the player's persisted state, runs the offline catch-up
// and starts the tick loop.
func newSession(ctx context.Context, userID string, deps Deps, snapshotEvery time.Duration) (*Session, error) {
	snap, err := deps.Players.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	cfg := deps.Settings.Current()
	eng := engine.New(snap, cfg, deps.Clock)

	s := &Session{
		userID:          userID,
		eng:             eng,
		deps:            deps,
		ticksPerPersist: int(snapshotEvery / engine.TickInterval),
		done:            make(chan struct{}),
	}
	if s.ticksPerPersist < 1 {
		s.ticksPerPersist = 1
	}

	report := eng.ProcessOfflineProgress()
	s.offlineReport = report
	deps.Metrics.RecordOfflineSync()
	deps.EventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeOfflineSync,
		UserID:    userID,
		Payload: map[string]interface{}{
			"elapsed_seconds": report.ElapsedSeconds,
			"income_granted":  report.IncomeGranted,
		},
	})
	deps.EventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeSessionStarted,
		UserID:    userID,
	})

	s.persist(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(loopCtx)

	return s, nil
}

// run is the session's tick loop. The cadence must stay at engine.TickInterval:
// income accrual is tick-count based and changing it changes the economy.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(engine.TickInterval)
	defer ticker.Stop()

	tickCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce(ctx)
			tickCount++
			if tickCount%s.ticksPerPersist == 0 {
				s.mu.Lock()
				s.persist(ctx)
				s.mu.Unlock()
			}
		}
	}
}

func (s *Session) tickOnce(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	before := s.eng.State()
	s.eng.Tick()
	after := s.eng.State()
	s.deps.Metrics.RecordTick(time.Since(started))

	s.emitBoostExpiries(before, after)
	s.emitLevelUp(before, after)
}

// Tap forwards a tap to the engine. Returns the reward (0 when blocked by
// insufficient energy) and the fresh state.
func (s *Session) Tap(ctx context.Context) (float64, player.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reward := s.eng.Tap()
	s.deps.Metrics.RecordTap(reward == 0)
	if reward == 0 {
		return 0, s.eng.State()
	}

	st := s.eng.State()
	if st.Stats.TotalClicks%clickMilestone == 0 {
		s.deps.EventLog.Append(events.GameEvent{
			ID:        events.GenerateEventID(),
			Timestamp: time.Now(),
			Type:      events.EventTypeTap,
			UserID:    s.userID,
			Payload: map[string]interface{}{
				"total_clicks": st.Stats.TotalClicks,
			},
		})
	}

	s.persist(ctx)
	return reward, st
}

// Purchase buys one unit of the catalog entry. The income contribution is
// computed here against the entry's growth curve; the engine only aggregates.
func (s *Session) Purchase(ctx context.Context, investmentID string) (player.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.deps.Catalog.Get(investmentID)
	if !ok {
		return s.eng.State(), ErrUnknownInvestment
	}

	st := s.eng.State()
	if !s.deps.Catalog.Available(entry, st.Level.Current) {
		s.deps.Metrics.RecordPurchase(true)
		return st, ErrLevelTooLow
	}

	cfg := s.deps.Settings.Current()
	level := catalog.NextLevelFor(&st, investmentID)
	income := s.deps.Catalog.IncomeFor(entry, level, cfg.IncomeMultiplier)

	if err := s.eng.PurchaseInvestment(entry, income); err != nil {
		s.deps.Metrics.RecordPurchase(true)
		return s.eng.State(), err
	}
	s.deps.Metrics.RecordPurchase(false)

	after := s.eng.State()
	s.deps.EventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeInvestmentPurchased,
		UserID:    s.userID,
		Payload: map[string]interface{}{
			"investment_id":  entry.ID,
			"level":          level,
			"income":         income,
			"passive_income": after.PassiveIncome,
		},
	})
	s.emitLevelUp(st, after)
	s.deps.Logger.Event("PURCHASE", s.userID, entry.ID)

	s.persist(ctx)
	return after, nil
}

// ApplyBoost activates a boost with its settings-defined duration.
// Returns false for unknown boost types; state is untouched then.
func (s *Session) ApplyBoost(ctx context.Context, bt player.BoostType) (player.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !bt.Known() {
		return s.eng.State(), false
	}

	cfg := s.deps.Settings.Current()
	boost, ok := cfg.Boosts[bt]
	if !ok || boost.Duration <= 0 {
		return s.eng.State(), false
	}

	s.eng.ApplyBoost(bt, boost.Duration)
	s.deps.Metrics.RecordBoost()
	s.deps.EventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeBoostApplied,
		UserID:    s.userID,
		Payload: map[string]interface{}{
			"boost":            string(bt),
			"duration_seconds": boost.Duration.Seconds(),
		},
	})

	s.persist(ctx)
	return s.eng.State(), true
}

// RemoveBoost clears a boost ahead of its end time.
func (s *Session) RemoveBoost(ctx context.Context, bt player.BoostType) player.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eng.RemoveBoost(bt)
	s.deps.EventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeBoostRemoved,
		UserID:    s.userID,
		Payload:   map[string]interface{}{"boost": string(bt)},
	})

	s.persist(ctx)
	return s.eng.State()
}

// State returns a copy of the current state bundle.
func (s *Session) State() player.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.State()
}

// OfflineReport returns the welcome-back summary computed at session start.
func (s *Session) OfflineReport() engine.OfflineReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offlineReport
}

// close stops the tick loop and persists the final state.
func (s *Session) close(ctx context.Context) {
	s.cancel()
	<-s.done

	s.mu.Lock()
	s.persist(ctx)
	s.mu.Unlock()

	s.deps.EventLog.Append(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeSessionClosed,
		UserID:    s.userID,
	})
}

// persist writes the state bundle through to storage and cache. The engine's
// in-memory transition is already complete; a write failure is logged and
// retried on the next persist, never rolled back. Callers hold s.mu.
func (s *Session) persist(ctx context.Context) {
	snap := s.eng.Snapshot()

	started := time.Now()
	err := s.deps.Players.Upsert(ctx, s.userID, snap, time.Now())
	s.deps.Metrics.RecordStateWrite(time.Since(started), err)
	if err != nil {
		s.deps.Logger.Error("Failed to persist state for " + s.userID + ": " + err.Error())
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetState(ctx, s.userID, snap); err != nil {
			s.deps.Logger.Warn("Failed to cache state for " + s.userID + ": " + err.Error())
		}
	}
}

func (s *Session) emitBoostExpiries(before, after player.State) {
	for bt, b := range before.Boosts {
		if b.Active && !after.Boosts[bt].Active {
			s.deps.EventLog.Append(events.GameEvent{
				ID:        events.GenerateEventID(),
				Timestamp: time.Now(),
				Type:      events.EventTypeBoostExpired,
				UserID:    s.userID,
				Payload:   map[string]interface{}{"boost": string(bt)},
			})
		}
	}
}

func (s *Session) emitLevelUp(before, after player.State) {
	if after.Level.Current > before.Level.Current {
		s.deps.EventLog.Append(events.GameEvent{
			ID:        events.GenerateEventID(),
			Timestamp: time.Now(),
			Type:      events.EventTypeLevelUp,
			UserID:    s.userID,
			Payload: map[string]interface{}{
				"level": after.Level.Current,
				"title": after.Level.Title,
			},
		})
		s.deps.Logger.Event("LEVEL_UP", s.userID, after.Level.Title)
	}
}
