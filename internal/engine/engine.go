// Package engine contains the progression engine: the heartbeat of Magnat Tap.
//
// ARCHITECTURAL RULE: one Engine owns the full mutable state of exactly one
// player session. It has no internal concurrency and never blocks; the host
// drives it from a single logical timeline (a fixed 100ms tick plus ad-hoc
// player operations) and must serialize access itself.
package engine

import (
	"errors"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/catalog"
	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/domain/rules"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

// TickInterval is the reference cadence the host drives Tick at. Passive
// income accrual is tick-count based, so changing the cadence changes the
// effective income rate of the whole economy. Keep it at 100ms.
const TickInterval = 100 * time.Millisecond

// ErrInsufficientFunds signals a purchase the balance cannot cover.
// Expected and frequent; no state is changed when it is returned.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Engine advances one player's economic state over real elapsed time.
type Engine struct {
	st    *player.State
	clock Clock
}

// New restores an engine from a persisted snapshot (nil for a fresh player),
// applying settings-derived defaults field by field. Regen and calculation
// timestamps missing from the snapshot are stamped with the current time.
func New(snap *player.Snapshot, cfg settings.Settings, clk Clock) *Engine {
	if clk == nil {
		clk = RealClock{}
	}
	return &Engine{
		st:    player.FromSnapshot(snap, cfg.PlayerDefaults(), clk.Now()),
		clock: clk,
	}
}

// Tick advances the session by one cadence step: regenerates energy against
// the wall clock, accrues the per-tick passive income fraction, expires boosts
// whose end time has passed and re-derives the level position.
func (e *Engine) Tick() {
	now := e.clock.Now()
	e.regenEnergy(now)
	e.st.Balance += rules.TickIncome(e.st.PassiveIncome)
	e.expireBoosts(now)
	e.deriveLevel()
}

// Tap consumes one energy unit for a currency reward. Returns the reward
// granted, 0 when blocked by insufficient energy (state untouched).
func (e *Engine) Tap() float64 {
	if e.st.Energy.Current < 1 {
		return 0
	}
	e.st.Energy.Current--
	reward := rules.TapReward(e.st.Multipliers.TapValue, e.st.Multipliers.TapMultiplier)
	e.st.Balance += reward
	e.st.Stats.TotalClicks++
	e.st.Stats.TotalEarned += reward
	return reward
}

// PurchaseInvestment debits the entry's cost and appends an owned investment
// with the pre-computed income contribution. The growth-curve math happened in
// the catalog; the engine only aggregates. No state changes on failure.
func (e *Engine) PurchaseInvestment(entry catalog.Entry, income float64) error {
	if e.st.Balance < entry.Cost {
		return ErrInsufficientFunds
	}
	e.st.Balance -= entry.Cost
	e.st.Investments = append(e.st.Investments, player.Investment{
		ID:          entry.ID,
		Level:       catalog.NextLevelFor(e.st, entry.ID),
		Income:      income,
		PurchasedAt: e.clock.Now(),
		Curve:       entry.Curve,
	})
	e.recomputePassiveIncome()
	e.deriveLevel()
	return nil
}

// ApplyBoost activates the named boost until now+duration and sets the tap
// multiplier to its factor. Policy is last-applied-wins: with two active
// boosts the multiplier reflects whichever was applied most recently, not the
// strongest. Unknown boost types are no-ops.
func (e *Engine) ApplyBoost(bt player.BoostType, duration time.Duration) {
	if !bt.Known() {
		return
	}
	e.st.Boosts[bt] = player.Boost{
		Active: true,
		EndsAt: e.clock.Now().Add(duration),
	}
	e.st.Multipliers.TapMultiplier = bt.Factor()
}

// RemoveBoost clears the named boost. When no boost of any type remains
// active the tap multiplier resets to 1.
func (e *Engine) RemoveBoost(bt player.BoostType) {
	if _, ok := e.st.Boosts[bt]; !ok {
		return
	}
	e.st.Boosts[bt] = player.Boost{}
	if !e.st.ActiveBoost() {
		e.st.Multipliers.TapMultiplier = 1
	}
}

// OfflineReport summarizes the catch-up performed at session start,
// for the host to display as a "welcome back" screen.
type OfflineReport struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	IncomeGranted  float64 `json:"income_granted"`
}

// ProcessOfflineProgress reconciles the time elapsed since the last
// calculation: grants floor-rounded offline passive income, refills energy to
// max (flat refill, not prorated), expires stale boosts and stamps the
// calculation time. Call once, right after New; a repeat call without elapsed
// time grants nothing.
func (e *Engine) ProcessOfflineProgress() OfflineReport {
	now := e.clock.Now()
	elapsed := now.Sub(e.st.LastCalculationAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	granted := rules.OfflineIncome(e.st.PassiveIncome, elapsed)
	e.st.Balance += granted

	e.st.Energy.Current = e.st.Energy.Max
	e.st.Energy.LastRegenAt = now

	e.expireBoosts(now)
	e.deriveLevel()
	e.st.LastCalculationAt = now

	return OfflineReport{ElapsedSeconds: elapsed, IncomeGranted: granted}
}

// State returns a deep copy of the current state bundle for persistence or display.
func (e *Engine) State() player.State {
	return e.st.Clone()
}

// Snapshot returns the persisted form of the current state.
func (e *Engine) Snapshot() player.Snapshot {
	return e.st.ToSnapshot()
}

func (e *Engine) regenEnergy(now time.Time) {
	elapsed := now.Sub(e.st.Energy.LastRegenAt).Seconds()
	if elapsed > 0 {
		e.st.Energy.Current += e.st.Energy.RegenRate * elapsed
		if e.st.Energy.Current > e.st.Energy.Max {
			e.st.Energy.Current = e.st.Energy.Max
		}
	}
	e.st.Energy.LastRegenAt = now
}

// expireBoosts is the self-healing expiry check: correctness never depends on
// a scheduled timer firing, every tick and the offline catch-up re-check.
func (e *Engine) expireBoosts(now time.Time) {
	for bt, b := range e.st.Boosts {
		if b.Active && !b.EndsAt.After(now) {
			e.st.Boosts[bt] = player.Boost{}
		}
	}
	if !e.st.ActiveBoost() {
		e.st.Multipliers.TapMultiplier = 1
	}
}

func (e *Engine) recomputePassiveIncome() {
	total := 0.0
	for _, inv := range e.st.Investments {
		total += inv.Income
	}
	e.st.PassiveIncome = total
	if total > e.st.Stats.MaxPassiveIncome {
		e.st.Stats.MaxPassiveIncome = total
	}
}

func (e *Engine) deriveLevel() {
	level, progress, title := rules.DeriveLevel(e.st.Levels, e.st.PassiveIncome)
	e.st.Level = player.LevelState{Current: level, Progress: progress, Title: title}
}
