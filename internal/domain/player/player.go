// Package player defines the core domain state for a single player session.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

import "time"

// BoostType identifies a time-limited tap multiplier.
// The set is closed; unknown values coming from old snapshots or the wire are no-ops.
type BoostType string

const (
	BoostTap3x BoostType = "tap3x"
	BoostTap5x BoostType = "tap5x"
)

// Factor returns the tap multiplier granted while the boost is active.
func (b BoostType) Factor() float64 {
	switch b {
	case BoostTap3x:
		return 3
	case BoostTap5x:
		return 5
	default:
		return 1
	}
}

// Known reports whether the boost type is part of the closed set.
func (b BoostType) Known() bool {
	switch b {
	case BoostTap3x, BoostTap5x:
		return true
	default:
		return false
	}
}

// AllBoostTypes lists every member of the closed boost set.
func AllBoostTypes() []BoostType {
	return []BoostType{BoostTap3x, BoostTap5x}
}

// CurveType identifies the growth curve of an investment's income.
type CurveType string

const (
	CurveLinear           CurveType = "linear"
	CurveParabolic        CurveType = "parabolic"
	CurveExponential      CurveType = "exponential"
	CurveInverseParabolic CurveType = "inverse_parabolic"
)

// Energy is the tap fuel pool. Current is clamped to [0, Max] by the engine.
type Energy struct {
	Current     float64   `json:"current"`
	Max         float64   `json:"max"`
	RegenRate   float64   `json:"regen_rate"` // units per second
	LastRegenAt time.Time `json:"last_regen_at"`
}

// LevelTier is one rung of the level ladder: reach the income threshold, earn the title.
type LevelTier struct {
	IncomeThreshold float64 `json:"income_threshold"`
	Title           string  `json:"title"`
}

// LevelState is the derived level position. Progress is 0-100 towards the next tier.
type LevelState struct {
	Current  int     `json:"current"` // 1-based
	Progress float64 `json:"progress"`
	Title    string  `json:"title"`
}

// Multipliers groups the reward scaling knobs.
// TapMultiplier reflects the most recently applied active boost, or 1.
type Multipliers struct {
	TapValue      float64 `json:"tap_value"`
	TapMultiplier float64 `json:"tap_multiplier"`
	IncomeBoost   float64 `json:"income_boost"`
}

// Boost is the activation record for one boost type.
type Boost struct {
	Active bool      `json:"active"`
	EndsAt time.Time `json:"ends_at,omitempty"`
}

// Investment is an owned asset. Immutable once created; contributes Income
// to the aggregate passive income for the rest of the session.
type Investment struct {
	ID          string    `json:"id"`
	Level       int       `json:"level"`
	Income      float64   `json:"income"`
	PurchasedAt time.Time `json:"purchased_at"`
	Curve       CurveType `json:"curve"`
}

// Stats are monotonically non-decreasing session counters.
type Stats struct {
	TotalClicks      int64   `json:"total_clicks"`
	TotalEarned      float64 `json:"total_earned"`
	MaxPassiveIncome float64 `json:"max_passive_income"`
}

// State is the full mutable game state of one player. It is owned exclusively
// by the progression engine; the host only reads it for persistence/display.
type State struct {
	Balance           float64             `json:"balance"`
	PassiveIncome     float64             `json:"passive_income"` // monthly rate
	Energy            Energy              `json:"energy"`
	Level             LevelState          `json:"level"`
	Levels            []LevelTier         `json:"levels"`
	Multipliers       Multipliers         `json:"multipliers"`
	Boosts            map[BoostType]Boost `json:"boosts"`
	Investments       []Investment        `json:"investments"`
	Stats             Stats               `json:"stats"`
	LastCalculationAt time.Time           `json:"last_calculation_at"`
}

// DefaultLevels returns the built-in level ladder, sorted ascending by threshold.
// The settings provider may replace it at session start; it is immutable afterwards.
func DefaultLevels() []LevelTier {
	return []LevelTier{
		{IncomeThreshold: 0, Title: "Пацан"},
		{IncomeThreshold: 500, Title: "Барыга"},
		{IncomeThreshold: 2500, Title: "Коммерсант"},
		{IncomeThreshold: 10000, Title: "Бизнесмен"},
		{IncomeThreshold: 50000, Title: "Магнат"},
		{IncomeThreshold: 250000, Title: "Олигарх"},
		{IncomeThreshold: 1000000, Title: "Легенда"},
	}
}

// Defaults holds the starting values a fresh State is built from.
type Defaults struct {
	TapValue    float64
	EnergyMax   float64
	EnergyRegen float64
	Levels      []LevelTier
}

// StandardDefaults returns the engine-side fallbacks used when the settings
// provider is unavailable.
func StandardDefaults() Defaults {
	return Defaults{
		TapValue:    1,
		EnergyMax:   1000,
		EnergyRegen: 3,
		Levels:      DefaultLevels(),
	}
}

// NewState creates a fresh player state at the given time.
func NewState(d Defaults, now time.Time) *State {
	levels := d.Levels
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	return &State{
		Balance:       0,
		PassiveIncome: 0,
		Energy: Energy{
			Current:     d.EnergyMax,
			Max:         d.EnergyMax,
			RegenRate:   d.EnergyRegen,
			LastRegenAt: now,
		},
		Level: LevelState{
			Current:  1,
			Progress: 0,
			Title:    levels[0].Title,
		},
		Levels: levels,
		Multipliers: Multipliers{
			TapValue:      d.TapValue,
			TapMultiplier: 1,
			IncomeBoost:   1,
		},
		Boosts:            make(map[BoostType]Boost),
		Investments:       nil,
		Stats:             Stats{},
		LastCalculationAt: now,
	}
}

// Clone returns a deep copy safe to hand to the host while the engine keeps mutating.
func (s *State) Clone() State {
	cp := *s
	cp.Levels = append([]LevelTier(nil), s.Levels...)
	cp.Investments = append([]Investment(nil), s.Investments...)
	cp.Boosts = make(map[BoostType]Boost, len(s.Boosts))
	for bt, b := range s.Boosts {
		cp.Boosts[bt] = b
	}
	return cp
}

// ActiveBoost reports whether any boost is currently flagged active.
func (s *State) ActiveBoost() bool {
	for _, b := range s.Boosts {
		if b.Active {
			return true
		}
	}
	return false
}
