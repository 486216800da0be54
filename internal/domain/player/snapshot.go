package player

import "time"

// Snapshot is the persisted form of State. Every scalar is a pointer so that
// partial or older snapshots can be restored field by field: a missing field
// falls back to its default instead of invalidating the whole record.
type Snapshot struct {
	Balance           *float64            `json:"balance,omitempty"`
	PassiveIncome     *float64            `json:"passive_income,omitempty"`
	Energy            *EnergySnapshot     `json:"energy,omitempty"`
	Levels            []LevelTier         `json:"levels,omitempty"`
	TapValue          *float64            `json:"tap_value,omitempty"`
	TapMultiplier     *float64            `json:"tap_multiplier,omitempty"`
	IncomeBoost       *float64            `json:"income_boost,omitempty"`
	Boosts            map[BoostType]Boost `json:"boosts,omitempty"`
	Investments       []Investment        `json:"investments,omitempty"`
	Stats             *Stats              `json:"stats,omitempty"`
	LastCalculationAt *time.Time          `json:"last_calculation_at,omitempty"`
}

// EnergySnapshot mirrors Energy with optional fields.
type EnergySnapshot struct {
	Current     *float64   `json:"current,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	RegenRate   *float64   `json:"regen_rate,omitempty"`
	LastRegenAt *time.Time `json:"last_regen_at,omitempty"`
}

// FromSnapshot restores a State from a persisted snapshot, applying defaults
// per field. A nil snapshot yields a fresh default state. Boost entries with
// unknown types are dropped; malformed numeric fields simply keep the default.
func FromSnapshot(snap *Snapshot, d Defaults, now time.Time) *State {
	st := NewState(d, now)
	if snap == nil {
		return st
	}

	if snap.Balance != nil && *snap.Balance >= 0 {
		st.Balance = *snap.Balance
	}
	if snap.PassiveIncome != nil && *snap.PassiveIncome >= 0 {
		st.PassiveIncome = *snap.PassiveIncome
	}
	if e := snap.Energy; e != nil {
		if e.Max != nil && *e.Max > 0 {
			st.Energy.Max = *e.Max
		}
		if e.RegenRate != nil && *e.RegenRate > 0 {
			st.Energy.RegenRate = *e.RegenRate
		}
		if e.Current != nil && *e.Current >= 0 {
			st.Energy.Current = *e.Current
		}
		if st.Energy.Current > st.Energy.Max {
			st.Energy.Current = st.Energy.Max
		}
		if e.LastRegenAt != nil && !e.LastRegenAt.IsZero() {
			st.Energy.LastRegenAt = *e.LastRegenAt
		}
	}
	if len(snap.Levels) > 0 {
		st.Levels = append([]LevelTier(nil), snap.Levels...)
	}
	if snap.TapValue != nil && *snap.TapValue >= 0 {
		st.Multipliers.TapValue = *snap.TapValue
	}
	if snap.TapMultiplier != nil && *snap.TapMultiplier >= 1 {
		st.Multipliers.TapMultiplier = *snap.TapMultiplier
	}
	if snap.IncomeBoost != nil && *snap.IncomeBoost > 0 {
		st.Multipliers.IncomeBoost = *snap.IncomeBoost
	}
	for bt, b := range snap.Boosts {
		if !bt.Known() {
			continue
		}
		st.Boosts[bt] = b
	}
	if len(snap.Investments) > 0 {
		st.Investments = append([]Investment(nil), snap.Investments...)
	}
	if snap.Stats != nil {
		st.Stats = *snap.Stats
	}
	if snap.LastCalculationAt != nil && !snap.LastCalculationAt.IsZero() {
		st.LastCalculationAt = *snap.LastCalculationAt
	}
	return st
}

// ToSnapshot converts the live state into its persisted form.
func (s *State) ToSnapshot() Snapshot {
	balance := s.Balance
	passive := s.PassiveIncome
	cur := s.Energy.Current
	maxEnergy := s.Energy.Max
	regen := s.Energy.RegenRate
	regenAt := s.Energy.LastRegenAt
	tapValue := s.Multipliers.TapValue
	tapMult := s.Multipliers.TapMultiplier
	incomeBoost := s.Multipliers.IncomeBoost
	stats := s.Stats
	lastCalc := s.LastCalculationAt

	boosts := make(map[BoostType]Boost, len(s.Boosts))
	for bt, b := range s.Boosts {
		boosts[bt] = b
	}

	return Snapshot{
		Balance:       &balance,
		PassiveIncome: &passive,
		Energy: &EnergySnapshot{
			Current:     &cur,
			Max:         &maxEnergy,
			RegenRate:   &regen,
			LastRegenAt: &regenAt,
		},
		Levels:            append([]LevelTier(nil), s.Levels...),
		TapValue:          &tapValue,
		TapMultiplier:     &tapMult,
		IncomeBoost:       &incomeBoost,
		Boosts:            boosts,
		Investments:       append([]Investment(nil), s.Investments...),
		Stats:             &stats,
		LastCalculationAt: &lastCalc,
	}
}
