// Package settings supplies the tunable game economy parameters.
// Values are held in an explicitly passed Provider with an explicit Refresh,
// never in module-level state; engine-side defaults apply whenever the backing
// store is unavailable or a key is missing/malformed.
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

// BoostSettings describes the purchase terms of one boost type.
type BoostSettings struct {
	Cost     float64
	Duration time.Duration
}

// Settings groups every tunable the engine and its host consume.
type Settings struct {
	TapValue             float64
	EnergyMax            float64
	EnergyRegenPerSecond float64
	IncomeMultiplier     float64
	ExperienceMultiplier float64
	Boosts               map[player.BoostType]BoostSettings
	Levels               []player.LevelTier
}

// Default returns the engine-side fallback settings.
func Default() Settings {
	return Settings{
		TapValue:             1,
		EnergyMax:            1000,
		EnergyRegenPerSecond: 3,
		IncomeMultiplier:     1,
		ExperienceMultiplier: 1,
		Boosts: map[player.BoostType]BoostSettings{
			player.BoostTap3x: {Cost: 5000, Duration: 5 * time.Minute},
			player.BoostTap5x: {Cost: 25000, Duration: 5 * time.Minute},
		},
		Levels: player.DefaultLevels(),
	}
}

// PlayerDefaults converts the settings into the starting values for a fresh state.
func (s Settings) PlayerDefaults() player.Defaults {
	return player.Defaults{
		TapValue:    s.TapValue,
		EnergyMax:   s.EnergyMax,
		EnergyRegen: s.EnergyRegenPerSecond,
		Levels:      append([]player.LevelTier(nil), s.Levels...),
	}
}

// Store is the key/value backend the provider refreshes from.
// internal/infra/storage.SettingsRepository satisfies it.
type Store interface {
	All(ctx context.Context) (map[string]string, error)
}

// Provider holds the current settings and refreshes them on demand.
type Provider struct {
	mu      sync.RWMutex
	store   Store
	current Settings
}

// NewProvider creates a provider starting from defaults. The store may be nil,
// in which case Refresh is a no-op and defaults stay in effect.
func NewProvider(store Store) *Provider {
	return &Provider{
		store:   store,
		current: Default(),
	}
}

// Current returns a copy of the active settings.
func (p *Provider) Current() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone()
}

// Refresh reloads every known key from the store. Unknown keys are ignored,
// malformed values keep their previous setting; only a store failure is an error.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	values, err := p.store.All(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.current.clone()
	for key, value := range values {
		applySetting(&next, key, value)
	}
	p.current = next
	return nil
}

// Invalidate resets the provider back to defaults. The next Refresh rebuilds
// from the store on top of them.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = Default()
}

func (s Settings) clone() Settings {
	cp := s
	cp.Boosts = make(map[player.BoostType]BoostSettings, len(s.Boosts))
	for bt, b := range s.Boosts {
		cp.Boosts[bt] = b
	}
	cp.Levels = append([]player.LevelTier(nil), s.Levels...)
	return cp
}

func applySetting(target *Settings, key, value string) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "tap_value":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 0 {
			target.TapValue = v
		}
	case "energy_max":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			target.EnergyMax = v
		}
	case "energy_regen_per_second":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			target.EnergyRegenPerSecond = v
		}
	case "income_multiplier":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			target.IncomeMultiplier = v
		}
	case "experience_multiplier":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			target.ExperienceMultiplier = v
		}
	case "boost_tap3x_cost":
		applyBoostCost(target, player.BoostTap3x, value)
	case "boost_tap5x_cost":
		applyBoostCost(target, player.BoostTap5x, value)
	case "boost_tap3x_duration_seconds":
		applyBoostDuration(target, player.BoostTap3x, value)
	case "boost_tap5x_duration_seconds":
		applyBoostDuration(target, player.BoostTap5x, value)
	}
}

func applyBoostCost(target *Settings, bt player.BoostType, value string) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 {
		return
	}
	b := target.Boosts[bt]
	b.Cost = v
	target.Boosts[bt] = b
}

func applyBoostDuration(target *Settings, bt player.BoostType, value string) {
	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		return
	}
	b := target.Boosts[bt]
	b.Duration = time.Duration(v) * time.Second
	target.Boosts[bt] = b
}
