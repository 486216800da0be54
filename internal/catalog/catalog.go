// Package catalog holds the static investment reference data.
// The catalog is read-only for the engine: it evaluates growth curves and hands
// a pre-computed income value to a purchase, the engine only aggregates.
package catalog

import (
	"sort"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/domain/rules"
)

// Entry is one purchasable investment definition.
type Entry struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Category      string           `json:"category"`
	Cost          float64          `json:"cost"`
	BaseIncome    float64          `json:"base_income"` // monthly rate at level 1, before curve
	Multiplier    float64          `json:"multiplier"`
	RequiredLevel int              `json:"required_level"`
	BonusPercent  float64          `json:"bonus_percent,omitempty"`
	Curve         player.CurveType `json:"curve"`
}

// Catalog is an indexed, immutable set of entries.
type Catalog struct {
	entries map[string]Entry
	order   []string
}

// New builds a catalog from the given entries. Later duplicates win.
func New(entries []Entry) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, seen := c.entries[e.ID]; !seen {
			c.order = append(c.order, e.ID)
		}
		c.entries[e.ID] = e
	}
	return c
}

// Default returns the built-in investment set. In production the admin
// back-office owns these records; here they are seed data.
func Default() *Catalog {
	return New([]Entry{
		{ID: "shaurma_stand", Name: "Ларёк с шаурмой", Category: "street", Cost: 100, BaseIncome: 150, Multiplier: 1.0, RequiredLevel: 1, Curve: player.CurveLinear},
		{ID: "car_wash", Name: "Автомойка", Category: "street", Cost: 750, BaseIncome: 900, Multiplier: 1.1, RequiredLevel: 1, Curve: player.CurveLinear},
		{ID: "market_stall", Name: "Точка на рынке", Category: "street", Cost: 2500, BaseIncome: 2600, Multiplier: 1.2, RequiredLevel: 2, Curve: player.CurveParabolic},
		{ID: "taxi_fleet", Name: "Таксопарк", Category: "transport", Cost: 10000, BaseIncome: 8000, Multiplier: 1.15, RequiredLevel: 2, Curve: player.CurveLinear},
		{ID: "truck_logistics", Name: "Грузоперевозки", Category: "transport", Cost: 40000, BaseIncome: 24000, Multiplier: 1.25, RequiredLevel: 3, BonusPercent: 5, Curve: player.CurveParabolic},
		{ID: "apartment_rent", Name: "Квартира под аренду", Category: "realty", Cost: 120000, BaseIncome: 60000, Multiplier: 1.1, RequiredLevel: 3, Curve: player.CurveInverseParabolic},
		{ID: "office_center", Name: "Офисный центр", Category: "realty", Cost: 600000, BaseIncome: 220000, Multiplier: 1.2, RequiredLevel: 4, BonusPercent: 10, Curve: player.CurveInverseParabolic},
		{ID: "mining_rig", Name: "Майнинг-ферма", Category: "crypto", Cost: 300000, BaseIncome: 90000, Multiplier: 1.5, RequiredLevel: 4, Curve: player.CurveExponential},
		{ID: "token_fund", Name: "Крипто-фонд", Category: "crypto", Cost: 2000000, BaseIncome: 400000, Multiplier: 1.35, RequiredLevel: 5, BonusPercent: 15, Curve: player.CurveExponential},
		{ID: "oil_shares", Name: "Акции нефтянки", Category: "stocks", Cost: 5000000, BaseIncome: 1200000, Multiplier: 1.2, RequiredLevel: 6, Curve: player.CurveParabolic},
	})
}

// Get returns the entry with the given id.
func (c *Catalog) Get(id string) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// All returns every entry in insertion order.
func (c *Catalog) All() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// ByCategory returns the entries of one category, cheapest first.
func (c *Catalog) ByCategory(category string) []Entry {
	var out []Entry
	for _, id := range c.order {
		if e := c.entries[id]; e.Category == category {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

// Available reports whether the player's level satisfies the entry's gate.
// A failed gate is an expected precondition, not an error.
func (c *Catalog) Available(e Entry, playerLevel int) bool {
	return playerLevel >= e.RequiredLevel
}

// NextLevelFor returns the level the next purchase of the given entry would
// have: one more than the number of copies already owned.
func NextLevelFor(st *player.State, id string) int {
	owned := 0
	for _, inv := range st.Investments {
		if inv.ID == id {
			owned++
		}
	}
	return owned + 1
}

// IncomeFor evaluates the entry's growth curve at the given investment level
// and applies the global income multiplier from settings.
func (c *Catalog) IncomeFor(e Entry, level int, incomeMultiplier float64) float64 {
	income := rules.InvestmentIncome(e.Curve, e.BaseIncome, e.Multiplier, level, e.BonusPercent)
	if incomeMultiplier > 0 {
		income *= incomeMultiplier
	}
	return income
}
