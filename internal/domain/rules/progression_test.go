package rules

import (
	"math"
	"testing"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDeriveLevelMidLadder(t *testing.T) {
	levels := []player.LevelTier{
		{IncomeThreshold: 0, Title: "A"},
		{IncomeThreshold: 1000, Title: "B"},
		{IncomeThreshold: 5000, Title: "C"},
	}

	level, progress, title := DeriveLevel(levels, 1200)

	if level != 2 {
		t.Errorf("Expected level 2, got %d", level)
	}
	if title != "B" {
		t.Errorf("Expected title B, got %s", title)
	}
	// 1200 is 200 into the 1000..5000 span: 5%
	if !almostEqual(progress, 5) {
		t.Errorf("Expected progress 5, got %f", progress)
	}
}

func TestDeriveLevelTopTier(t *testing.T) {
	levels := player.DefaultLevels()

	level, progress, title := DeriveLevel(levels, 99999999)

	if level != len(levels) {
		t.Errorf("Expected top level %d, got %d", len(levels), level)
	}
	if progress != 100 {
		t.Errorf("Expected progress 100 at top tier, got %f", progress)
	}
	if title != levels[len(levels)-1].Title {
		t.Errorf("Expected top title, got %s", title)
	}
}

func TestDeriveLevelFloor(t *testing.T) {
	level, progress, title := DeriveLevel(player.DefaultLevels(), 0)

	if level != 1 {
		t.Errorf("Expected level 1 for zero income, got %d", level)
	}
	if progress != 0 {
		t.Errorf("Expected progress 0, got %f", progress)
	}
	if title != "Пацан" {
		t.Errorf("Expected starting title, got %s", title)
	}
}

func TestDeriveLevelEmptyLadder(t *testing.T) {
	level, progress, _ := DeriveLevel(nil, 500)

	if level != 1 || progress != 0 {
		t.Errorf("Expected fallback level 1/0, got %d/%f", level, progress)
	}
}

func TestTickIncome(t *testing.T) {
	// One month of seconds as the rate means 1 coin/sec, split over 10 ticks.
	got := TickIncome(SecondsPerMonth)
	if !almostEqual(got, 0.1) {
		t.Errorf("Expected 0.1 per tick, got %f", got)
	}

	if TickIncome(0) != 0 {
		t.Errorf("Expected 0 for zero passive income")
	}
	if TickIncome(-100) != 0 {
		t.Errorf("Expected 0 for negative passive income")
	}
}

func TestOfflineIncomeFloors(t *testing.T) {
	// 1 coin/sec rate over 90.9 seconds must floor to 90.
	got := OfflineIncome(SecondsPerMonth, 90.9)
	if got != 90 {
		t.Errorf("Expected floored 90, got %f", got)
	}

	if OfflineIncome(SecondsPerMonth, 0) != 0 {
		t.Errorf("Expected 0 for zero elapsed")
	}
	if OfflineIncome(0, 3600) != 0 {
		t.Errorf("Expected 0 for zero passive income")
	}
	// Sub-coin accruals vanish entirely.
	if OfflineIncome(1, 3600) != 0 {
		t.Errorf("Expected tiny accrual to floor to 0")
	}
}

func TestTapReward(t *testing.T) {
	if got := TapReward(2, 3); got != 6 {
		t.Errorf("Expected 6, got %f", got)
	}
	if got := TapReward(1, 1); got != 1 {
		t.Errorf("Expected 1, got %f", got)
	}
}

func TestInvestmentIncomeCurves(t *testing.T) {
	cases := []struct {
		name     string
		curve    player.CurveType
		base     float64
		mult     float64
		level    int
		bonus    float64
		expected float64
	}{
		{"linear", player.CurveLinear, 100, 1.5, 3, 0, 450},
		{"parabolic", player.CurveParabolic, 100, 1.0, 4, 0, 1600},
		{"exponential", player.CurveExponential, 100, 2.0, 3, 0, 800},
		{"inverse_parabolic", player.CurveInverseParabolic, 100, 1.0, 4, 0, 200},
		{"bonus multiplies", player.CurveLinear, 100, 1.0, 1, 10, 110},
		{"level clamped to 1", player.CurveLinear, 100, 1.0, 0, 0, 100},
	}

	for _, c := range cases {
		got := InvestmentIncome(c.curve, c.base, c.mult, c.level, c.bonus)
		if !almostEqual(got, c.expected) {
			t.Errorf("%s: expected %f, got %f", c.name, c.expected, got)
		}
	}
}
