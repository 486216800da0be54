// Package rules contains the pure calculation logic for game mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

// SecondsPerMonth is the fixed month length used to convert the monthly
// passive income rate into per-second accrual. 30 days, always.
const SecondsPerMonth = 30 * 24 * 60 * 60

// TickAccrualDivisor splits the per-second passive income across the engine's
// reference tick cadence (10 ticks per second). Accrual is tick-count based,
// not wall-clock based: the effective income rate depends on the host keeping
// the 100ms cadence constant.
const TickAccrualDivisor = 10

// TickIncome returns the balance accrued on a single engine tick.
func TickIncome(passiveIncome float64) float64 {
	if passiveIncome <= 0 {
		return 0
	}
	return passiveIncome / SecondsPerMonth / TickAccrualDivisor
}

// OfflineIncome returns the balance granted for time spent offline:
// floor(P / secondsPerMonth * elapsed).
func OfflineIncome(passiveIncome, elapsedSeconds float64) float64 {
	if passiveIncome <= 0 || elapsedSeconds <= 0 {
		return 0
	}
	return math.Floor(passiveIncome / SecondsPerMonth * elapsedSeconds)
}

// TapReward returns the coins granted for a single tap.
func TapReward(tapValue, tapMultiplier float64) float64 {
	return tapValue * tapMultiplier
}

// DeriveLevel scans the ascending level ladder and returns the 1-based level,
// the progress towards the next tier (0-100, clamped; 100 at the top tier)
// and the level title for the given passive income.
func DeriveLevel(levels []player.LevelTier, passiveIncome float64) (int, float64, string) {
	if len(levels) == 0 {
		return 1, 0, ""
	}

	current := 0
	for i, tier := range levels {
		if passiveIncome >= tier.IncomeThreshold {
			current = i
		}
	}

	if current == len(levels)-1 {
		return current + 1, 100, levels[current].Title
	}

	lower := levels[current].IncomeThreshold
	upper := levels[current+1].IncomeThreshold
	progress := 0.0
	if upper > lower {
		progress = (passiveIncome - lower) / (upper - lower) * 100
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return current + 1, progress, levels[current].Title
}

// InvestmentIncome evaluates an investment's growth curve at the given level
// and returns its monthly income contribution. The engine never calls this:
// curve math belongs to the catalog/caller, the engine only aggregates.
func InvestmentIncome(curve player.CurveType, baseIncome, multiplier float64, level int, bonusPercent float64) float64 {
	if level < 1 {
		level = 1
	}
	l := float64(level)

	var income float64
	switch curve {
	case player.CurveLinear:
		income = baseIncome * multiplier * l
	case player.CurveParabolic:
		income = baseIncome * multiplier * l * l
	case player.CurveExponential:
		income = baseIncome * math.Pow(multiplier, l)
	case player.CurveInverseParabolic:
		income = baseIncome * multiplier * math.Sqrt(l)
	default:
		income = baseIncome * multiplier
	}

	if bonusPercent > 0 {
		income *= 1 + bonusPercent/100
	}
	return income
}
