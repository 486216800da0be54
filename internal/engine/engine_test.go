package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/catalog"
	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/domain/rules"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

// fakeClock is a hand-advanced clock for deterministic engine tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func fp(v float64) *float64 { return &v }

func TestTapConsumesEnergyAndPaysReward(t *testing.T) {
	clk := newTestClock()
	eng := New(nil, settings.Default(), clk)

	for i := 0; i < 10; i++ {
		if reward := eng.Tap(); reward != 1 {
			t.Fatalf("Tap %d: expected reward 1, got %f", i, reward)
		}
	}

	st := eng.State()
	if st.Balance != 10 {
		t.Errorf("Expected balance 10, got %f", st.Balance)
	}
	if st.Energy.Current != 990 {
		t.Errorf("Expected energy 990, got %f", st.Energy.Current)
	}
	if st.Stats.TotalClicks != 10 {
		t.Errorf("Expected 10 clicks, got %d", st.Stats.TotalClicks)
	}
	if st.Stats.TotalEarned != 10 {
		t.Errorf("Expected 10 earned, got %f", st.Stats.TotalEarned)
	}
}

func TestTapBlockedLeavesStateUntouched(t *testing.T) {
	clk := newTestClock()

	// Start with less than one unit of energy.
	snap := &player.Snapshot{Energy: &player.EnergySnapshot{Current: fp(0.5)}}
	eng := New(snap, settings.Default(), clk)

	before := eng.State()
	reward := eng.Tap()
	after := eng.State()

	if reward != 0 {
		t.Errorf("Expected blocked tap to return 0, got %f", reward)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Blocked tap mutated state: %+v vs %+v", before, after)
	}
}

func TestTickAccruesPassiveIncome(t *testing.T) {
	clk := newTestClock()

	// One month of seconds as the monthly rate = 1 coin/sec = 0.1 per tick.
	snap := &player.Snapshot{PassiveIncome: fp(rules.SecondsPerMonth)}
	eng := New(snap, settings.Default(), clk)

	for i := 0; i < 10; i++ {
		eng.Tick()
	}

	st := eng.State()
	if math.Abs(st.Balance-1) > 1e-9 {
		t.Errorf("Expected 1 coin after 10 ticks, got %f", st.Balance)
	}
}

func TestEnergyRegenClampsAtMax(t *testing.T) {
	clk := newTestClock()

	snap := &player.Snapshot{Energy: &player.EnergySnapshot{Current: fp(10)}}
	eng := New(snap, settings.Default(), clk)

	// 3/s regen for one hour would be 10800, far beyond max 1000.
	clk.advance(time.Hour)
	eng.Tick()

	st := eng.State()
	if st.Energy.Current != st.Energy.Max {
		t.Errorf("Expected energy clamped at max %f, got %f", st.Energy.Max, st.Energy.Current)
	}
}

func TestBoostAppliesAndExpiresOnTick(t *testing.T) {
	clk := newTestClock()
	eng := New(nil, settings.Default(), clk)

	// Act: apply a 1 second tap3x boost at t=0.
	eng.ApplyBoost(player.BoostTap3x, time.Second)

	if reward := eng.Tap(); reward != 3 {
		t.Errorf("Expected boosted reward 3, got %f", reward)
	}

	// Advance past expiry; the next tick must self-heal.
	clk.advance(1500 * time.Millisecond)
	eng.Tick()

	st := eng.State()
	if st.Multipliers.TapMultiplier != 1 {
		t.Errorf("Expected multiplier reset to 1, got %f", st.Multipliers.TapMultiplier)
	}
	if st.Boosts[player.BoostTap3x].Active {
		t.Errorf("Expected boost inactive after expiry")
	}
	if reward := eng.Tap(); reward != 1 {
		t.Errorf("Expected plain reward 1 after expiry, got %f", reward)
	}
}

func TestLastAppliedBoostWins(t *testing.T) {
	clk := newTestClock()
	eng := New(nil, settings.Default(), clk)

	eng.ApplyBoost(player.BoostTap5x, time.Minute)
	eng.ApplyBoost(player.BoostTap3x, time.Minute)

	st := eng.State()
	if st.Multipliers.TapMultiplier != 3 {
		t.Errorf("Expected last-applied 3x to win, got %f", st.Multipliers.TapMultiplier)
	}
}

func TestApplyUnknownBoostIsNoOp(t *testing.T) {
	clk := newTestClock()
	eng := New(nil, settings.Default(), clk)

	before := eng.State()
	eng.ApplyBoost(player.BoostType("tap100x"), time.Minute)
	after := eng.State()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("Unknown boost mutated state")
	}
}

func TestRemoveBoostResetsMultiplier(t *testing.T) {
	clk := newTestClock()
	eng := New(nil, settings.Default(), clk)

	eng.ApplyBoost(player.BoostTap5x, time.Minute)
	eng.RemoveBoost(player.BoostTap5x)

	st := eng.State()
	if st.Multipliers.TapMultiplier != 1 {
		t.Errorf("Expected multiplier 1 after removal, got %f", st.Multipliers.TapMultiplier)
	}
	if st.Boosts[player.BoostTap5x].Active {
		t.Errorf("Expected boost cleared")
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	clk := newTestClock()
	eng := New(nil, settings.Default(), clk)

	entry, _ := catalog.Default().Get("shaurma_stand")

	before := eng.State()
	err := eng.PurchaseInvestment(entry, 150)
	after := eng.State()

	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Failed purchase mutated state")
	}
}

func TestPurchaseAggregatesIncomeAndLevelsUp(t *testing.T) {
	clk := newTestClock()

	snap := &player.Snapshot{Balance: fp(1000)}
	eng := New(snap, settings.Default(), clk)

	cat := catalog.Default()
	stand, _ := cat.Get("shaurma_stand")
	wash, _ := cat.Get("car_wash")

	if err := eng.PurchaseInvestment(stand, cat.IncomeFor(stand, 1, 1)); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if err := eng.PurchaseInvestment(wash, cat.IncomeFor(wash, 1, 1)); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}

	st := eng.State()
	if st.Balance != 1000-stand.Cost-wash.Cost {
		t.Errorf("Expected balance %f, got %f", 1000-stand.Cost-wash.Cost, st.Balance)
	}

	// 150 + 990 = 1140/month crosses the 500 threshold.
	expectedIncome := 150.0 + 990.0
	if math.Abs(st.PassiveIncome-expectedIncome) > 1e-9 {
		t.Errorf("Expected passive income %f, got %f", expectedIncome, st.PassiveIncome)
	}
	if st.Level.Current != 2 || st.Level.Title != "Барыга" {
		t.Errorf("Expected level 2 Барыга, got %d %s", st.Level.Current, st.Level.Title)
	}
	if st.Stats.MaxPassiveIncome != expectedIncome {
		t.Errorf("Expected max passive income tracked, got %f", st.Stats.MaxPassiveIncome)
	}
}

func TestRepeatPurchaseRaisesInvestmentLevel(t *testing.T) {
	clk := newTestClock()

	snap := &player.Snapshot{Balance: fp(500)}
	eng := New(snap, settings.Default(), clk)

	cat := catalog.Default()
	stand, _ := cat.Get("shaurma_stand")

	eng.PurchaseInvestment(stand, cat.IncomeFor(stand, 1, 1))
	eng.PurchaseInvestment(stand, cat.IncomeFor(stand, 2, 1))

	st := eng.State()
	if len(st.Investments) != 2 {
		t.Fatalf("Expected 2 owned copies, got %d", len(st.Investments))
	}
	if st.Investments[1].Level != 2 {
		t.Errorf("Expected second copy at level 2, got %d", st.Investments[1].Level)
	}
	// Linear curve: level 2 earns double the level 1 income.
	if st.Investments[1].Income != 2*st.Investments[0].Income {
		t.Errorf("Expected level 2 income doubled, got %f vs %f",
			st.Investments[1].Income, st.Investments[0].Income)
	}
}

func TestOfflineProgressIsDeterministicAndIdempotent(t *testing.T) {
	clk := newTestClock()

	// 1 coin/sec rate, last calculated at t0, energy half drained.
	last := clk.Now()
	snap := &player.Snapshot{
		PassiveIncome:     fp(rules.SecondsPerMonth),
		Energy:            &player.EnergySnapshot{Current: fp(500)},
		LastCalculationAt: &last,
	}

	clk.advance(90*time.Second + 900*time.Millisecond)
	eng := New(snap, settings.Default(), clk)

	report := eng.ProcessOfflineProgress()

	if report.IncomeGranted != 90 {
		t.Errorf("Expected floored grant 90, got %f", report.IncomeGranted)
	}
	if math.Abs(report.ElapsedSeconds-90.9) > 1e-9 {
		t.Errorf("Expected 90.9s elapsed, got %f", report.ElapsedSeconds)
	}

	st := eng.State()
	if st.Energy.Current != st.Energy.Max {
		t.Errorf("Expected flat energy refill to max, got %f", st.Energy.Current)
	}
	if st.Balance != 90 {
		t.Errorf("Expected balance 90, got %f", st.Balance)
	}

	// A repeat call without elapsed time grants nothing.
	again := eng.ProcessOfflineProgress()
	if again.IncomeGranted != 0 {
		t.Errorf("Expected repeat grant 0, got %f", again.IncomeGranted)
	}
}

func TestOfflineProgressExpiresStaleBoosts(t *testing.T) {
	clk := newTestClock()

	last := clk.Now()
	snap := &player.Snapshot{
		TapMultiplier: fp(5),
		Boosts: map[player.BoostType]player.Boost{
			player.BoostTap5x: {Active: true, EndsAt: last.Add(time.Minute)},
		},
		LastCalculationAt: &last,
	}

	clk.advance(8 * time.Hour)
	eng := New(snap, settings.Default(), clk)
	eng.ProcessOfflineProgress()

	st := eng.State()
	if st.Boosts[player.BoostTap5x].Active {
		t.Errorf("Expected stale boost expired on catch-up")
	}
	if st.Multipliers.TapMultiplier != 1 {
		t.Errorf("Expected multiplier reset, got %f", st.Multipliers.TapMultiplier)
	}
}

func TestNegativeElapsedClampsToZero(t *testing.T) {
	clk := newTestClock()

	// Clock skew: last calculation in the future.
	last := clk.Now().Add(time.Hour)
	snap := &player.Snapshot{
		PassiveIncome:     fp(rules.SecondsPerMonth),
		LastCalculationAt: &last,
	}
	eng := New(snap, settings.Default(), clk)

	report := eng.ProcessOfflineProgress()
	if report.IncomeGranted != 0 || report.ElapsedSeconds != 0 {
		t.Errorf("Expected zero grant on clock skew, got %+v", report)
	}
}
