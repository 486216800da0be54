package catalog

import (
	"math"
	"testing"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
)

func TestDefaultCatalogLookup(t *testing.T) {
	cat := Default()

	entry, ok := cat.Get("shaurma_stand")
	if !ok {
		t.Fatalf("Expected shaurma_stand in default catalog")
	}
	if entry.Cost != 100 || entry.RequiredLevel != 1 {
		t.Errorf("Unexpected entry data: %+v", entry)
	}

	if _, ok := cat.Get("casino"); ok {
		t.Errorf("Expected unknown id to miss")
	}
}

func TestByCategorySortedByCost(t *testing.T) {
	cat := Default()

	street := cat.ByCategory("street")
	if len(street) != 3 {
		t.Fatalf("Expected 3 street entries, got %d", len(street))
	}
	for i := 1; i < len(street); i++ {
		if street[i].Cost < street[i-1].Cost {
			t.Errorf("Expected ascending cost order, got %f before %f", street[i-1].Cost, street[i].Cost)
		}
	}
}

func TestAvailableGatesOnLevel(t *testing.T) {
	cat := Default()
	oil, _ := cat.Get("oil_shares")

	if cat.Available(oil, 5) {
		t.Errorf("Expected level 5 blocked from level 6 entry")
	}
	if !cat.Available(oil, 6) {
		t.Errorf("Expected level 6 allowed")
	}
}

func TestNextLevelForCountsOwnedCopies(t *testing.T) {
	now := time.Now()
	st := player.NewState(player.StandardDefaults(), now)

	if got := NextLevelFor(st, "car_wash"); got != 1 {
		t.Errorf("Expected first purchase at level 1, got %d", got)
	}

	st.Investments = []player.Investment{
		{ID: "car_wash", Level: 1},
		{ID: "car_wash", Level: 2},
		{ID: "shaurma_stand", Level: 1},
	}
	if got := NextLevelFor(st, "car_wash"); got != 3 {
		t.Errorf("Expected third copy at level 3, got %d", got)
	}
}

func TestIncomeForAppliesCurveAndMultiplier(t *testing.T) {
	cat := Default()
	wash, _ := cat.Get("car_wash") // linear, base 900, multiplier 1.1

	// Level 2 linear: 900 * 1.1 * 2 = 1980, then global x1.5.
	got := cat.IncomeFor(wash, 2, 1.5)
	if math.Abs(got-2970) > 1e-9 {
		t.Errorf("Expected 2970, got %f", got)
	}

	// Zero multiplier means no scaling.
	got = cat.IncomeFor(wash, 1, 0)
	if math.Abs(got-990) > 1e-9 {
		t.Errorf("Expected raw curve value 990, got %f", got)
	}
}

func TestIncomeForBonusPercent(t *testing.T) {
	cat := Default()
	trucks, _ := cat.Get("truck_logistics") // parabolic, base 24000, mult 1.25, bonus 5%

	// Level 1: 24000 * 1.25 * 1 * 1.05 = 31500.
	got := cat.IncomeFor(trucks, 1, 1)
	if math.Abs(got-31500) > 1e-9 {
		t.Errorf("Expected 31500, got %f", got)
	}
}
