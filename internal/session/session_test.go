package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ddanshin/MagnatTap/server/internal/catalog"
	"github.com/ddanshin/MagnatTap/server/internal/domain/player"
	"github.com/ddanshin/MagnatTap/server/internal/engine"
	"github.com/ddanshin/MagnatTap/server/internal/events"
	"github.com/ddanshin/MagnatTap/server/internal/platform/logger"
	"github.com/ddanshin/MagnatTap/server/internal/platform/metrics"
	"github.com/ddanshin/MagnatTap/server/internal/settings"
)

// fakePlayerRepo is an in-memory PlayerRepository.
type fakePlayerRepo struct {
	mu    sync.Mutex
	snaps map[string]player.Snapshot
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{snaps: make(map[string]player.Snapshot)}
}

func (f *fakePlayerRepo) Get(ctx context.Context, userID string) (*player.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[userID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (f *fakePlayerRepo) Upsert(ctx context.Context, userID string, snap player.Snapshot, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[userID] = snap
	return nil
}

func (f *fakePlayerRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestManager(repo *fakePlayerRepo) *Manager {
	return NewManager(Deps{
		Players:  repo,
		EventLog: events.NewEventLog(nil),
		Settings: settings.NewProvider(nil),
		Catalog:  catalog.Default(),
		Logger:   logger.NewLogger(),
		Metrics:  metrics.NewCollector(),
	}, 5*time.Second)
}

func TestAttachCreatesAndReusesSession(t *testing.T) {
	repo := newFakePlayerRepo()
	m := newTestManager(repo)
	ctx := context.Background()
	defer m.StopAll(ctx)

	s1, created, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if !created {
		t.Errorf("Expected first attach to create the session")
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 live session, got %d", m.Count())
	}

	s2, created, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Re-attach failed: %v", err)
	}
	if created {
		t.Errorf("Expected re-attach to reuse the session")
	}
	if s1 != s2 {
		t.Errorf("Expected same session instance on re-attach")
	}
}

func TestTapPersistsState(t *testing.T) {
	repo := newFakePlayerRepo()
	m := newTestManager(repo)
	ctx := context.Background()
	defer m.StopAll(ctx)

	s, _, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	reward, st := s.Tap(ctx)
	if reward != 1 {
		t.Errorf("Expected reward 1, got %f", reward)
	}
	if st.Balance != 1 {
		t.Errorf("Expected balance 1, got %f", st.Balance)
	}

	// Tap persists synchronously.
	snap, err := repo.Get(ctx, "U1")
	if err != nil || snap == nil {
		t.Fatalf("Expected persisted snapshot, got %v/%v", snap, err)
	}
	if snap.Balance == nil || *snap.Balance != 1 {
		t.Errorf("Expected persisted balance 1, got %+v", snap.Balance)
	}
}

func TestPurchaseErrors(t *testing.T) {
	repo := newFakePlayerRepo()
	m := newTestManager(repo)
	ctx := context.Background()
	defer m.StopAll(ctx)

	s, _, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if _, err := s.Purchase(ctx, "no_such_asset"); !errors.Is(err, ErrUnknownInvestment) {
		t.Errorf("Expected ErrUnknownInvestment, got %v", err)
	}
	// oil_shares requires level 6; a fresh player is level 1.
	if _, err := s.Purchase(ctx, "oil_shares"); !errors.Is(err, ErrLevelTooLow) {
		t.Errorf("Expected ErrLevelTooLow, got %v", err)
	}
	// shaurma_stand costs 100; a fresh player has 0.
	if _, err := s.Purchase(ctx, "shaurma_stand"); !errors.Is(err, engine.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
}

func TestPurchaseEmitsEventAndAggregates(t *testing.T) {
	repo := newFakePlayerRepo()

	// Seed a funded player so the purchase goes through.
	balance := 1000.0
	repo.snaps["U1"] = player.Snapshot{Balance: &balance}

	eventLog := events.NewEventLog(nil)
	m := NewManager(Deps{
		Players:  repo,
		EventLog: eventLog,
		Settings: settings.NewProvider(nil),
		Catalog:  catalog.Default(),
		Logger:   logger.NewLogger(),
		Metrics:  metrics.NewCollector(),
	}, 5*time.Second)
	ctx := context.Background()
	defer m.StopAll(ctx)

	s, _, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	st, err := s.Purchase(ctx, "car_wash")
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if st.Balance != 250 {
		t.Errorf("Expected balance 250 after 750 spend, got %f", st.Balance)
	}
	if st.PassiveIncome != 990 {
		t.Errorf("Expected passive income 990, got %f", st.PassiveIncome)
	}

	purchases := eventLog.GetByType(events.EventTypeInvestmentPurchased)
	if len(purchases) != 1 {
		t.Fatalf("Expected 1 purchase event, got %d", len(purchases))
	}
	// Level 2 is derived from 990/month; the purchase emits a level-up too.
	levelUps := eventLog.GetByType(events.EventTypeLevelUp)
	if len(levelUps) != 1 {
		t.Errorf("Expected 1 level-up event, got %d", len(levelUps))
	}
}

func TestOfflineReportForFreshPlayerIsZero(t *testing.T) {
	repo := newFakePlayerRepo()
	m := newTestManager(repo)
	ctx := context.Background()
	defer m.StopAll(ctx)

	s, _, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	report := s.OfflineReport()
	if report.IncomeGranted != 0 {
		t.Errorf("Expected no offline income for a fresh player, got %f", report.IncomeGranted)
	}
}

func TestDetachStopsSessionAndPersists(t *testing.T) {
	repo := newFakePlayerRepo()
	m := newTestManager(repo)
	ctx := context.Background()

	s, _, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	s.Tap(ctx)

	m.Detach(ctx, "U1")

	if m.Count() != 0 {
		t.Errorf("Expected no live sessions after detach, got %d", m.Count())
	}

	snap, err := repo.Get(ctx, "U1")
	if err != nil || snap == nil {
		t.Fatalf("Expected final snapshot persisted")
	}
	if snap.Balance == nil || *snap.Balance < 1 {
		t.Errorf("Expected final balance persisted, got %+v", snap.Balance)
	}
}

func TestApplyBoostRoundTrip(t *testing.T) {
	repo := newFakePlayerRepo()
	m := newTestManager(repo)
	ctx := context.Background()
	defer m.StopAll(ctx)

	s, _, err := m.Attach(ctx, "U1")
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	st, ok := s.ApplyBoost(ctx, player.BoostTap5x)
	if !ok {
		t.Fatalf("Expected known boost accepted")
	}
	if st.Multipliers.TapMultiplier != 5 {
		t.Errorf("Expected multiplier 5, got %f", st.Multipliers.TapMultiplier)
	}

	if _, ok := s.ApplyBoost(ctx, player.BoostType("tap100x")); ok {
		t.Errorf("Expected unknown boost rejected")
	}

	st = s.RemoveBoost(ctx, player.BoostTap5x)
	if st.Multipliers.TapMultiplier != 1 {
		t.Errorf("Expected multiplier reset after removal, got %f", st.Multipliers.TapMultiplier)
	}
}
