package storage

import (
	"context"
	"testing"
	"time"
)

// fakeEventRepo serves canned records.
type fakeEventRepo struct {
	records []EventRecord
}

func (f *fakeEventRepo) Append(ctx context.Context, event EventRecord) error {
	f.records = append(f.records, event)
	return nil
}

func (f *fakeEventRepo) GetByUserID(ctx context.Context, userID string) ([]EventRecord, error) {
	var out []EventRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]EventRecord, error) {
	var out []EventRecord
	for _, r := range f.records {
		if r.UserID == userID && r.Timestamp.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) GetByEventType(ctx context.Context, eventType string) ([]EventRecord, error) {
	var out []EventRecord
	for _, r := range f.records {
		if r.EventType == eventType {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestBuildRecapSummarizesEvents(t *testing.T) {
	now := time.Now()
	repo := &fakeEventRepo{records: []EventRecord{
		{ID: "1", UserID: "U1", Timestamp: now.Add(-2 * time.Hour), EventType: "INVESTMENT_PURCHASED",
			Payload: map[string]interface{}{"investment_id": "car_wash"}},
		{ID: "2", UserID: "U1", Timestamp: now.Add(-time.Hour), EventType: "LEVEL_UP",
			Payload: map[string]interface{}{"title": "Барыга"}},
		{ID: "3", UserID: "U1", Timestamp: now.Add(-30 * time.Minute), EventType: "BOOST_EXPIRED",
			Payload: map[string]interface{}{"boost": "tap3x"}},
		{ID: "old", UserID: "U1", Timestamp: now.Add(-48 * time.Hour), EventType: "TAP"},
		{ID: "other", UserID: "U2", Timestamp: now.Add(-time.Hour), EventType: "TAP"},
	}}

	recapper := NewRecapper(repo)
	recap, err := recapper.BuildRecap(context.Background(), "U1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("BuildRecap failed: %v", err)
	}

	if len(recap) != 3 {
		t.Fatalf("Expected 3 recap events, got %d", len(recap))
	}
	if recap[0].Summary != "Purchased investment car_wash" {
		t.Errorf("Unexpected purchase summary: %s", recap[0].Summary)
	}
	if recap[1].Summary != "Reached a new title: Барыга" {
		t.Errorf("Unexpected level summary: %s", recap[1].Summary)
	}
	if recap[2].Summary != "A boost expired" {
		t.Errorf("Unexpected boost summary: %s", recap[2].Summary)
	}
}

func TestBuildRecapEmpty(t *testing.T) {
	recapper := NewRecapper(&fakeEventRepo{})

	recap, err := recapper.BuildRecap(context.Background(), "nobody", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("BuildRecap failed: %v", err)
	}
	if len(recap) != 0 {
		t.Errorf("Expected empty recap, got %d entries", len(recap))
	}
}
