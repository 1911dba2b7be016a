package event

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockRepo struct {
	items      map[uuid.UUID]*Event
	failCreate bool
	clock      time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Event), clock: baseTime}
}

func (m *mockRepo) Create(_ context.Context, e *Event) error {
	if m.failCreate {
		return fmt.Errorf("store unavailable")
	}
	e.ID = uuid.New()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.clock
	}
	m.items[e.ID] = e
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	e, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *mockRepo) sorted() []*Event {
	var all []*Event
	for _, e := range m.items {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})
	return all
}

func (m *mockRepo) ListRecent(_ context.Context, limit int) ([]*Event, error) {
	all := m.sorted()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Event, int, error) {
	all := m.sorted()
	total := len(all)
	if offset > len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) DeleteMany(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(m.items, id)
	}
	return nil
}

func (m *mockRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for id, e := range m.items {
		if e.CreatedAt.Before(cutoff) {
			delete(m.items, id)
			removed++
		}
	}
	return removed, nil
}

func newTestService(repo *mockRepo) *Service {
	svc := NewService(repo, zerolog.Nop())
	svc.now = func() time.Time { return baseTime }
	return svc
}

func TestLogRecordsEvent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	svc.LogAnalysisCreated(context.Background(), tech, uuid.New(), "malaria", "Positive")

	if len(repo.items) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(repo.items))
	}
	for _, e := range repo.items {
		if e.Action != ActionAnalysisCreated {
			t.Errorf("unexpected action: %s", e.Action)
		}
		if e.ActorEmail != tech.Email {
			t.Errorf("unexpected actor: %s", e.ActorEmail)
		}
	}
}

func TestLogFailureIsNonFatal(t *testing.T) {
	repo := newMockRepo()
	repo.failCreate = true
	svc := newTestService(repo)

	// Must not panic or surface the error in any way.
	svc.LogReportSubmitted(context.Background(), tech, uuid.New(), "Jane Doe", mo.Email)

	if len(repo.items) != 0 {
		t.Fatal("expected no stored events")
	}
}

func TestFeedReturnsClassifiedEntries(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	repo.clock = baseTime.Add(-time.Hour)
	svc.LogAnalysisCreated(ctx, tech, uuid.New(), "malaria", "Positive")
	svc.LogAnalysisCreated(ctx, mo, uuid.New(), "leptospirosis", "Negative")

	entries, unread, err := svc.Feed(ctx, tech)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for technician, got %d", len(entries))
	}
	if unread != 1 {
		t.Errorf("expected 1 unread, got %d", unread)
	}
	if entries[0].Summary == "" || entries[0].TimeAgo == "" {
		t.Error("feed entries must carry rendered summary and time ago")
	}
}

func TestDismissRefusesForeignEvent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	svc.LogAnalysisCreated(ctx, mo, uuid.New(), "malaria", "Positive")
	var id uuid.UUID
	for eid := range repo.items {
		id = eid
	}

	// The refusal is a distinct visibility error, not a lookup failure.
	if err := svc.Dismiss(ctx, tech, id); !errors.Is(err, ErrNotVisible) {
		t.Fatalf("expected visibility refusal for a foreign event, got %v", err)
	}
	if err := svc.Dismiss(ctx, tech, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for an unknown event, got %v", err)
	}
	if err := svc.Dismiss(ctx, mo, id); err != nil {
		t.Fatalf("owner dismissal failed: %v", err)
	}
	if len(repo.items) != 0 {
		t.Error("event should be deleted after dismissal")
	}
}

func TestDismissAllRemovesOnlyClassified(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	svc.LogAnalysisCreated(ctx, tech, uuid.New(), "malaria", "Positive")
	svc.LogReportSubmitted(ctx, tech, uuid.New(), "Jane Doe", mo.Email)
	svc.LogAnalysisCreated(ctx, mo, uuid.New(), "malaria", "Negative")

	removed, err := svc.DismissAll(ctx, tech)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 dismissed, got %d", removed)
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 remaining event, got %d", len(repo.items))
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	repo.clock = baseTime.Add(-100 * 24 * time.Hour)
	svc.LogAnalysisCreated(ctx, tech, uuid.New(), "malaria", "Positive")
	repo.clock = baseTime.Add(-time.Hour)
	svc.LogAnalysisCreated(ctx, tech, uuid.New(), "malaria", "Negative")

	if err := svc.Sweep(ctx, 90*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if len(repo.items) != 1 {
		t.Errorf("expected 1 event after sweep, got %d", len(repo.items))
	}
}
