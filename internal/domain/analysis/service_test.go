package analysis

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medai-lab/labdash/internal/domain/event"
	"github.com/medai-lab/labdash/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Analysis
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Analysis)}
}

func (m *mockRepo) Create(_ context.Context, a *Analysis) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = now
	}
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Analysis, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) Update(_ context.Context, a *Analysis) error {
	if _, ok := m.items[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) sorted() []*Analysis {
	var all []*Analysis
	for _, a := range m.items {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AnalyzedAt.After(all[j].AnalyzedAt) })
	return all
}

func (m *mockRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Analysis, int, error) {
	var own []*Analysis
	for _, a := range m.sorted() {
		if a.AccountID == accountID {
			own = append(own, a)
		}
	}
	return page(own, limit, offset), len(own), nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Analysis, int, error) {
	all := m.sorted()
	return page(all, limit, offset), len(all), nil
}

func page(items []*Analysis, limit, offset int) []*Analysis {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// passTx runs fn inline; there is no store to be transactional against.
type passTx struct{}

func (passTx) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockChecker marks analyses as under review by id.
type mockChecker struct {
	reviewed map[uuid.UUID]bool
}

func (m *mockChecker) ExistsForAnalysis(_ context.Context, id uuid.UUID) (bool, error) {
	return m.reviewed[id], nil
}

type eventSink struct {
	actions []event.ActionKind
}

func (s *eventSink) Create(_ context.Context, e *event.Event) error {
	s.actions = append(s.actions, e.Action)
	e.ID = uuid.New()
	return nil
}

func (s *eventSink) GetByID(context.Context, uuid.UUID) (*event.Event, error) {
	return nil, errors.New("not found")
}
func (s *eventSink) ListRecent(context.Context, int) ([]*event.Event, error) { return nil, nil }
func (s *eventSink) List(context.Context, int, int) ([]*event.Event, int, error) {
	return nil, 0, nil
}
func (s *eventSink) Delete(context.Context, uuid.UUID) error       { return nil }
func (s *eventSink) DeleteMany(context.Context, []uuid.UUID) error { return nil }
func (s *eventSink) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

var (
	tech  = auth.Viewer{ID: uuid.New(), Email: "tech@lab.example", Role: auth.RoleLabTechnician}
	tech2 = auth.Viewer{ID: uuid.New(), Email: "tech2@lab.example", Role: auth.RoleLabTechnician}
	adm   = auth.Viewer{ID: uuid.New(), Email: "admin@lab.example", Role: auth.RoleAdmin}
)

func newTestService() (*Service, *mockRepo, *mockChecker, *eventSink) {
	repo := newMockRepo()
	checker := &mockChecker{reviewed: make(map[uuid.UUID]bool)}
	sink := &eventSink{}
	events := event.NewService(sink, zerolog.Nop())
	return NewService(repo, checker, events, passTx{}, zerolog.Nop()), repo, checker, sink
}

func validInput() CreateInput {
	return CreateInput{
		PatientName:     "Jane Doe",
		DiseaseType:     DiseaseMalaria,
		AIResult:        "Positive",
		ConfidenceScore: 97.4,
	}
}

func TestCreateRecordsAnalysisAndEvent(t *testing.T) {
	svc, repo, _, sink := newTestService()

	a, err := svc.Create(context.Background(), tech, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if a.AccountID != tech.ID || a.AnalyzedBy != tech.Email {
		t.Error("analysis must be owned by the creating account")
	}
	if len(repo.items) != 1 {
		t.Fatalf("expected 1 stored analysis, got %d", len(repo.items))
	}
	if len(sink.actions) != 1 || sink.actions[0] != event.ActionAnalysisCreated {
		t.Errorf("expected analysis.created event, got %v", sink.actions)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	cases := []CreateInput{
		{PatientName: "", DiseaseType: DiseaseMalaria, AIResult: "Positive", ConfidenceScore: 50},
		{PatientName: "Jane", DiseaseType: "dengue", AIResult: "Positive", ConfidenceScore: 50},
		{PatientName: "Jane", DiseaseType: DiseaseMalaria, AIResult: "", ConfidenceScore: 50},
		{PatientName: "Jane", DiseaseType: DiseaseMalaria, AIResult: "Positive", ConfidenceScore: 120},
		{PatientName: "Jane", DiseaseType: DiseaseMalaria, AIResult: "Positive", ConfidenceScore: 50,
			Patient: Patient{Age: -1}},
		// Smear type is a malaria slide attribute only.
		{PatientName: "Jane", DiseaseType: DiseaseLeptospirosis, AIResult: "Positive", ConfidenceScore: 50,
			Patient: Patient{SmearType: "thin"}},
	}
	for i, in := range cases {
		if _, err := svc.Create(ctx, tech, in); err == nil {
			t.Errorf("case %d: expected validation error", i)
		} else {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("case %d: expected ValidationError, got %v", i, err)
			}
		}
	}
}

func TestCreateKeepsPatientDemographics(t *testing.T) {
	svc, repo, _, _ := newTestService()

	in := validInput()
	in.Patient = Patient{
		RegistrationNumber: "MRN-7",
		ICPassport:         "B9876543",
		Gender:             "male",
		Age:                52,
		HealthFacility:     "Tawau District Clinic",
		SlideNumber:        "SLD-12",
		SmearType:          "thick",
	}
	a, err := svc.Create(context.Background(), tech, in)
	if err != nil {
		t.Fatal(err)
	}
	stored := repo.items[a.ID]
	if stored.Patient != in.Patient {
		t.Errorf("demographics not stored: %+v", stored.Patient)
	}
}

func TestUpdateRefusedWhileUnderReview(t *testing.T) {
	svc, _, checker, sink := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, tech, validInput())
	if err != nil {
		t.Fatal(err)
	}
	checker.reviewed[a.ID] = true

	in := UpdateInput{PatientName: "Jane Doe", DiseaseType: DiseaseMalaria, AIResult: "Negative", ConfidenceScore: 80}
	if _, err := svc.Update(ctx, tech, a.ID, in); !errors.Is(err, ErrUnderReview) {
		t.Fatalf("expected ErrUnderReview, got %v", err)
	}
	// Only the create event should exist.
	if len(sink.actions) != 1 {
		t.Errorf("refused update must not emit an event, got %v", sink.actions)
	}
}

func TestDeleteRefusedWhileUnderReview(t *testing.T) {
	svc, repo, checker, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, tech, validInput())
	if err != nil {
		t.Fatal(err)
	}
	checker.reviewed[a.ID] = true

	if err := svc.Delete(ctx, tech, a.ID); !errors.Is(err, ErrUnderReview) {
		t.Fatalf("expected ErrUnderReview, got %v", err)
	}
	if len(repo.items) != 1 {
		t.Error("analysis must survive a refused delete")
	}
}

func TestOwnershipGuard(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, tech, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, tech2, a.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another technician, got %v", err)
	}
	// Admins bypass ownership.
	if err := svc.Delete(ctx, adm, a.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestRecordDetectorRun(t *testing.T) {
	svc, _, _, sink := newTestService()
	ctx := context.Background()

	if err := svc.RecordDetectorRun(ctx, tech, DiseaseLeptospirosis); err != nil {
		t.Fatal(err)
	}
	if len(sink.actions) != 1 || sink.actions[0] != event.ActionDetectorUsed {
		t.Errorf("expected detector.used event, got %v", sink.actions)
	}

	var verr *ValidationError
	if err := svc.RecordDetectorRun(ctx, tech, "dengue"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown disease, got %v", err)
	}
	if len(sink.actions) != 1 {
		t.Errorf("refused run must not emit an event, got %v", sink.actions)
	}
}

func TestUpdateChangesPolarity(t *testing.T) {
	svc, _, _, sink := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, tech, validInput())
	if err != nil {
		t.Fatal(err)
	}
	in := UpdateInput{PatientName: "Jane Doe", DiseaseType: DiseaseMalaria, AIResult: "Not Detected", ConfidenceScore: 88}
	updated, err := svc.Update(ctx, tech, a.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Polarity() != PolarityNegative {
		t.Errorf("expected negative polarity after edit, got %s", updated.Polarity())
	}
	if len(sink.actions) != 2 || sink.actions[1] != event.ActionAnalysisEdited {
		t.Errorf("expected analysis.edited event, got %v", sink.actions)
	}
}
