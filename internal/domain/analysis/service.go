package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medai-lab/labdash/internal/domain/event"
	"github.com/medai-lab/labdash/internal/platform/auth"
)

var (
	ErrNotFound    = errors.New("analysis not found")
	ErrUnderReview = errors.New("analysis has an active report and cannot be modified")
	ErrForbidden   = errors.New("analysis belongs to another account")
)

// ValidationError describes a rejected analysis payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreateInput carries the detector output being saved as an analysis.
type CreateInput struct {
	PatientName     string     `json:"patient_name"`
	Patient         Patient    `json:"patient"`
	DiseaseType     string     `json:"disease_type"`
	AIResult        string     `json:"ai_result"`
	ConfidenceScore float64    `json:"confidence_score"`
	ImagePath       *string    `json:"image_path,omitempty"`
	AnalyzedAt      *time.Time `json:"analyzed_at,omitempty"`
}

// UpdateInput carries the editable fields of an analysis.
type UpdateInput struct {
	PatientName     string  `json:"patient_name"`
	Patient         Patient `json:"patient"`
	DiseaseType     string  `json:"disease_type"`
	AIResult        string  `json:"ai_result"`
	ConfidenceScore float64 `json:"confidence_score"`
	ImagePath       *string `json:"image_path,omitempty"`
}

// TxRunner runs fn atomically against the backing store.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo    Repository
	reports ReportChecker
	events  *event.Service
	tx      TxRunner
	logger  zerolog.Logger
}

func NewService(repo Repository, reports ReportChecker, events *event.Service, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, reports: reports, events: events, tx: tx, logger: logger}
}

func validate(patientName, diseaseType, aiResult string, confidence float64, p Patient) error {
	if patientName == "" {
		return &ValidationError{Field: "patient_name", Reason: "required"}
	}
	if !ValidDisease(diseaseType) {
		return &ValidationError{Field: "disease_type", Reason: "must be malaria or leptospirosis"}
	}
	if aiResult == "" {
		return &ValidationError{Field: "ai_result", Reason: "required"}
	}
	if confidence < 0 || confidence > 100 {
		return &ValidationError{Field: "confidence_score", Reason: "must be between 0 and 100"}
	}
	if p.Age < 0 {
		return &ValidationError{Field: "patient.age", Reason: "must not be negative"}
	}
	if p.SmearType != "" && diseaseType != DiseaseMalaria {
		return &ValidationError{Field: "patient.smear_type", Reason: "only recorded for malaria slides"}
	}
	return nil
}

// RecordDetectorRun notes that the actor ran the AI detector on a sample.
// Detection itself happens in the external inference service; the dashboard
// only audits the usage.
func (s *Service) RecordDetectorRun(ctx context.Context, actor auth.Viewer, diseaseType string) error {
	if !ValidDisease(diseaseType) {
		return &ValidationError{Field: "disease_type", Reason: "must be malaria or leptospirosis"}
	}
	s.events.LogDetectorUsed(ctx, actor, diseaseType)
	return nil
}

// Create saves a new analysis owned by the actor.
func (s *Service) Create(ctx context.Context, actor auth.Viewer, in CreateInput) (*Analysis, error) {
	if err := validate(in.PatientName, in.DiseaseType, in.AIResult, in.ConfidenceScore, in.Patient); err != nil {
		return nil, err
	}
	a := &Analysis{
		AccountID:       actor.ID,
		AnalyzedBy:      actor.Email,
		PatientName:     in.PatientName,
		Patient:         in.Patient,
		DiseaseType:     in.DiseaseType,
		AIResult:        in.AIResult,
		ConfidenceScore: in.ConfidenceScore,
		ImagePath:       in.ImagePath,
	}
	if in.AnalyzedAt != nil {
		a.AnalyzedAt = *in.AnalyzedAt
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	s.events.LogAnalysisCreated(ctx, actor, a.ID, a.DiseaseType, a.AIResult)
	return a, nil
}

// Get returns one analysis. Any authenticated role may read.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	return s.repo.GetByID(ctx, id)
}

// Update edits an analysis. Refused once a report has been opened on it, and
// refused for non-owners unless the actor is an admin. The under-review check
// and the write share a transaction so a concurrent submission cannot slip
// between them.
func (s *Service) Update(ctx context.Context, actor auth.Viewer, id uuid.UUID, in UpdateInput) (*Analysis, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validate(in.PatientName, in.DiseaseType, in.AIResult, in.ConfidenceScore, in.Patient); err != nil {
		return nil, err
	}
	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		if err := s.guard(ctx, actor, a); err != nil {
			return err
		}
		a.PatientName = in.PatientName
		a.Patient = in.Patient
		a.DiseaseType = in.DiseaseType
		a.AIResult = in.AIResult
		a.ConfidenceScore = in.ConfidenceScore
		a.ImagePath = in.ImagePath
		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("update analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.LogAnalysisEdited(ctx, actor, a.ID, a.PatientName)
	return a, nil
}

// Delete removes an analysis. Same guards and transaction scope as Update.
func (s *Service) Delete(ctx context.Context, actor auth.Viewer, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		if err := s.guard(ctx, actor, a); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.events.LogAnalysisDeleted(ctx, actor, id)
	return nil
}

// guard enforces ownership and the under-review lock.
func (s *Service) guard(ctx context.Context, actor auth.Viewer, a *Analysis) error {
	if a.AccountID != actor.ID && actor.Role != auth.RoleAdmin {
		return ErrForbidden
	}
	reviewed, err := s.reports.ExistsForAnalysis(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("check report state: %w", err)
	}
	if reviewed {
		return ErrUnderReview
	}
	return nil
}

// ListMine returns the actor's own analyses, newest first.
func (s *Service) ListMine(ctx context.Context, actor auth.Viewer, limit, offset int) ([]*Analysis, int, error) {
	return s.repo.ListByAccount(ctx, actor.ID, limit, offset)
}

// List returns all analyses, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Analysis, int, error) {
	return s.repo.List(ctx, limit, offset)
}
