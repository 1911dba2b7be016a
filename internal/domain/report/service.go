package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medai-lab/labdash/internal/domain/analysis"
	"github.com/medai-lab/labdash/internal/platform/auth"
)

// AnalysisReader is the slice of the analysis store the workflow needs.
type AnalysisReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*analysis.Analysis, error)
}

// TxRunner runs fn atomically against the backing store. Repositories pick
// the transaction up from the context fn receives.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service drives reports through the two-stage review pipeline. State
// transitions are committed first; the matching activity event is recorded
// afterwards and its failure never reverses the transition.
type Service struct {
	repo     Repository
	analyses AnalysisReader
	events   EventLogger
	tx       TxRunner
	logger   zerolog.Logger
	now      func() time.Time
}

// EventLogger matches the report-related helpers of the event service.
type EventLogger interface {
	LogReportSubmitted(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName, officerEmail string)
	LogReportMOApproved(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string)
	LogReportMORejected(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string)
	LogReportPathVerified(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string, audience ...string)
	LogReportPathRejected(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string, audience ...string)
}

func NewService(repo Repository, analyses AnalysisReader, events EventLogger, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, analyses: analyses, events: events, tx: tx, logger: logger, now: time.Now}
}

// Submit opens a report on an analysis and addresses it to a medical officer.
// Only the analysis owner (or an admin) may submit, and an analysis can carry
// at most one report ever.
func (s *Service) Submit(ctx context.Context, actor auth.Viewer, analysisID uuid.UUID, officerEmail string) (*Report, error) {
	if officerEmail == "" {
		return nil, fmt.Errorf("%w: officer email is required", ErrInvalidInput)
	}
	a, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	if a.AccountID != actor.ID && actor.Role != auth.RoleAdmin {
		return nil, ErrNotOwner
	}

	rp := &Report{
		AnalysisID:     analysisID,
		SubmittedBy:    actor.ID,
		SubmitterEmail: actor.Email,
		OfficerEmail:   officerEmail,
		State:          StatePending,
	}
	// The uniqueness check and the insert run in one transaction so two
	// concurrent submissions cannot both pass the check.
	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsForAnalysis(ctx, analysisID)
		if err != nil {
			return fmt.Errorf("check prior submission: %w", err)
		}
		if exists {
			return ErrDuplicateSubmission
		}
		if err := s.repo.Create(ctx, rp); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.LogReportSubmitted(ctx, actor, rp.ID, a.PatientName, officerEmail)
	return rp, nil
}

// Decide records the medical officer stage. Approval requires a pathologist
// to forward to; rejection is terminal.
func (s *Service) Decide(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, approve bool, pathologistEmail string, comment *string) (*Report, error) {
	rp, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rp.OfficerEmail != actor.Email && actor.Role != auth.RoleAdmin {
		return nil, ErrNotAssigned
	}

	next := StateMORejected
	if approve {
		if pathologistEmail == "" {
			return nil, fmt.Errorf("%w: approval requires a pathologist to forward to", ErrInvalidInput)
		}
		next = StateMOApproved
	}
	if !rp.State.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, rp.State, next)
	}

	now := s.now().UTC()
	rp.State = next
	rp.OfficerComment = comment
	rp.DecidedAt = &now
	if approve {
		rp.PathologistEmail = &pathologistEmail
	}
	if err := s.repo.Update(ctx, rp); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}

	patientName := s.patientName(ctx, rp.AnalysisID)
	if approve {
		s.events.LogReportMOApproved(ctx, actor, rp.ID, patientName)
	} else {
		s.events.LogReportMORejected(ctx, actor, rp.ID, patientName)
	}
	return rp, nil
}

// Verify records the pathologist stage, the final word on a report. The
// decision event is addressed to the submitting technician and the reviewing
// officer so it lands in both feeds.
func (s *Service) Verify(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, approve bool, comment *string) (*Report, error) {
	rp, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	// The state gate comes first: assignment only exists once an officer has
	// approved, so a pending report must fail as an illegal transition, not
	// as a missing assignment.
	next := StatePathRejected
	if approve {
		next = StatePathVerified
	}
	if !rp.State.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, rp.State, next)
	}
	assigned := rp.PathologistEmail != nil && *rp.PathologistEmail == actor.Email
	if !assigned && actor.Role != auth.RoleAdmin {
		return nil, ErrNotAssigned
	}

	now := s.now().UTC()
	rp.State = next
	rp.PathologistComment = comment
	rp.VerifiedAt = &now
	if err := s.repo.Update(ctx, rp); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}

	patientName := s.patientName(ctx, rp.AnalysisID)
	audience := []string{rp.SubmitterEmail, rp.OfficerEmail}
	if approve {
		s.events.LogReportPathVerified(ctx, actor, rp.ID, patientName, audience...)
	} else {
		s.events.LogReportPathRejected(ctx, actor, rp.ID, patientName, audience...)
	}
	return rp, nil
}

// patientName resolves the patient for event text. Best effort: the
// transition has already committed, so a lookup failure only degrades the
// event wording.
func (s *Service) patientName(ctx context.Context, analysisID uuid.UUID) string {
	a, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", analysisID.String()).Msg("patient lookup failed for event text")
		return "unknown"
	}
	return a.PatientName
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

// StatusFor returns the review stage of an analysis, or "not_submitted" when
// no report exists.
func (s *Service) StatusFor(ctx context.Context, analysisID uuid.UUID) (string, error) {
	rp, err := s.repo.GetByAnalysis(ctx, analysisID)
	if errors.Is(err, ErrNotFound) {
		return "not_submitted", nil
	}
	if err != nil {
		return "", err
	}
	return string(rp.State), nil
}

// List returns reports scoped to the viewer's role: technicians see their own
// submissions, officers their queue, pathologists their assignments, and
// health officers and admins everything.
func (s *Service) List(ctx context.Context, viewer auth.Viewer, state State, limit, offset int) ([]*Report, int, error) {
	f := ListFilter{State: state}
	switch viewer.Role {
	case auth.RoleLabTechnician:
		f.SubmittedBy = viewer.ID
	case auth.RoleMedicalOfficer:
		f.OfficerEmail = viewer.Email
	case auth.RolePathologist:
		f.PathologistEmail = viewer.Email
	}
	return s.repo.List(ctx, f, limit, offset)
}
