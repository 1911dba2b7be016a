package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medai-lab/labdash/internal/platform/auth"
)

var (
	ErrNotFound = errors.New("event not found")
	// ErrNotVisible marks a dismissal of an event outside the viewer's feed.
	ErrNotVisible = errors.New("event is not in the viewer's feed")
)

// Service records audit events and serves the classified activity feed.
//
// Recording is deliberately non-fatal: a failure to write an event is logged
// and swallowed so it can never block or reverse the operation it describes.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Log records an event for the actor. Errors never propagate.
func (s *Service) Log(ctx context.Context, actor auth.Viewer, action ActionKind, subjectID *uuid.UUID, details string, audience ...string) {
	if !action.Valid() {
		s.logger.Error().Str("action", string(action)).Msg("refusing to record unknown action kind")
		return
	}
	e := &Event{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     action,
		SubjectID:  subjectID,
		Details:    details,
		Audience:   audience,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Str("actor", actor.Email).
			Msg("failed to record activity event")
	}
}

func (s *Service) LogLogin(ctx context.Context, actor auth.Viewer) {
	s.Log(ctx, actor, ActionLogin, nil, "User logged into the system")
}

func (s *Service) LogLogout(ctx context.Context, actor auth.Viewer) {
	s.Log(ctx, actor, ActionLogout, nil, "User logged out")
}

func (s *Service) LogDetectorUsed(ctx context.Context, actor auth.Viewer, diseaseType string) {
	s.Log(ctx, actor, ActionDetectorUsed, nil, fmt.Sprintf("Analyzed %s sample", diseaseType))
}

func (s *Service) LogAnalysisCreated(ctx context.Context, actor auth.Viewer, analysisID uuid.UUID, diseaseType, result string) {
	s.Log(ctx, actor, ActionAnalysisCreated, &analysisID,
		fmt.Sprintf("Created %s analysis - Result: %s", diseaseType, result))
}

func (s *Service) LogAnalysisEdited(ctx context.Context, actor auth.Viewer, analysisID uuid.UUID, patientName string) {
	s.Log(ctx, actor, ActionAnalysisEdited, &analysisID,
		fmt.Sprintf("Modified analysis for patient %q", patientName))
}

func (s *Service) LogAnalysisDeleted(ctx context.Context, actor auth.Viewer, analysisID uuid.UUID) {
	s.Log(ctx, actor, ActionAnalysisDeleted, &analysisID, "Deleted analysis")
}

func (s *Service) LogReportSubmitted(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName, officerEmail string) {
	s.Log(ctx, actor, ActionReportSubmitted, &reportID,
		fmt.Sprintf("Submitted report for patient %q to %s", patientName, officerEmail),
		officerEmail)
}

func (s *Service) LogReportMOApproved(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string) {
	s.Log(ctx, actor, ActionReportMOApproved, &reportID,
		fmt.Sprintf("Approved report for patient %q - Forwarded to Pathologist", patientName))
}

func (s *Service) LogReportMORejected(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string) {
	s.Log(ctx, actor, ActionReportMORejected, &reportID,
		fmt.Sprintf("Rejected report for patient %q", patientName))
}

// LogReportPathVerified records a final approval. The audience carries the
// submitting technician and the reviewing officer so the decision surfaces
// in their feeds.
func (s *Service) LogReportPathVerified(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string, audience ...string) {
	s.Log(ctx, actor, ActionReportPathVerified, &reportID,
		fmt.Sprintf("Final approval of report for patient %q", patientName), audience...)
}

func (s *Service) LogReportPathRejected(ctx context.Context, actor auth.Viewer, reportID uuid.UUID, patientName string, audience ...string) {
	s.Log(ctx, actor, ActionReportPathRejected, &reportID,
		fmt.Sprintf("Rejected report for patient %q - Final decision", patientName), audience...)
}

func (s *Service) LogUserAdded(ctx context.Context, actor auth.Viewer, targetEmail string) {
	s.Log(ctx, actor, ActionUserAdded, nil, fmt.Sprintf("Added user: %s", targetEmail))
}

func (s *Service) LogUserDeleted(ctx context.Context, actor auth.Viewer, targetEmail string) {
	s.Log(ctx, actor, ActionUserDeleted, nil, fmt.Sprintf("Deleted user: %s", targetEmail))
}

func (s *Service) LogDataExported(ctx context.Context, actor auth.Viewer, dataType string) {
	s.Log(ctx, actor, ActionDataExported, nil, fmt.Sprintf("Exported %s data", dataType))
}

// Feed returns the viewer's classified feed and its unread count.
func (s *Service) Feed(ctx context.Context, viewer auth.Viewer) ([]FeedEntry, int, error) {
	events, err := s.repo.ListRecent(ctx, FetchWindow)
	if err != nil {
		return nil, 0, fmt.Errorf("list recent events: %w", err)
	}
	now := s.now()
	classified := Classify(viewer, events)
	entries := make([]FeedEntry, 0, len(classified))
	for _, e := range classified {
		entries = append(entries, FeedEntry{Event: e, Summary: Summary(e), TimeAgo: TimeAgo(now, e.CreatedAt)})
	}
	return entries, UnreadCount(now, classified), nil
}

// Dismiss permanently removes a single event. The event must be visible to
// the viewer; dismissal is deletion, there is no separate read flag.
func (s *Service) Dismiss(ctx context.Context, viewer auth.Viewer, id uuid.UUID) error {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !VisibleTo(viewer, e) {
		return fmt.Errorf("%w: %s", ErrNotVisible, id)
	}
	return s.repo.Delete(ctx, id)
}

// DismissAll permanently removes every event currently classified for the
// viewer.
func (s *Service) DismissAll(ctx context.Context, viewer auth.Viewer) (int, error) {
	events, err := s.repo.ListRecent(ctx, FetchWindow)
	if err != nil {
		return 0, fmt.Errorf("list recent events: %w", err)
	}
	classified := Classify(viewer, events)
	if len(classified) == 0 {
		return 0, nil
	}
	ids := make([]uuid.UUID, len(classified))
	for i, e := range classified {
		ids[i] = e.ID
	}
	if err := s.repo.DeleteMany(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// List returns the raw audit trail, newest first. Admin surface.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Event, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Sweep deletes events older than the retention period. Driven by the
// background poller.
func (s *Service) Sweep(ctx context.Context, retention time.Duration) error {
	cutoff := s.now().Add(-retention)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep expired events: %w", err)
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("expired activity events removed")
	}
	return nil
}
