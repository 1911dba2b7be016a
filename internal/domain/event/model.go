package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/medai-lab/labdash/internal/platform/auth"
)

// ActionKind is the closed set of auditable actions. Visibility rules key
// off these constants, never off free text.
type ActionKind string

const (
	ActionLogin           ActionKind = "login"
	ActionLogout          ActionKind = "logout"
	ActionDetectorUsed    ActionKind = "detector.used"
	ActionAnalysisCreated ActionKind = "analysis.created"
	ActionAnalysisEdited  ActionKind = "analysis.edited"
	ActionAnalysisDeleted ActionKind = "analysis.deleted"

	ActionReportSubmitted    ActionKind = "report.submitted"
	ActionReportMOApproved   ActionKind = "report.mo_approved"
	ActionReportMORejected   ActionKind = "report.mo_rejected"
	ActionReportPathVerified ActionKind = "report.path_verified"
	ActionReportPathRejected ActionKind = "report.path_rejected"

	ActionUserAdded    ActionKind = "user.added"
	ActionUserDeleted  ActionKind = "user.deleted"
	ActionDataExported ActionKind = "data.exported"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionLogin, ActionLogout, ActionDetectorUsed,
		ActionAnalysisCreated, ActionAnalysisEdited, ActionAnalysisDeleted,
		ActionReportSubmitted, ActionReportMOApproved, ActionReportMORejected,
		ActionReportPathVerified, ActionReportPathRejected,
		ActionUserAdded, ActionUserDeleted, ActionDataExported:
		return true
	}
	return false
}

// Event is an immutable audit record of a state-changing action. Events are
// never updated; they are removed only by explicit dismissal or age-based
// expiry.
//
// Audience lists the emails of accounts the event is explicitly addressed
// to, on top of the role-based visibility rules. Final pathologist decisions
// carry the submitting technician and reviewing officer here so the
// classifier can surface the outcome to them without inspecting prose.
type Event struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ActorID    uuid.UUID  `db:"actor_id" json:"actor_id"`
	ActorEmail string     `db:"actor_email" json:"actor_email"`
	ActorRole  auth.Role  `db:"actor_role" json:"actor_role"`
	Action     ActionKind `db:"action" json:"action"`
	SubjectID  *uuid.UUID `db:"subject_id" json:"subject_id,omitempty"`
	Details    string     `db:"details" json:"details"`
	Audience   []string   `db:"audience" json:"audience,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// AddressedTo reports whether email is in the event's explicit audience.
func (e *Event) AddressedTo(email string) bool {
	for _, a := range e.Audience {
		if a == email {
			return true
		}
	}
	return false
}
