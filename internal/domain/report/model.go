package report

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("report not found")
	ErrDuplicateSubmission = errors.New("a report already exists for this analysis")
	ErrInvalidTransition   = errors.New("report state does not allow this transition")
	ErrNotAssigned         = errors.New("report is not assigned to this reviewer")
	ErrNotOwner            = errors.New("analysis belongs to another account")
	ErrInvalidInput        = errors.New("invalid report request")
)

// State is the review stage of a report. An analysis with no report row is
// simply "not submitted"; there is no state constant for that.
type State string

const (
	// StatePending means the report awaits a medical officer decision.
	StatePending State = "pending"
	// StateMOApproved means the officer approved and forwarded the report
	// to a pathologist.
	StateMOApproved State = "mo_approved"
	// StateMORejected is terminal: the officer rejected the report.
	StateMORejected State = "mo_rejected"
	// StatePathVerified is terminal: the pathologist gave final approval.
	StatePathVerified State = "path_verified"
	// StatePathRejected is terminal: the pathologist rejected the report.
	StatePathRejected State = "path_rejected"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateMOApproved, StateMORejected, StatePathVerified, StatePathRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateMORejected, StatePathVerified, StatePathRejected:
		return true
	}
	return false
}

// CanTransition reports whether the move from s to next is legal. The only
// legal moves are pending to an officer decision and mo_approved to a
// pathologist decision.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateMOApproved || next == StateMORejected
	case StateMOApproved:
		return next == StatePathVerified || next == StatePathRejected
	}
	return false
}

// Report is one analysis moving through the two-stage review pipeline. The
// analysis link is unique: a single analysis can never have two reports.
type Report struct {
	ID         uuid.UUID `db:"id" json:"id"`
	AnalysisID uuid.UUID `db:"analysis_id" json:"analysis_id"`

	SubmittedBy    uuid.UUID `db:"submitted_by" json:"submitted_by"`
	SubmitterEmail string    `db:"submitter_email" json:"submitter_email"`
	OfficerEmail   string    `db:"officer_email" json:"officer_email"`

	// PathologistEmail is set when the officer approves and forwards.
	PathologistEmail *string `db:"pathologist_email" json:"pathologist_email,omitempty"`

	State State `db:"state" json:"state"`

	OfficerComment     *string `db:"officer_comment" json:"officer_comment,omitempty"`
	PathologistComment *string `db:"pathologist_comment" json:"pathologist_comment,omitempty"`

	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
	DecidedAt   *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
