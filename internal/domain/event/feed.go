package event

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/medai-lab/labdash/internal/platform/auth"
)

const (
	// FetchWindow is how many recent events are pulled from the store
	// before role filtering.
	FetchWindow = 50
	// DisplayLimit caps the classified feed shown to a viewer.
	DisplayLimit = 15
	// UnreadWindow is the rolling period within which a feed entry counts
	// as unread. There is no persisted read flag; dismissal is deletion.
	UnreadWindow = 24 * time.Hour
)

// FeedEntry is a classified event paired with its rendered summary.
type FeedEntry struct {
	Event   *Event `json:"event"`
	Summary string `json:"summary"`
	TimeAgo string `json:"time_ago"`
}

var ownAnalysisActions = map[ActionKind]bool{
	ActionAnalysisCreated: true,
	ActionAnalysisEdited:  true,
	ActionAnalysisDeleted: true,
}

var adminImportantActions = map[ActionKind]bool{
	ActionAnalysisCreated:    true,
	ActionAnalysisDeleted:    true,
	ActionReportSubmitted:    true,
	ActionReportMOApproved:   true,
	ActionReportMORejected:   true,
	ActionReportPathVerified: true,
	ActionReportPathRejected: true,
	ActionUserAdded:          true,
	ActionUserDeleted:        true,
}

// Classify filters events down to those visible to the viewer, ordered by
// created_at descending with id descending on ties, capped to DisplayLimit.
// The result is deterministic for a given (viewer, events) input.
func Classify(viewer auth.Viewer, events []*Event) []*Event {
	visible := make([]*Event, 0, len(events))
	for _, e := range events {
		if VisibleTo(viewer, e) {
			visible = append(visible, e)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return bytes.Compare(visible[i].ID[:], visible[j].ID[:]) > 0
	})

	if len(visible) > DisplayLimit {
		visible = visible[:DisplayLimit]
	}
	return visible
}

// VisibleTo decides whether a single event belongs in the viewer's feed.
// Every role sees its own analysis work; the remaining rules are the
// role-specific union documented per case below.
func VisibleTo(viewer auth.Viewer, e *Event) bool {
	// Own analysis activity is visible to every role.
	if e.ActorID == viewer.ID && ownAnalysisActions[e.Action] {
		return true
	}

	switch viewer.Role {
	case auth.RoleLabTechnician:
		// Own submissions, plus final pathologist decisions addressed to them.
		if e.ActorID == viewer.ID && e.Action == ActionReportSubmitted {
			return true
		}
		if (e.Action == ActionReportPathVerified || e.Action == ActionReportPathRejected) &&
			e.AddressedTo(viewer.Email) {
			return true
		}

	case auth.RoleMedicalOfficer:
		// Every submission lands in the shared review queue.
		if e.Action == ActionReportSubmitted {
			return true
		}
		if e.ActorID == viewer.ID &&
			(e.Action == ActionReportMOApproved || e.Action == ActionReportMORejected) {
			return true
		}
		if (e.Action == ActionReportPathVerified || e.Action == ActionReportPathRejected) &&
			e.AddressedTo(viewer.Email) {
			return true
		}

	case auth.RolePathologist:
		// MO approvals are assigned to pathologists generally.
		if e.Action == ActionReportMOApproved {
			return true
		}
		if e.ActorID == viewer.ID &&
			(e.Action == ActionReportPathVerified || e.Action == ActionReportPathRejected) {
			return true
		}

	case auth.RoleHealthOfficer:
		// Surveillance feed: every final verification.
		if e.Action == ActionReportPathVerified {
			return true
		}

	case auth.RoleAdmin:
		if adminImportantActions[e.Action] {
			return true
		}
	}

	return false
}

// UnreadCount counts classified entries created within the rolling unread
// window. It never exceeds the classified window length.
func UnreadCount(now time.Time, classified []*Event) int {
	cutoff := now.Add(-UnreadWindow)
	count := 0
	for _, e := range classified {
		if e.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// TimeAgo renders a coarse relative timestamp. Each unit uses floor
// division.
func TimeAgo(now, ts time.Time) string {
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

// Summary renders a short human-readable line for an event.
func Summary(e *Event) string {
	name := actorName(e.ActorEmail)
	switch e.Action {
	case ActionAnalysisCreated:
		return name + " created a new analysis"
	case ActionAnalysisEdited:
		return name + " edited an analysis"
	case ActionAnalysisDeleted:
		return name + " deleted an analysis"
	case ActionDetectorUsed:
		return name + " ran the AI detector"
	case ActionReportSubmitted:
		return name + " submitted a report for review"
	case ActionReportMOApproved:
		return "Medical Officer approved a report"
	case ActionReportMORejected:
		return "Medical Officer rejected a report"
	case ActionReportPathVerified:
		return "Pathologist verified a report"
	case ActionReportPathRejected:
		return "Pathologist rejected a report"
	case ActionUserAdded:
		return name + " added a new user"
	case ActionUserDeleted:
		return name + " removed a user"
	case ActionDataExported:
		return name + " exported data"
	case ActionLogin:
		return name + " logged in"
	case ActionLogout:
		return name + " logged out"
	default:
		return string(e.Action)
	}
}

func actorName(email string) string {
	if email == "" {
		return "Someone"
	}
	if idx := strings.IndexByte(email, '@'); idx > 0 {
		return email[:idx]
	}
	return email
}
