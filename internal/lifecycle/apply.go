package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// Request carries the inputs of one transition. Only the fields relevant to
// Transition are read.
type Request struct {
	Transition      Transition
	ActorID         string
	Text            string
	AssigneeID      string
	Priority        domain.TicketPriority
	SLAHours        int
	RejectionReason domain.RejectionReason
	DuplicateOf     int64
	Title           string
	Description     string
	ReportLink      *string
}

// Apply returns the ticket as it is after req. The input is not modified.
// Callers must Authorize and Validate first; Apply only enforces the data
// invariants of the result.
func Apply(ticket domain.Ticket, req Request, now time.Time) (domain.Ticket, error) {
	out := ticket.Clone()

	switch req.Transition {
	case TransitionClaim:
		out.AssignedTo = strPtr(req.ActorID)
		out.Status = domain.TicketStatusInProgress
	case TransitionUnclaim:
		out.AssignedTo = nil
		out.Status = domain.TicketStatusOpen
	case TransitionMarkTesting:
		out.Status = domain.TicketStatusTesting
	case TransitionRequestCancellation:
		reason := req.RejectionReason
		out.Status = domain.TicketStatusBlocked
		out.AssignedTo = nil
		out.RejectionReason = &reason
		out.BlockedAt = timePtr(now)
	case TransitionAssign:
		out.AssignedTo = strPtr(req.AssigneeID)
		if out.Status == domain.TicketStatusOpen {
			out.Status = domain.TicketStatusInProgress
		}
	case TransitionEditPriority:
		out.Priority = req.Priority
		if req.SLAHours > 0 {
			out.SLADeadline = timePtr(Deadline(out.CreatedAt, req.SLAHours))
		}
	case TransitionBlock:
		out.Status = domain.TicketStatusBlocked
		out.BlockedAt = timePtr(now)
	case TransitionUnblock:
		if out.AssignedTo != nil {
			out.Status = domain.TicketStatusInProgress
		} else {
			out.Status = domain.TicketStatusOpen
		}
		out.RejectionReason = nil
	case TransitionResolve:
		out.Status = domain.TicketStatusResolved
	case TransitionCancel:
		out.Status = domain.TicketStatusCancelled
		out.AssignedTo = nil
	case TransitionMarkDuplicate:
		target := req.DuplicateOf
		out.Status = domain.TicketStatusDuplicate
		out.DuplicateOf = &target
		out.AssignedTo = nil
	case TransitionReopen:
		out.Status = domain.TicketStatusOpen
		out.AssignedTo = nil
		out.DuplicateOf = nil
		out.RejectionReason = nil
	case TransitionEditDetails:
		out.Title = strings.TrimSpace(req.Title)
		out.Description = strings.TrimSpace(req.Description)
		out.ReportLink = normalizeLink(req.ReportLink)
	default:
		return ticket, apperrors.NewValidationError("unknown transition", map[string]any{"transition": req.Transition})
	}

	// Time spent blocked extends the effective SLA deadline. It is kept in
	// whole seconds, the resolution of the stored column.
	if ticket.Status == domain.TicketStatusBlocked && out.Status != domain.TicketStatusBlocked {
		if ticket.BlockedAt != nil {
			if paused := now.Sub(*ticket.BlockedAt).Round(time.Second); paused > 0 {
				out.SLAPausedDuration += paused
			}
		}
		out.BlockedAt = nil
	}

	out.UpdatedAt = now
	if err := CheckInvariants(&out); err != nil {
		return ticket, apperrors.NewInternalError(err)
	}
	return out, nil
}

// CheckInvariants verifies the field invariants tied to status.
func CheckInvariants(t *domain.Ticket) error {
	switch t.Status {
	case domain.TicketStatusOpen, domain.TicketStatusCancelled, domain.TicketStatusDuplicate:
		if t.AssignedTo != nil {
			return fmt.Errorf("ticket %d: status %s must be unassigned", t.ID, t.Status)
		}
	}
	if (t.Status == domain.TicketStatusDuplicate) != (t.DuplicateOf != nil) {
		return fmt.Errorf("ticket %d: duplicate_of set iff status DUPLICATE (status %s)", t.ID, t.Status)
	}
	if (t.Status == domain.TicketStatusBlocked) != (t.BlockedAt != nil) {
		return fmt.Errorf("ticket %d: blocked_at set iff status BLOCKED (status %s)", t.ID, t.Status)
	}
	return nil
}

func normalizeLink(link *string) *string {
	if link == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*link)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func strPtr(v string) *string {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
