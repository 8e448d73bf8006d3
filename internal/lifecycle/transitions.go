package lifecycle

import (
	"strings"

	"github.com/alpi-dev/alpi/internal/domain"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// Transition names one lifecycle operation.
type Transition string

const (
	TransitionClaim               Transition = "claim"
	TransitionUnclaim             Transition = "unclaim"
	TransitionMarkTesting         Transition = "mark_testing"
	TransitionRequestCancellation Transition = "request_cancellation"
	TransitionAssign              Transition = "assign"
	TransitionEditPriority        Transition = "edit_priority"
	TransitionBlock               Transition = "block"
	TransitionUnblock             Transition = "unblock"
	TransitionResolve             Transition = "resolve"
	TransitionCancel              Transition = "cancel"
	TransitionMarkDuplicate       Transition = "mark_duplicate"
	TransitionReopen              Transition = "reopen"
	TransitionEditDetails         Transition = "edit_details"
)

// Transitions lists every operation in display order.
var Transitions = []Transition{
	TransitionClaim,
	TransitionUnclaim,
	TransitionMarkTesting,
	TransitionRequestCancellation,
	TransitionAssign,
	TransitionEditPriority,
	TransitionBlock,
	TransitionUnblock,
	TransitionResolve,
	TransitionCancel,
	TransitionMarkDuplicate,
	TransitionReopen,
	TransitionEditDetails,
}

// Guard identifies who may perform a transition.
type Guard int

const (
	GuardDeveloper Guard = iota + 1
	GuardAssignee
	// GuardAssigneeOrDeveloper admits the assignee, or any developer when
	// the ticket has no assignee.
	GuardAssigneeOrDeveloper
	GuardPO
)

type rule struct {
	guard        Guard
	from         []domain.TicketStatus
	requiresText bool
}

var allStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusInProgress,
	domain.TicketStatusBlocked,
	domain.TicketStatusTesting,
	domain.TicketStatusResolved,
	domain.TicketStatusCancelled,
	domain.TicketStatusDuplicate,
}

var rules = map[Transition]rule{
	TransitionClaim: {
		guard: GuardDeveloper,
		from:  []domain.TicketStatus{domain.TicketStatusOpen},
	},
	TransitionUnclaim: {
		guard:        GuardAssignee,
		from:         []domain.TicketStatus{domain.TicketStatusInProgress},
		requiresText: true,
	},
	TransitionMarkTesting: {
		guard: GuardAssignee,
		from:  []domain.TicketStatus{domain.TicketStatusInProgress},
	},
	TransitionRequestCancellation: {
		guard:        GuardAssigneeOrDeveloper,
		from:         []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		requiresText: true,
	},
	TransitionAssign: {
		guard: GuardPO,
		from: []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusBlocked,
			domain.TicketStatusTesting,
			domain.TicketStatusResolved,
		},
	},
	TransitionEditPriority: {
		guard: GuardPO,
		from:  allStatuses,
	},
	TransitionBlock: {
		guard: GuardPO,
		from: []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusTesting,
		},
		requiresText: true,
	},
	TransitionUnblock: {
		guard: GuardPO,
		from:  []domain.TicketStatus{domain.TicketStatusBlocked},
	},
	TransitionResolve: {
		guard: GuardPO,
		from: []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusBlocked,
			domain.TicketStatusTesting,
		},
	},
	TransitionCancel: {
		guard: GuardPO,
		from: []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusBlocked,
			domain.TicketStatusTesting,
			domain.TicketStatusResolved,
		},
		requiresText: true,
	},
	TransitionMarkDuplicate: {
		guard: GuardPO,
		from: []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusBlocked,
			domain.TicketStatusTesting,
			domain.TicketStatusResolved,
		},
		requiresText: true,
	},
	TransitionReopen: {
		guard: GuardPO,
		from: []domain.TicketStatus{
			domain.TicketStatusResolved,
			domain.TicketStatusCancelled,
			domain.TicketStatusDuplicate,
		},
		requiresText: true,
	},
	TransitionEditDetails: {
		guard: GuardPO,
		from:  allStatuses,
	},
}

// RequiresText reports whether tr needs a non-blank operator comment.
func RequiresText(tr Transition) bool {
	return rules[tr].requiresText
}

// Authorize checks the guard and then the source status of tr against the
// ticket's current state. It never mutates ticket.
func Authorize(tr Transition, caps Capabilities, ticket *domain.Ticket) error {
	r, ok := rules[tr]
	if !ok {
		return apperrors.NewValidationError("unknown transition", map[string]any{"transition": tr})
	}
	details := map[string]any{"transition": tr, "ticket_id": ticket.ID, "status": ticket.Status}

	if !caps.Active {
		return apperrors.NewPermissionDenied("inactive users cannot change tickets", details)
	}

	switch r.guard {
	case GuardDeveloper:
		if !caps.IsDeveloper {
			return apperrors.NewPermissionDenied("developer role required", details)
		}
	case GuardAssignee:
		if !ticket.IsAssignedTo(caps.UserID) {
			return apperrors.NewPermissionDenied("only the assignee may do this", details)
		}
	case GuardAssigneeOrDeveloper:
		if ticket.AssignedTo != nil {
			if !ticket.IsAssignedTo(caps.UserID) {
				return apperrors.NewPermissionDenied("only the assignee may do this", details)
			}
		} else if !caps.IsDeveloper {
			return apperrors.NewPermissionDenied("developer role required", details)
		}
	case GuardPO:
		if !caps.IsPO {
			return apperrors.NewPermissionDenied("product owner role required", details)
		}
	}

	if !containsStatus(r.from, ticket.Status) {
		return apperrors.NewInvalidStateTransition("transition not allowed from current status", details)
	}
	if tr == TransitionClaim && ticket.AssignedTo != nil {
		return apperrors.NewInvalidStateTransition("ticket is already claimed", details)
	}
	return nil
}

// Available returns every transition the actor may currently perform.
func Available(caps Capabilities, ticket *domain.Ticket) []Transition {
	out := make([]Transition, 0, len(Transitions))
	for _, tr := range Transitions {
		if Authorize(tr, caps, ticket) == nil {
			out = append(out, tr)
		}
	}
	return out
}

// Validate checks request inputs that do not depend on the store.
func Validate(req Request) error {
	r, ok := rules[req.Transition]
	if !ok {
		return apperrors.NewValidationError("unknown transition", map[string]any{"transition": req.Transition})
	}
	if r.requiresText && strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("comment is required", map[string]any{"transition": req.Transition})
	}

	switch req.Transition {
	case TransitionAssign:
		if strings.TrimSpace(req.AssigneeID) == "" {
			return apperrors.NewValidationError("assignee is required", nil)
		}
	case TransitionEditPriority:
		if !req.Priority.Valid() {
			return apperrors.NewValidationError("invalid priority", map[string]any{"priority": req.Priority})
		}
	case TransitionRequestCancellation:
		if !req.RejectionReason.Valid() {
			return apperrors.NewValidationError("invalid rejection reason", map[string]any{"reason": req.RejectionReason})
		}
		if req.DuplicateOf != 0 && req.RejectionReason != domain.RejectionDuplicate {
			return apperrors.NewValidationError("duplicate_of is only valid with the DUPLICATE reason", nil)
		}
	case TransitionMarkDuplicate:
		if req.DuplicateOf <= 0 {
			return apperrors.NewValidationError("duplicate_of is required", nil)
		}
	case TransitionEditDetails:
		if strings.TrimSpace(req.Title) == "" {
			return apperrors.NewValidationError("title is required", nil)
		}
	}
	return nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
