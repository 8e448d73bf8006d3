package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusBlocked    TicketStatus = "BLOCKED"
	TicketStatusTesting    TicketStatus = "TESTING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
	TicketStatusDuplicate  TicketStatus = "DUPLICATE"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusBlocked, TicketStatusTesting,
		TicketStatusResolved, TicketStatusCancelled, TicketStatusDuplicate:
		return true
	}
	return false
}

// Label is the human readable status name used in system comments.
func (s TicketStatus) Label() string {
	switch s {
	case TicketStatusOpen:
		return "Open"
	case TicketStatusInProgress:
		return "In Progress"
	case TicketStatusBlocked:
		return "Blocked"
	case TicketStatusTesting:
		return "Testing"
	case TicketStatusResolved:
		return "Resolved"
	case TicketStatusCancelled:
		return "Cancelled"
	case TicketStatusDuplicate:
		return "Duplicate"
	}
	return string(s)
}

// ActiveTicketStatuses are the statuses whose assignee still owns work.
var ActiveTicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusBlocked,
	TicketStatusTesting,
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityP0Critical TicketPriority = "P0_CRITICAL"
	TicketPriorityP1High     TicketPriority = "P1_HIGH"
	TicketPriorityP2Medium   TicketPriority = "P2_MEDIUM"
	TicketPriorityP3Low      TicketPriority = "P3_LOW"
)

// TicketPriorities lists every priority, most urgent first.
var TicketPriorities = []TicketPriority{
	TicketPriorityP0Critical,
	TicketPriorityP1High,
	TicketPriorityP2Medium,
	TicketPriorityP3Low,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityP0Critical, TicketPriorityP1High, TicketPriorityP2Medium, TicketPriorityP3Low:
		return true
	}
	return false
}

func (p TicketPriority) Label() string {
	switch p {
	case TicketPriorityP0Critical:
		return "P0 - Critical"
	case TicketPriorityP1High:
		return "P1 - High"
	case TicketPriorityP2Medium:
		return "P2 - Medium"
	case TicketPriorityP3Low:
		return "P3 - Low"
	}
	return string(p)
}

// RejectionReason is the developer's stated reason when requesting cancellation.
type RejectionReason string

const (
	RejectionNotABug         RejectionReason = "NOT_A_BUG"
	RejectionCannotReproduce RejectionReason = "CANNOT_REPRODUCE"
	RejectionDuplicate       RejectionReason = "DUPLICATE"
	RejectionOther           RejectionReason = "OTHER"
)

func (r RejectionReason) Valid() bool {
	switch r {
	case RejectionNotABug, RejectionCannotReproduce, RejectionDuplicate, RejectionOther:
		return true
	}
	return false
}

func (r RejectionReason) Label() string {
	switch r {
	case RejectionNotABug:
		return "Not a bug"
	case RejectionCannotReproduce:
		return "Cannot reproduce"
	case RejectionDuplicate:
		return "Duplicate"
	case RejectionOther:
		return "Other"
	}
	return string(r)
}

// Ticket is the aggregate owned by the lifecycle engine.
type Ticket struct {
	ID                int64
	ProjectID         string
	Title             string
	Description       string
	Priority          TicketPriority
	Status            TicketStatus
	AssignedTo        *string
	CreatedBy         string
	SortOrder         int64
	DuplicateOf       *int64
	RejectionReason   *RejectionReason
	SLADeadline       *time.Time
	BlockedAt         *time.Time
	SLAPausedDuration time.Duration
	ReportLink        *string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// Clone returns a deep copy so callers can mutate without aliasing pointer fields.
func (t Ticket) Clone() Ticket {
	out := t
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		out.AssignedTo = &v
	}
	if t.DuplicateOf != nil {
		v := *t.DuplicateOf
		out.DuplicateOf = &v
	}
	if t.RejectionReason != nil {
		v := *t.RejectionReason
		out.RejectionReason = &v
	}
	if t.SLADeadline != nil {
		v := *t.SLADeadline
		out.SLADeadline = &v
	}
	if t.BlockedAt != nil {
		v := *t.BlockedAt
		out.BlockedAt = &v
	}
	if t.ReportLink != nil {
		v := *t.ReportLink
		out.ReportLink = &v
	}
	return out
}
