package dto

import (
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	AssigneeID  *string               `json:"assignee_id"`
	ReportLink  *string               `json:"report_link"`
}

// EditTicketRequest replaces title, description and report link.
type EditTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ReportLink  *string `json:"report_link"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// MoveTicketRequest moves a ticket within the list the caller is looking at.
type MoveTicketRequest struct {
	Direction  string  `json:"direction"`
	VisibleIDs []int64 `json:"visible_ids"`
}

// TransitionRequest carries the optional inputs of a lifecycle transition.
// Each transition reads only the fields it needs.
type TransitionRequest struct {
	Comment         string                 `json:"comment"`
	AssigneeID      string                 `json:"assignee_id"`
	Priority        domain.TicketPriority  `json:"priority"`
	RejectionReason domain.RejectionReason `json:"rejection_reason"`
	DuplicateOf     int64                  `json:"duplicate_of"`
}

// SLAResponse is the evaluated SLA of a ticket.
type SLAResponse struct {
	State            string     `json:"state"`
	Display          string     `json:"display"`
	Deadline         *time.Time `json:"deadline"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              int64                   `json:"id"`
	ProjectID       string                  `json:"project_id"`
	Title           string                  `json:"title"`
	Status          domain.TicketStatus     `json:"status"`
	Priority        domain.TicketPriority   `json:"priority"`
	AssignedTo      *string                 `json:"assigned_to"`
	SortOrder       int64                   `json:"sort_order"`
	DuplicateOf     *int64                  `json:"duplicate_of"`
	RejectionReason *domain.RejectionReason `json:"rejection_reason"`
	Version         int64                   `json:"version"`
	SLA             *SLAResponse            `json:"sla,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description          string            `json:"description"`
	CreatedBy            string            `json:"created_by"`
	ReportLink           *string           `json:"report_link"`
	Assignee             *UserResponse     `json:"assignee"`
	Comments             []CommentResponse `json:"comments"`
	AvailableTransitions []string          `json:"available_transitions"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID                string        `json:"id"`
	AuthorID          string        `json:"author_id"`
	Author            *UserResponse `json:"author"`
	Body              string        `json:"body"`
	IsSystemGenerated bool          `json:"is_system_generated"`
	CreatedAt         time.Time     `json:"created_at"`
}
