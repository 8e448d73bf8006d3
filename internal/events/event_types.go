package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/alpi-dev/alpi/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketChanged       EventType = "ticket_changed"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventUserDeactivated     EventType = "user_deactivated"
	EventNotificationCreated EventType = "notification_created"
	EventProjectChanged      EventType = "project_changed"
	EventSettingsChanged     EventType = "settings_changed"
)

// AllEventTypes lists every type a bridge forwards.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketChanged,
	EventTicketCommentAdded,
	EventUserDeactivated,
	EventNotificationCreated,
	EventProjectChanged,
	EventSettingsChanged,
}

// Event represents a domain event emitted by services after a successful write.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  *int64    `json:"ticket_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, actorID string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
}

// ForProject sets the project the event belongs to.
func (e Event) ForProject(projectID string) Event {
	e.ProjectID = projectID
	return e
}

// ForTicket sets the ticket and project the event belongs to.
func (e Event) ForTicket(t *domain.Ticket) Event {
	id := t.ID
	e.TicketID = &id
	e.ProjectID = t.ProjectID
	return e
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	Status     domain.TicketStatus   `json:"status"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
}

// TicketChangedPayload describes one applied lifecycle transition.
type TicketChangedPayload struct {
	Transition  string                `json:"transition"`
	OldStatus   domain.TicketStatus   `json:"old_status"`
	NewStatus   domain.TicketStatus   `json:"new_status"`
	OldAssignee *string               `json:"old_assignee,omitempty"`
	NewAssignee *string               `json:"new_assignee,omitempty"`
	Priority    domain.TicketPriority `json:"priority"`
	Version     int64                 `json:"version"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	System      bool   `json:"system"`
	BodyPreview string `json:"body_preview"`
}

// UserDeactivatedPayload payload.
type UserDeactivatedPayload struct {
	UserID          string  `json:"user_id"`
	AffectedTickets []int64 `json:"affected_tickets"`
}

// NotificationCreatedPayload is consumed by push delivery.
type NotificationCreatedPayload struct {
	NotificationID string                  `json:"notification_id"`
	UserID         string                  `json:"user_id"`
	Type           domain.NotificationType `json:"type"`
	Message        string                  `json:"message"`
}

// ProjectChange names what a project_changed event records.
type ProjectChange string

const (
	ProjectCreated         ProjectChange = "created"
	ProjectSettingsUpdated ProjectChange = "settings_updated"
	ProjectMemberAdded     ProjectChange = "member_added"
	ProjectMemberRemoved   ProjectChange = "member_removed"
)

// ProjectChangedPayload describes a project or membership write.
type ProjectChangedPayload struct {
	Change ProjectChange     `json:"change"`
	UserID string            `json:"user_id,omitempty"`
	Role   domain.MemberRole `json:"role,omitempty"`
}

// SettingsChangedPayload carries the global SLA hours after an update.
type SettingsChangedPayload struct {
	SLAHours map[domain.TicketPriority]int `json:"sla_hours"`
}
