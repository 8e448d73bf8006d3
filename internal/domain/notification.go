package domain

import "time"

// NotificationType identifies why a user is being alerted.
type NotificationType string

const (
	NotificationAssigned              NotificationType = "assigned"
	NotificationUnassigned            NotificationType = "unassigned"
	NotificationStatusChanged         NotificationType = "status_changed"
	NotificationCommented             NotificationType = "commented"
	NotificationCancellationRequested NotificationType = "cancellation_requested"
	NotificationMentioned             NotificationType = "mentioned"
	NotificationReassignmentNeeded    NotificationType = "reassignment_needed"
)

// Notification is a fan-out record addressed to a single recipient.
type Notification struct {
	ID        string
	UserID    string
	TicketID  *int64
	Type      NotificationType
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// ReassignmentTask tracks a ticket whose assignee was deactivated and which a
// project owner must reassign.
type ReassignmentTask struct {
	ID                string
	TicketID          int64
	ProjectOwnerID    string
	DeactivatedUserID string
	IsCompleted       bool
	CreatedAt         time.Time
	CompletedAt       *time.Time
}
