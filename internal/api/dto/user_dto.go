package dto

import (
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
)

// UserResponse is the public view of a profile. Inactive users keep
// appearing in history with IsActive false.
type UserResponse struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	FullName      string      `json:"full_name"`
	DisplayName   string      `json:"display_name"`
	Role          domain.Role `json:"role"`
	AvatarURL     *string     `json:"avatar_url"`
	IsActive      bool        `json:"is_active"`
	DeactivatedAt *time.Time  `json:"deactivated_at"`
}

// ReactivateUserRequest optionally changes the role while reactivating.
type ReactivateUserRequest struct {
	Role *domain.Role `json:"role"`
}

// ChangeRoleRequest payload.
type ChangeRoleRequest struct {
	Role domain.Role `json:"role"`
}

// DeactivationResponse summarizes the deactivation cascade.
type DeactivationResponse struct {
	User              UserResponse `json:"user"`
	AffectedTickets   []int64      `json:"affected_tickets"`
	CommentsWritten   int          `json:"comments_written"`
	TasksCreated      int          `json:"tasks_created"`
	NotificationsSent int          `json:"notifications_sent"`
}

// ReassignmentTaskResponse is an open follow-up for a project owner.
type ReassignmentTaskResponse struct {
	ID                string    `json:"id"`
	TicketID          int64     `json:"ticket_id"`
	DeactivatedUserID string    `json:"deactivated_user_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// AuthResponse is returned when a token is issued.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
