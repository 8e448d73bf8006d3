package dto

import (
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
)

// CreateProjectRequest payload. OwnerID defaults to the caller.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
}

// UpdateProjectRequest changes the present fields. sla_hours replaces every
// override; a missing or zero priority uses the global default.
type UpdateProjectRequest struct {
	Name        *string                           `json:"name"`
	Description *string                           `json:"description"`
	SLAHours    map[domain.TicketPriority]float64 `json:"sla_hours"`
}

// AddMemberRequest payload. Role defaults to DEVELOPER.
type AddMemberRequest struct {
	UserID string            `json:"user_id"`
	Role   domain.MemberRole `json:"role"`
}

// SLASettingsRequest replaces the global SLA hours.
type SLASettingsRequest struct {
	SLAHours map[domain.TicketPriority]float64 `json:"sla_hours"`
}

// SLASettingsResponse lists the hours in effect per priority.
type SLASettingsResponse struct {
	SLAHours map[domain.TicketPriority]int `json:"sla_hours"`
}

// ProjectResponse is the public view of a project. SLAHours holds only the
// project's own overrides.
type ProjectResponse struct {
	ID          string                        `json:"id"`
	Name        string                        `json:"name"`
	Slug        string                        `json:"slug"`
	Description string                        `json:"description"`
	CreatedBy   string                        `json:"created_by"`
	SLAHours    map[domain.TicketPriority]int `json:"sla_hours"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// ProjectMemberResponse describes one membership.
type ProjectMemberResponse struct {
	ID       string            `json:"id"`
	UserID   string            `json:"user_id"`
	Role     domain.MemberRole `json:"role"`
	JoinedAt time.Time         `json:"joined_at"`
	User     *UserResponse     `json:"user,omitempty"`
}

// ProjectDetailResponse adds members and the SLA hours in effect.
type ProjectDetailResponse struct {
	ProjectResponse
	Members           []ProjectMemberResponse       `json:"members"`
	EffectiveSLAHours map[domain.TicketPriority]int `json:"effective_sla_hours"`
}
