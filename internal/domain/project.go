package domain

import "time"

// MemberRole is the role a user holds inside one project.
type MemberRole string

const (
	MemberRolePO        MemberRole = "PO"
	MemberRoleDeveloper MemberRole = "DEVELOPER"
)

// Valid reports whether r is a known membership role.
func (r MemberRole) Valid() bool {
	return r == MemberRolePO || r == MemberRoleDeveloper
}

// Project groups tickets and carries optional per-priority SLA overrides.
type Project struct {
	ID          string
	Name        string
	Slug        string
	Description string
	CreatedBy   string
	SLAHours    map[TicketPriority]int
	CreatedAt   time.Time
}

// ProjectMember links a profile to a project.
type ProjectMember struct {
	ID        string
	ProjectID string
	UserID    string
	Role      MemberRole
	JoinedAt  time.Time
	Profile   *Profile
}

// GlobalSettings holds the default SLA hours per priority.
type GlobalSettings struct {
	ID        string
	SLAHours  map[TicketPriority]int
	UpdatedAt time.Time
}
