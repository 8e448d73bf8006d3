package domain

import "time"

// Role is the global role carried on a profile.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RolePO        Role = "PO"
	RoleDeveloper Role = "DEVELOPER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePO, RoleDeveloper:
		return true
	}
	return false
}

// Profile is an Alpi user. Deactivated profiles stay referenced by history.
type Profile struct {
	ID            string
	Email         string
	FullName      string
	Role          Role
	AvatarURL     *string
	IsActive      bool
	DeactivatedAt *time.Time
	CreatedAt     time.Time
}

// DisplayName returns the full name, falling back to the email.
func (p *Profile) DisplayName() string {
	if p == nil {
		return "unknown user"
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
