// Package lifecycle holds the ticket state machine: the transition table,
// role guards, the pure mutation applied by each transition and SLA
// evaluation. It performs no I/O; service.LifecycleService loads tickets,
// resolves capabilities and persists the result.
package lifecycle

import "github.com/alpi-dev/alpi/internal/domain"

// Capabilities is the resolved permission set of one actor on one project.
type Capabilities struct {
	UserID      string
	Active      bool
	IsAdmin     bool
	IsPO        bool
	IsDeveloper bool
}

// Any reports whether the actor holds at least one role on the project.
func (c Capabilities) Any() bool {
	return c.Active && (c.IsAdmin || c.IsPO || c.IsDeveloper)
}

// ResolveCapabilities merges the global role with the project membership
// role. members may contain other users' rows; only profile's rows count.
// Inactive profiles resolve to an empty permission set.
func ResolveCapabilities(profile *domain.Profile, members []domain.ProjectMember) Capabilities {
	if profile == nil {
		return Capabilities{}
	}
	caps := Capabilities{UserID: profile.ID, Active: profile.IsActive}
	if !profile.IsActive {
		return caps
	}

	switch profile.Role {
	case domain.RoleAdmin:
		caps.IsAdmin = true
		caps.IsPO = true
		caps.IsDeveloper = true
	case domain.RolePO:
		caps.IsPO = true
	}

	for _, m := range members {
		if m.UserID != profile.ID {
			continue
		}
		switch m.Role {
		case domain.MemberRolePO:
			caps.IsPO = true
		case domain.MemberRoleDeveloper:
			caps.IsDeveloper = true
		}
	}
	return caps
}
