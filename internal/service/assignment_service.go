package service

import (
	"context"
	"sort"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// Assign gives the ticket to assigneeID, who must be in the project's
// assignable pool. Open reassignment tasks for the ticket are completed.
func (s *LifecycleService) Assign(ctx context.Context, actor *domain.Profile, ticketID int64, assigneeID string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionAssign, AssigneeID: assigneeID})
}

// AssignableUsers returns the pool a PO can assign project tickets to:
// active global admins, active global POs and active developer members.
func (s *LifecycleService) AssignableUsers(ctx context.Context, actor *domain.Profile, projectID string) ([]domain.Profile, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	caps, err := s.roles.resolve(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !caps.Any() {
		return nil, apperrors.NewPermissionDenied("not a member of this project", map[string]any{"project_id": projectID})
	}
	return s.assignablePool(ctx, projectID)
}

func (s *LifecycleService) assignablePool(ctx context.Context, projectID string) ([]domain.Profile, error) {
	members, err := s.projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, mapRepoError(err, "project", map[string]any{"project_id": projectID})
	}

	pool := make(map[string]domain.Profile)
	for _, m := range members {
		if m.Role == domain.MemberRoleDeveloper && m.Profile != nil && m.Profile.IsActive {
			pool[m.UserID] = *m.Profile
		}
	}
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RolePO} {
		profiles, err := s.users.ListByRole(ctx, role, true)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for _, p := range profiles {
			pool[p.ID] = p
		}
	}

	out := make([]domain.Profile, 0, len(pool))
	for _, p := range pool {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DisplayName(), out[j].DisplayName()
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// assignableTarget loads userID and checks it against the project's pool.
func (s *LifecycleService) assignableTarget(ctx context.Context, projectID, userID string) (*domain.Profile, error) {
	details := map[string]any{"project_id": projectID, "assignee_id": userID}
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	if !profile.IsActive {
		return nil, apperrors.NewValidationError("inactive users cannot be assigned", details)
	}
	if profile.Role == domain.RoleAdmin || profile.Role == domain.RolePO {
		return profile, nil
	}
	members, err := s.projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, mapRepoError(err, "project", map[string]any{"project_id": projectID})
	}
	for _, m := range members {
		if m.UserID == profile.ID && m.Role == domain.MemberRoleDeveloper {
			return profile, nil
		}
	}
	return nil, apperrors.NewValidationError("user is not a developer on this project", details)
}
