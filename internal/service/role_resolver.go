package service

import (
	"context"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/repository"
)

// RoleResolver computes a user's capabilities on a project from the global
// role and the project membership rows.
type RoleResolver struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
}

// NewRoleResolver creates the resolver.
func NewRoleResolver(users repository.UserRepository, projects repository.ProjectRepository) *RoleResolver {
	return &RoleResolver{users: users, projects: projects}
}

// RoleOf loads the profile and memberships of userID and resolves them.
func (r *RoleResolver) RoleOf(ctx context.Context, userID, projectID string) (lifecycle.Capabilities, error) {
	profile, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return lifecycle.Capabilities{}, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	return r.resolve(ctx, profile, projectID)
}

// resolve skips the profile lookup when the caller already holds it.
func (r *RoleResolver) resolve(ctx context.Context, profile *domain.Profile, projectID string) (lifecycle.Capabilities, error) {
	members, err := r.projects.ListMembers(ctx, projectID)
	if err != nil {
		return lifecycle.Capabilities{}, mapRepoError(err, "project", map[string]any{"project_id": projectID})
	}
	return lifecycle.ResolveCapabilities(profile, members), nil
}
