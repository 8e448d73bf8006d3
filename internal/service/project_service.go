package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// maxSLAHours caps a configured SLA at ten years.
const maxSLAHours = 87600

// ProjectService manages projects, their memberships and SLA overrides.
type ProjectService struct {
	projects repository.ProjectRepository
	users    repository.UserRepository
	roles    *RoleResolver
	sla      *SLAService
	clock    clock.Clock
	effects  sideEffects
}

// ProjectDependencies bundles collaborators for the project service.
type ProjectDependencies struct {
	ProjectRepo repository.ProjectRepository
	UserRepo    repository.UserRepository
	Roles       *RoleResolver
	SLA         *SLAService
	Clock       clock.Clock
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     observability.Recorder
}

// ProjectCreateInput holds the fields of a new project. OwnerID defaults to
// the actor.
type ProjectCreateInput struct {
	Name        string
	Description string
	OwnerID     string
}

// ProjectUpdateInput changes the non-nil fields. A non-nil SLAHours replaces
// every override; priorities missing from it or set to zero fall back to the
// global settings.
type ProjectUpdateInput struct {
	Name        *string
	Description *string
	SLAHours    map[domain.TicketPriority]float64
}

// ProjectView is a project with its members and the SLA hours in effect.
type ProjectView struct {
	Project      *domain.Project
	Members      []domain.ProjectMember
	EffectiveSLA map[domain.TicketPriority]int
}

// NewProjectService constructs the service.
func NewProjectService(deps ProjectDependencies) *ProjectService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &ProjectService{
		projects: deps.ProjectRepo,
		users:    deps.UserRepo,
		roles:    deps.Roles,
		sla:      deps.SLA,
		clock:    clk,
		effects:  newSideEffects(deps.Dispatcher, deps.Logger, deps.Metrics),
	}
}

// canCreateProjects reports whether the global role allows owning projects.
func canCreateProjects(p *domain.Profile) bool {
	return p != nil && p.IsActive && (p.Role == domain.RoleAdmin || p.Role == domain.RolePO)
}

// CreateProject stores a project and makes the owner its first PO member.
func (s *ProjectService) CreateProject(ctx context.Context, actor *domain.Profile, input ProjectCreateInput) (*domain.Project, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !canCreateProjects(actor) {
		return nil, apperrors.NewPermissionDenied("only product owners and admins can create projects", map[string]any{"user_id": actor.ID})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}

	owner := actor
	if id := strings.TrimSpace(input.OwnerID); id != "" && id != actor.ID {
		details := map[string]any{"owner_id": id}
		profile, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewValidationError("owner does not exist", details)
			}
			return nil, apperrors.MapError(err)
		}
		if !canCreateProjects(profile) {
			return nil, apperrors.NewValidationError("owner must be an active product owner or admin", details)
		}
		owner = profile
	}

	now := s.clock.Now()
	slug := slugify(name)
	if slug == "" {
		slug = fmt.Sprintf("project-%d", now.Unix())
	}
	project := &domain.Project{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   actor.ID,
		CreatedAt:   now,
	}
	member := &domain.ProjectMember{UserID: owner.ID, Role: domain.MemberRolePO, JoinedAt: now}
	if err := s.projects.Create(ctx, project, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("a project with this name already exists", map[string]any{"slug": slug})
		}
		return nil, apperrors.MapError(err)
	}

	s.effects.publishEvent(ctx, events.New(events.EventProjectChanged, actor.ID, now, events.ProjectChangedPayload{
		Change: events.ProjectCreated,
		UserID: owner.ID,
		Role:   domain.MemberRolePO,
	}).ForProject(project.ID))
	s.effects.logger.Info("project created",
		zap.String("project_id", project.ID),
		zap.String("slug", project.Slug),
		zap.String("owner_id", owner.ID))
	return project, nil
}

// ListProjects returns every project to admins and product owners and the
// member projects to everyone else.
func (s *ProjectService) ListProjects(ctx context.Context, actor *domain.Profile) ([]domain.Project, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	memberID := actor.ID
	if canCreateProjects(actor) {
		memberID = ""
	}
	projects, err := s.projects.List(ctx, memberID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return projects, nil
}

// GetProject returns the project with its members. Any project role may read it.
func (s *ProjectService) GetProject(ctx context.Context, actor *domain.Profile, projectID string) (*ProjectView, error) {
	project, _, err := s.load(ctx, actor, projectID, false)
	if err != nil {
		return nil, err
	}
	members, err := s.projects.ListMembers(ctx, project.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	policy, err := s.sla.Policy(ctx)
	if err != nil {
		return nil, err
	}
	effective := make(map[domain.TicketPriority]int, len(domain.TicketPriorities))
	for _, priority := range domain.TicketPriorities {
		effective[priority] = policy.Hours(priority, project)
	}
	return &ProjectView{Project: project, Members: members, EffectiveSLA: effective}, nil
}

// UpdateProject edits name, description and SLA overrides. New overrides
// apply to tickets created or re-prioritised afterwards.
func (s *ProjectService) UpdateProject(ctx context.Context, actor *domain.Profile, projectID string, input ProjectUpdateInput) (*domain.Project, error) {
	project, details, err := s.load(ctx, actor, projectID, true)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name is required", details)
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.SLAHours != nil {
		hours, err := wholeSLAHours(input.SLAHours)
		if err != nil {
			return nil, err
		}
		project.SLAHours = hours
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, mapRepoError(err, "project", details)
	}

	s.effects.publishEvent(ctx, events.New(events.EventProjectChanged, actor.ID, s.clock.Now(), events.ProjectChangedPayload{
		Change: events.ProjectSettingsUpdated,
	}).ForProject(project.ID))
	return project, nil
}

// AddMember grants userID a role on the project. Role defaults to DEVELOPER.
func (s *ProjectService) AddMember(ctx context.Context, actor *domain.Profile, projectID, userID string, role domain.MemberRole) (*domain.ProjectMember, error) {
	project, details, err := s.load(ctx, actor, projectID, true)
	if err != nil {
		return nil, err
	}
	details["user_id"] = userID
	if role == "" {
		role = domain.MemberRoleDeveloper
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid member role", map[string]any{"role": role})
	}
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	if !profile.IsActive {
		return nil, apperrors.NewValidationError("user is deactivated", details)
	}

	now := s.clock.Now()
	member := &domain.ProjectMember{ProjectID: project.ID, UserID: profile.ID, Role: role, JoinedAt: now}
	if err := s.projects.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("user is already a member of this project", details)
		}
		return nil, apperrors.MapError(err)
	}
	member.Profile = profile

	s.effects.publishEvent(ctx, events.New(events.EventProjectChanged, actor.ID, now, events.ProjectChangedPayload{
		Change: events.ProjectMemberAdded,
		UserID: profile.ID,
		Role:   role,
	}).ForProject(project.ID))
	return member, nil
}

// RemoveMember revokes userID's membership. Actors cannot remove themselves
// and a project always keeps one PO member.
func (s *ProjectService) RemoveMember(ctx context.Context, actor *domain.Profile, projectID, userID string) error {
	project, details, err := s.load(ctx, actor, projectID, true)
	if err != nil {
		return err
	}
	details["user_id"] = userID
	if userID == actor.ID {
		return apperrors.NewValidationError("you cannot remove yourself from a project", details)
	}

	members, err := s.projects.ListMembers(ctx, project.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	var target *domain.ProjectMember
	owners := 0
	for i := range members {
		if members[i].Role == domain.MemberRolePO {
			owners++
		}
		if members[i].UserID == userID {
			target = &members[i]
		}
	}
	if target == nil {
		return apperrors.NewNotFound("project member", details)
	}
	if target.Role == domain.MemberRolePO && owners == 1 {
		return apperrors.NewConflict("a project needs at least one product owner", details)
	}

	if err := s.projects.RemoveMember(ctx, project.ID, userID); err != nil {
		return mapRepoError(err, "project member", details)
	}
	s.effects.publishEvent(ctx, events.New(events.EventProjectChanged, actor.ID, s.clock.Now(), events.ProjectChangedPayload{
		Change: events.ProjectMemberRemoved,
		UserID: userID,
		Role:   target.Role,
	}).ForProject(project.ID))
	return nil
}

// load fetches the project and checks the actor's role on it. manage asks
// for PO rights, otherwise any role will do.
func (s *ProjectService) load(ctx context.Context, actor *domain.Profile, projectID string, manage bool) (*domain.Project, map[string]any, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	details := map[string]any{"project_id": projectID}
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, nil, mapRepoError(err, "project", details)
	}
	caps, err := s.roles.resolve(ctx, actor, project.ID)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case manage && !caps.IsPO:
		return nil, nil, apperrors.NewPermissionDenied("only a product owner can manage this project", details)
	case !caps.Any():
		return nil, nil, apperrors.NewPermissionDenied("not a member of this project", details)
	}
	return project, details, nil
}

// wholeSLAHours validates SLA hours: known priorities, whole non-negative
// numbers up to maxSLAHours. Zero entries are dropped.
func wholeSLAHours(in map[domain.TicketPriority]float64) (map[domain.TicketPriority]int, error) {
	out := make(map[domain.TicketPriority]int, len(in))
	for priority, hours := range in {
		details := map[string]any{"priority": priority, "hours": hours}
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", details)
		}
		if math.IsNaN(hours) || hours < 0 || hours > maxSLAHours {
			return nil, apperrors.NewValidationError(fmt.Sprintf("SLA hours must be between 0 and %d", maxSLAHours), details)
		}
		if hours != math.Trunc(hours) {
			return nil, apperrors.NewValidationError("SLA hours must be whole hours", details)
		}
		if hours > 0 {
			out[priority] = int(hours)
		}
	}
	return out, nil
}

// slugify lowercases name and joins its letter and digit runs with dashes.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
