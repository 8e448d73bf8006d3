package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// UserService manages user administration and the deactivation cascade.
type UserService struct {
	users    repository.UserRepository
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	projects repository.ProjectRepository
	tasks    repository.ReassignmentTaskRepository
	notifier *NotificationService
	clock    clock.Clock
	effects  sideEffects
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo     repository.UserRepository
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	ProjectRepo  repository.ProjectRepository
	TaskRepo     repository.ReassignmentTaskRepository
	Notification *NotificationService
	Clock        clock.Clock
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      observability.Recorder
}

// DeactivationResult reports what the cascade wrote.
type DeactivationResult struct {
	User              *domain.Profile
	AffectedTickets   []int64
	CommentsWritten   int
	TasksCreated      int
	NotificationsSent int
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &UserService{
		users:    deps.UserRepo,
		tickets:  deps.TicketRepo,
		comments: deps.CommentRepo,
		projects: deps.ProjectRepo,
		tasks:    deps.TaskRepo,
		notifier: deps.Notification,
		clock:    clk,
		effects:  newSideEffects(deps.Dispatcher, deps.Logger, deps.Metrics),
	}
}

func requireAdmin(actor *domain.Profile) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.IsActive || actor.Role != domain.RoleAdmin {
		return apperrors.NewPermissionDenied("admin role required", map[string]any{"user_id": actor.ID})
	}
	return nil
}

// ListUsers returns profiles matching filter.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.Profile, filter repository.UserFilter) ([]domain.Profile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// DeactivateUser marks the user inactive, then asks the owners of every
// project holding one of the user's open tickets to reassign it. The tickets
// themselves are left untouched.
func (s *UserService) DeactivateUser(ctx context.Context, actor *domain.Profile, userID string) (*DeactivationResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	details := map[string]any{"user_id": userID}
	if actor.ID == userID {
		return nil, apperrors.NewValidationError("you cannot deactivate yourself", details)
	}
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	if !target.IsActive {
		return nil, apperrors.NewConflict("user is already inactive", details)
	}

	now := s.clock.Now()
	target.IsActive = false
	target.DeactivatedAt = &now
	if err := s.users.Update(ctx, target); err != nil {
		return nil, mapRepoError(err, "user", details)
	}

	result := &DeactivationResult{User: target}
	s.requestReassignment(ctx, actor, target, now, result)

	s.effects.publishEvent(ctx, events.New(events.EventUserDeactivated, actor.ID, now, events.UserDeactivatedPayload{
		UserID:          target.ID,
		AffectedTickets: result.AffectedTickets,
	}))
	s.effects.logger.Info("user deactivated",
		zap.String("user_id", target.ID),
		zap.String("actor_id", actor.ID),
		zap.Int("affected_tickets", len(result.AffectedTickets)))
	return result, nil
}

func (s *UserService) requestReassignment(ctx context.Context, actor, target *domain.Profile, now time.Time, result *DeactivationResult) {
	tickets, err := s.tickets.ListAssignedTo(ctx, target.ID, domain.ActiveTicketStatuses)
	if err != nil {
		s.effects.failed(sideEffectTask, err, zap.String("user_id", target.ID))
		return
	}

	owners := make(map[string][]domain.ProjectMember)
	for _, ticket := range tickets {
		projectOwnersOf, ok := owners[ticket.ProjectID]
		if !ok {
			members, err := s.projects.ListMembers(ctx, ticket.ProjectID)
			if err != nil {
				s.effects.failed(sideEffectTask, err, zap.Int64("ticket_id", ticket.ID), zap.String("project_id", ticket.ProjectID))
				continue
			}
			projectOwnersOf = projectOwners(members)
			owners[ticket.ProjectID] = projectOwnersOf
		}
		result.AffectedTickets = append(result.AffectedTickets, ticket.ID)

		comment := &domain.TicketComment{
			TicketID:          ticket.ID,
			AuthorID:          actor.ID,
			Body:              fmt.Sprintf("%s was deactivated. This ticket needs to be reassigned by the project owner.", target.DisplayName()),
			IsSystemGenerated: true,
			CreatedAt:         now,
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			s.effects.failed(sideEffectComment, err, zap.Int64("ticket_id", ticket.ID))
		} else {
			result.CommentsWritten++
		}

		ticketID := ticket.ID
		message := fmt.Sprintf("User %s was deactivated. Ticket #%d \"%s\" needs to be reassigned.", target.DisplayName(), ticket.ID, ticket.Title)
		for _, owner := range projectOwnersOf {
			task := &domain.ReassignmentTask{
				TicketID:          ticket.ID,
				ProjectOwnerID:    owner.UserID,
				DeactivatedUserID: target.ID,
				CreatedAt:         now,
			}
			if err := s.tasks.Create(ctx, task); err != nil {
				s.effects.failed(sideEffectTask, err, zap.Int64("ticket_id", ticket.ID), zap.String("owner_id", owner.UserID))
			} else {
				result.TasksCreated++
			}
			result.NotificationsSent += s.notifier.Notify(ctx, actor.ID, []string{owner.UserID}, &ticketID,
				domain.NotificationReassignmentNeeded, message)
		}
	}
}

// ReactivateUser restores access. A non-nil role replaces the global role.
func (s *UserService) ReactivateUser(ctx context.Context, actor *domain.Profile, userID string, role *domain.Role) (*domain.Profile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	details := map[string]any{"user_id": userID}
	if role != nil && !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *role})
	}
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	if target.IsActive {
		return nil, apperrors.NewConflict("user is already active", details)
	}
	target.IsActive = true
	target.DeactivatedAt = nil
	if role != nil {
		target.Role = *role
	}
	if err := s.users.Update(ctx, target); err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	return target, nil
}

// ChangeRole sets the global role of another user.
func (s *UserService) ChangeRole(ctx context.Context, actor *domain.Profile, userID string, role domain.Role) (*domain.Profile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	details := map[string]any{"user_id": userID}
	if actor.ID == userID {
		return nil, apperrors.NewValidationError("you cannot change your own role", details)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	if target.Role == role {
		return target, nil
	}
	target.Role = role
	if err := s.users.Update(ctx, target); err != nil {
		return nil, mapRepoError(err, "user", details)
	}
	return target, nil
}

// ListReassignmentTasks returns the actor's open reassignment tasks.
func (s *UserService) ListReassignmentTasks(ctx context.Context, actor *domain.Profile) ([]domain.ReassignmentTask, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	tasks, err := s.tasks.ListOpenByOwner(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tasks, nil
}
