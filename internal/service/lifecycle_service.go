package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// LifecycleService executes ticket transitions. Each call loads the ticket,
// checks the guard, the source status and the inputs, then stores the new
// ticket and its system comment in one conditional write. Notifications,
// task bookkeeping and events follow the write and never fail the call.
type LifecycleService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	projects repository.ProjectRepository
	tasks    repository.ReassignmentTaskRepository
	roles    *RoleResolver
	sla      *SLAService
	notifier *NotificationService
	clock    clock.Clock
	effects  sideEffects
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	ProjectRepo  repository.ProjectRepository
	TaskRepo     repository.ReassignmentTaskRepository
	Roles        *RoleResolver
	SLA          *SLAService
	Notification *NotificationService
	Clock        clock.Clock
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      observability.Recorder
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &LifecycleService{
		tickets:  deps.TicketRepo,
		users:    deps.UserRepo,
		projects: deps.ProjectRepo,
		tasks:    deps.TaskRepo,
		roles:    deps.Roles,
		sla:      deps.SLA,
		notifier: deps.Notification,
		clock:    clk,
		effects:  newSideEffects(deps.Dispatcher, deps.Logger, deps.Metrics),
	}
}

// resolved holds what the store checks looked up for one request.
type resolved struct {
	assignee *domain.Profile
}

// Execute runs req against ticketID on behalf of actor and returns the
// stored ticket.
func (s *LifecycleService) Execute(ctx context.Context, actor *domain.Profile, ticketID int64, req lifecycle.Request) (*domain.Ticket, error) {
	ticket, err := s.execute(ctx, actor, ticketID, req)
	s.effects.metrics.RecordTransition(string(req.Transition), errorCode(err))
	return ticket, err
}

func (s *LifecycleService) execute(ctx context.Context, actor *domain.Profile, ticketID int64, req lifecycle.Request) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	req.ActorID = actor.ID

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	caps, err := s.roles.resolve(ctx, actor, current.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Authorize(req.Transition, caps, current); err != nil {
		return nil, err
	}
	if err := lifecycle.Validate(req); err != nil {
		return nil, err
	}
	res, err := s.resolve(ctx, current, &req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	next, err := lifecycle.Apply(*current, req, now)
	if err != nil {
		return nil, err
	}
	comment := &domain.TicketComment{
		TicketID:          current.ID,
		AuthorID:          actor.ID,
		Body:              systemComment(actor, req, res),
		IsSystemGenerated: true,
		CreatedAt:         now,
	}
	if err := s.tickets.ApplyTransition(ctx, &next, comment); err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID, "version": current.Version})
	}

	s.afterCommit(ctx, actor, current, &next, req, res)
	return &next, nil
}

// resolve runs the checks that need the store and fills request fields the
// caller does not supply.
func (s *LifecycleService) resolve(ctx context.Context, ticket *domain.Ticket, req *lifecycle.Request) (resolved, error) {
	var res resolved
	switch req.Transition {
	case lifecycle.TransitionAssign:
		assignee, err := s.assignableTarget(ctx, ticket.ProjectID, strings.TrimSpace(req.AssigneeID))
		if err != nil {
			return res, err
		}
		req.AssigneeID = assignee.ID
		res.assignee = assignee
	case lifecycle.TransitionEditPriority:
		project, err := s.projects.GetByID(ctx, ticket.ProjectID)
		if err != nil {
			return res, mapRepoError(err, "project", map[string]any{"project_id": ticket.ProjectID})
		}
		hours, err := s.sla.HoursFor(ctx, req.Priority, project)
		if err != nil {
			return res, err
		}
		req.SLAHours = hours
	case lifecycle.TransitionMarkDuplicate:
		if err := s.checkDuplicateTarget(ctx, ticket, req.DuplicateOf); err != nil {
			return res, err
		}
	case lifecycle.TransitionRequestCancellation:
		if req.DuplicateOf != 0 {
			if err := s.checkDuplicateTarget(ctx, ticket, req.DuplicateOf); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (s *LifecycleService) checkDuplicateTarget(ctx context.Context, ticket *domain.Ticket, targetID int64) error {
	details := map[string]any{"ticket_id": ticket.ID, "duplicate_of": targetID}
	if targetID == ticket.ID {
		return apperrors.NewValidationError("a ticket cannot duplicate itself", details)
	}
	if _, err := s.tickets.GetByID(ctx, targetID); err != nil {
		return mapRepoError(err, "duplicate target ticket", details)
	}
	return nil
}

func (s *LifecycleService) afterCommit(ctx context.Context, actor *domain.Profile, before, after *domain.Ticket, req lifecycle.Request, res resolved) {
	name := actor.DisplayName()
	ticketID := after.ID

	switch req.Transition {
	case lifecycle.TransitionUnclaim:
		s.notifier.notifyOwners(ctx, actor.ID, after, domain.NotificationUnassigned,
			fmt.Sprintf("%s returned ticket #%d to pool: \"%s\"", name, ticketID, strings.TrimSpace(req.Text)))
	case lifecycle.TransitionRequestCancellation:
		s.notifier.notifyOwners(ctx, actor.ID, after, domain.NotificationCancellationRequested,
			fmt.Sprintf("%s requested cancellation of ticket #%d: %s%s. \"%s\"",
				name, ticketID, req.RejectionReason.Label(), duplicateNote(req.DuplicateOf), strings.TrimSpace(req.Text)))
	case lifecycle.TransitionAssign:
		s.notifier.Notify(ctx, actor.ID, []string{req.AssigneeID}, &ticketID, domain.NotificationAssigned,
			fmt.Sprintf("You were assigned to ticket #%d: %s", ticketID, after.Title))
		if before.AssignedTo != nil && *before.AssignedTo != req.AssigneeID {
			s.notifier.Notify(ctx, actor.ID, []string{*before.AssignedTo}, &ticketID, domain.NotificationUnassigned,
				fmt.Sprintf("You were unassigned from ticket #%d: %s", ticketID, after.Title))
		}
		if _, err := s.tasks.CompleteForTicket(ctx, ticketID, s.clock.Now()); err != nil {
			s.effects.failed(sideEffectTask, err, zap.Int64("ticket_id", ticketID))
		}
	case lifecycle.TransitionUnblock:
		if after.AssignedTo != nil {
			s.notifier.Notify(ctx, actor.ID, []string{*after.AssignedTo}, &ticketID, domain.NotificationStatusChanged,
				fmt.Sprintf("Ticket #%d was unblocked and is now %s", ticketID, after.Status.Label()))
		}
	}

	s.effects.publishEvent(ctx, events.New(events.EventTicketChanged, actor.ID, after.UpdatedAt, events.TicketChangedPayload{
		Transition:  string(req.Transition),
		OldStatus:   before.Status,
		NewStatus:   after.Status,
		OldAssignee: before.AssignedTo,
		NewAssignee: after.AssignedTo,
		Priority:    after.Priority,
		Version:     after.Version,
	}).ForTicket(after))
}

// systemComment renders the thread entry recorded with a transition.
func systemComment(actor *domain.Profile, req lifecycle.Request, res resolved) string {
	name := actor.DisplayName()
	text := strings.TrimSpace(req.Text)

	switch req.Transition {
	case lifecycle.TransitionClaim:
		return fmt.Sprintf("%s claimed this ticket", name)
	case lifecycle.TransitionUnclaim:
		return fmt.Sprintf("%s returned this ticket to pool: \"%s\"", name, text)
	case lifecycle.TransitionMarkTesting:
		return fmt.Sprintf("%s marked this ticket as ready for testing", name)
	case lifecycle.TransitionRequestCancellation:
		return fmt.Sprintf("%s requested cancellation. Reason: %s%s. Comment: \"%s\"",
			name, req.RejectionReason.Label(), duplicateNote(req.DuplicateOf), text)
	case lifecycle.TransitionAssign:
		return fmt.Sprintf("%s assigned this ticket to %s", name, res.assignee.DisplayName())
	case lifecycle.TransitionEditPriority:
		return fmt.Sprintf("%s changed priority to %s", name, req.Priority.Label())
	case lifecycle.TransitionBlock:
		return fmt.Sprintf("%s marked this ticket as blocked: \"%s\"", name, text)
	case lifecycle.TransitionUnblock:
		return fmt.Sprintf("%s unblocked this ticket", name)
	case lifecycle.TransitionResolve:
		if text == "" {
			return fmt.Sprintf("%s resolved this ticket", name)
		}
		return fmt.Sprintf("%s resolved this ticket: \"%s\"", name, text)
	case lifecycle.TransitionCancel:
		return fmt.Sprintf("%s cancelled this ticket: \"%s\"", name, text)
	case lifecycle.TransitionMarkDuplicate:
		return fmt.Sprintf("%s marked this as duplicate of #%d: \"%s\"", name, req.DuplicateOf, text)
	case lifecycle.TransitionReopen:
		return fmt.Sprintf("%s reopened this ticket: \"%s\"", name, text)
	case lifecycle.TransitionEditDetails:
		return fmt.Sprintf("%s edited ticket details", name)
	}
	return fmt.Sprintf("%s changed this ticket", name)
}

func duplicateNote(duplicateOf int64) string {
	if duplicateOf <= 0 {
		return ""
	}
	return fmt.Sprintf(" (duplicate of #%d)", duplicateOf)
}

// AvailableTransitions lists what actor may do to the ticket right now.
func (s *LifecycleService) AvailableTransitions(ctx context.Context, actor *domain.Profile, ticketID int64) ([]lifecycle.Transition, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	caps, err := s.roles.resolve(ctx, actor, ticket.ProjectID)
	if err != nil {
		return nil, err
	}
	return lifecycle.Available(caps, ticket), nil
}

// Claim assigns an open ticket to the acting developer.
func (s *LifecycleService) Claim(ctx context.Context, actor *domain.Profile, ticketID int64) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionClaim})
}

// Unclaim returns the ticket to the pool. reason is required.
func (s *LifecycleService) Unclaim(ctx context.Context, actor *domain.Profile, ticketID int64, reason string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionUnclaim, Text: reason})
}

func (s *LifecycleService) MarkTesting(ctx context.Context, actor *domain.Profile, ticketID int64) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionMarkTesting})
}

// RequestCancellation blocks the ticket pending a PO decision. duplicateOf
// is only read with the DUPLICATE reason; zero means none.
func (s *LifecycleService) RequestCancellation(ctx context.Context, actor *domain.Profile, ticketID int64, reason domain.RejectionReason, duplicateOf int64, comment string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{
		Transition:      lifecycle.TransitionRequestCancellation,
		RejectionReason: reason,
		DuplicateOf:     duplicateOf,
		Text:            comment,
	})
}

func (s *LifecycleService) EditPriority(ctx context.Context, actor *domain.Profile, ticketID int64, priority domain.TicketPriority) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionEditPriority, Priority: priority})
}

func (s *LifecycleService) Block(ctx context.Context, actor *domain.Profile, ticketID int64, reason string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionBlock, Text: reason})
}

func (s *LifecycleService) Unblock(ctx context.Context, actor *domain.Profile, ticketID int64) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionUnblock})
}

// Resolve closes the ticket as done. note may be empty.
func (s *LifecycleService) Resolve(ctx context.Context, actor *domain.Profile, ticketID int64, note string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionResolve, Text: note})
}

func (s *LifecycleService) Cancel(ctx context.Context, actor *domain.Profile, ticketID int64, reason string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionCancel, Text: reason})
}

func (s *LifecycleService) MarkDuplicate(ctx context.Context, actor *domain.Profile, ticketID, duplicateOf int64, comment string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{
		Transition:  lifecycle.TransitionMarkDuplicate,
		DuplicateOf: duplicateOf,
		Text:        comment,
	})
}

func (s *LifecycleService) Reopen(ctx context.Context, actor *domain.Profile, ticketID int64, reason string) (*domain.Ticket, error) {
	return s.Execute(ctx, actor, ticketID, lifecycle.Request{Transition: lifecycle.TransitionReopen, Text: reason})
}
