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

// TicketService coordinates ticket creation, reading, comments and ordering.
// Status changes go through LifecycleService.
type TicketService struct {
	tickets   repository.TicketRepository
	comments  repository.CommentRepository
	users     repository.UserRepository
	projects  repository.ProjectRepository
	roles     *RoleResolver
	sla       *SLAService
	lifecycle *LifecycleService
	notifier  *NotificationService
	clock     clock.Clock
	effects   sideEffects
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	UserRepo     repository.UserRepository
	ProjectRepo  repository.ProjectRepository
	Roles        *RoleResolver
	SLA          *SLAService
	Lifecycle    *LifecycleService
	Notification *NotificationService
	Clock        clock.Clock
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      observability.Recorder
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ProjectID   string
	Title       string
	Description string
	Priority    domain.TicketPriority
	AssigneeID  *string
	ReportLink  *string
}

// TicketListFilter describes project listing filters.
type TicketListFilter struct {
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketSummary is one row of a project listing.
type TicketSummary struct {
	Ticket domain.Ticket
	SLA    lifecycle.SLAStatus
}

// CommentView is a thread entry with its author.
type CommentView struct {
	Comment        domain.TicketComment
	Author         *domain.Profile
	AuthorInactive bool
}

// TicketView is the detail page of one ticket.
type TicketView struct {
	Ticket           domain.Ticket
	Assignee         *domain.Profile
	AssigneeInactive bool
	SLA              lifecycle.SLAStatus
	Comments         []CommentView
	Available        []lifecycle.Transition
}

// Move directions for MoveTicket.
const (
	MoveUp   = "up"
	MoveDown = "down"
)

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		comments:  deps.CommentRepo,
		users:     deps.UserRepo,
		projects:  deps.ProjectRepo,
		roles:     deps.Roles,
		sla:       deps.SLA,
		lifecycle: deps.Lifecycle,
		notifier:  deps.Notification,
		clock:     clk,
		effects:   newSideEffects(deps.Dispatcher, deps.Logger, deps.Metrics),
	}
}

// CreateTicket files a ticket at the bottom of the project's order. Only a
// PO may name an initial assignee; such tickets start IN_PROGRESS.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Profile, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	details := map[string]any{"project_id": input.ProjectID}
	project, err := s.projects.GetByID(ctx, input.ProjectID)
	if err != nil {
		return nil, mapRepoError(err, "project", details)
	}
	caps, err := s.roles.resolve(ctx, actor, project.ID)
	if err != nil {
		return nil, err
	}
	if !caps.IsPO && !caps.IsDeveloper {
		return nil, apperrors.NewPermissionDenied("not a member of this project", details)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", details)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityP2Medium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	var assignee *domain.Profile
	if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" {
		if !caps.IsPO {
			return nil, apperrors.NewPermissionDenied("only a product owner can assign on creation", details)
		}
		assignee, err = s.lifecycle.assignableTarget(ctx, project.ID, strings.TrimSpace(*input.AssigneeID))
		if err != nil {
			return nil, err
		}
	}

	hours, err := s.sla.HoursFor(ctx, priority, project)
	if err != nil {
		return nil, err
	}
	highest, err := s.tickets.MaxSortOrder(ctx, project.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.clock.Now()
	deadline := lifecycle.Deadline(now, hours)
	ticket := &domain.Ticket{
		ProjectID:   project.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   actor.ID,
		SortOrder:   highest + 1,
		SLADeadline: &deadline,
		ReportLink:  trimmedOrNil(input.ReportLink),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if assignee != nil {
		id := assignee.ID
		ticket.AssignedTo = &id
		ticket.Status = domain.TicketStatusInProgress
	}
	if err := lifecycle.CheckInvariants(ticket); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if assignee != nil {
		id := ticket.ID
		s.notifier.Notify(ctx, actor.ID, []string{assignee.ID}, &id, domain.NotificationAssigned,
			fmt.Sprintf("You were assigned to ticket #%d: %s", ticket.ID, ticket.Title))
	}
	s.effects.publishEvent(ctx, events.New(events.EventTicketCreated, actor.ID, now, events.TicketCreatedPayload{
		Title:      ticket.Title,
		Priority:   ticket.Priority,
		Status:     ticket.Status,
		AssignedTo: ticket.AssignedTo,
	}).ForTicket(ticket))
	return ticket, nil
}

// GetTicket returns the ticket with its thread, SLA and the actor's
// available transitions.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.Profile, ticketID int64) (*TicketView, error) {
	ticket, caps, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*domain.Profile)
	lookup := func(id string) *domain.Profile {
		if p, ok := profiles[id]; ok {
			return p
		}
		p, err := s.users.GetByID(ctx, id)
		if err != nil {
			s.effects.logger.Debug("profile lookup failed", zap.String("user_id", id), zap.Error(err))
			p = nil
		}
		profiles[id] = p
		return p
	}

	view := &TicketView{
		Ticket:    *ticket,
		SLA:       lifecycle.EvaluateSLA(ticket, s.clock.Now()),
		Available: lifecycle.Available(caps, ticket),
	}
	if ticket.AssignedTo != nil {
		view.Assignee = lookup(*ticket.AssignedTo)
		view.AssigneeInactive = view.Assignee != nil && !view.Assignee.IsActive
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	view.Comments = make([]CommentView, 0, len(comments))
	for _, c := range comments {
		author := lookup(c.AuthorID)
		view.Comments = append(view.Comments, CommentView{
			Comment:        c,
			Author:         author,
			AuthorInactive: author != nil && !author.IsActive,
		})
	}
	return view, nil
}

// ListProjectTickets returns the project's tickets in display order.
func (s *TicketService) ListProjectTickets(ctx context.Context, actor *domain.Profile, projectID string, filter TicketListFilter) ([]TicketSummary, error) {
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
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		ProjectID:  projectID,
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.clock.Now()
	out := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		out = append(out, TicketSummary{Ticket: tickets[i], SLA: lifecycle.EvaluateSLA(&tickets[i], now)})
	}
	return out, nil
}

// EditDetails replaces title, description and report link.
func (s *TicketService) EditDetails(ctx context.Context, actor *domain.Profile, ticketID int64, title, description string, reportLink *string) (*domain.Ticket, error) {
	return s.lifecycle.Execute(ctx, actor, ticketID, lifecycle.Request{
		Transition:  lifecycle.TransitionEditDetails,
		Title:       title,
		Description: description,
		ReportLink:  reportLink,
	})
}

// AddComment appends a user comment to the thread.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.Profile, ticketID int64, body string) (*domain.TicketComment, error) {
	ticket, _, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment is required", map[string]any{"ticket_id": ticketID})
	}

	comment := &domain.TicketComment{
		TicketID:  ticket.ID,
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: s.clock.Now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	s.effects.publishEvent(ctx, events.New(events.EventTicketCommentAdded, actor.ID, comment.CreatedAt, events.TicketCommentAddedPayload{
		CommentID:   comment.ID,
		AuthorID:    actor.ID,
		BodyPreview: stringPreview(comment.Body, 120),
	}).ForTicket(ticket))
	return comment, nil
}

// MoveTicket swaps the ticket with its neighbour in visibleIDs, the order
// the caller currently sees. Moving past either end is a no-op.
func (s *TicketService) MoveTicket(ctx context.Context, actor *domain.Profile, ticketID int64, direction string, visibleIDs []int64) error {
	idx := -1
	for i, id := range visibleIDs {
		if id == ticketID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.NewValidationError("ticket is not in the visible list", map[string]any{"ticket_id": ticketID})
	}

	var neighbour int
	switch direction {
	case MoveUp:
		neighbour = idx - 1
	case MoveDown:
		neighbour = idx + 1
	default:
		return apperrors.NewValidationError("direction must be up or down", map[string]any{"direction": direction})
	}
	if neighbour < 0 || neighbour >= len(visibleIDs) {
		return nil
	}
	return s.SwapOrder(ctx, actor, ticketID, visibleIDs[neighbour])
}

// SwapOrder exchanges the sort order of two tickets of the same project.
func (s *TicketService) SwapOrder(ctx context.Context, actor *domain.Profile, a, b int64) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	details := map[string]any{"ticket_id": a, "other_ticket_id": b}
	if a == b {
		return apperrors.NewValidationError("cannot swap a ticket with itself", details)
	}
	first, err := s.tickets.GetByID(ctx, a)
	if err != nil {
		return mapRepoError(err, "ticket", details)
	}
	second, err := s.tickets.GetByID(ctx, b)
	if err != nil {
		return mapRepoError(err, "ticket", details)
	}
	if first.ProjectID != second.ProjectID {
		return apperrors.NewValidationError("tickets belong to different projects", details)
	}
	caps, err := s.roles.resolve(ctx, actor, first.ProjectID)
	if err != nil {
		return err
	}
	if !caps.IsPO {
		return apperrors.NewPermissionDenied("product owner role required", details)
	}
	if err := s.tickets.SwapSortOrder(ctx, a, b); err != nil {
		return mapRepoError(err, "ticket", details)
	}
	return nil
}

// loadVisible loads the ticket and requires the actor to hold a role on its
// project.
func (s *TicketService) loadVisible(ctx context.Context, actor *domain.Profile, ticketID int64) (*domain.Ticket, lifecycle.Capabilities, error) {
	if actor == nil {
		return nil, lifecycle.Capabilities{}, apperrors.NewUnauthorized("authentication required")
	}
	details := map[string]any{"ticket_id": ticketID}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lifecycle.Capabilities{}, mapRepoError(err, "ticket", details)
	}
	caps, err := s.roles.resolve(ctx, actor, ticket.ProjectID)
	if err != nil {
		return nil, lifecycle.Capabilities{}, err
	}
	if !caps.Any() {
		return nil, lifecycle.Capabilities{}, apperrors.NewPermissionDenied("not a member of this project", details)
	}
	return ticket, caps, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
