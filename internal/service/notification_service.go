package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// NotificationService writes inbox rows and hands them to push delivery.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	projects      repository.ProjectRepository
	clock         clock.Clock
	cfg           config.NotificationConfig
	effects       sideEffects
}

// NotificationDependencies bundles repositories for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	ProjectRepo      repository.ProjectRepository
	Clock            clock.Clock
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Metrics          observability.Recorder
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.NotificationConfig, deps NotificationDependencies) *NotificationService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		projects:      deps.ProjectRepo,
		clock:         clk,
		cfg:           cfg,
		effects:       newSideEffects(deps.Dispatcher, deps.Logger, deps.Metrics),
	}
}

// Notify stores one notification per distinct recipient. It is best-effort:
// a failed write is logged and counted and the remaining recipients are
// still notified. It reports how many rows were written.
func (n *NotificationService) Notify(ctx context.Context, actorID string, recipients []string, ticketID *int64, kind domain.NotificationType, message string) int {
	written := 0
	seen := make(map[string]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		record := &domain.Notification{
			UserID:    userID,
			TicketID:  ticketID,
			Type:      kind,
			Message:   message,
			CreatedAt: n.clock.Now(),
		}
		if err := n.notifications.Create(ctx, record); err != nil {
			n.effects.failed(sideEffectNotification, err,
				zap.String("user_id", userID),
				zap.Int64p("ticket_id", ticketID),
				zap.String("notification_type", string(kind)))
			continue
		}
		written++

		event := events.New(events.EventNotificationCreated, actorID, record.CreatedAt, events.NotificationCreatedPayload{
			NotificationID: record.ID,
			UserID:         userID,
			Type:           kind,
			Message:        message,
		})
		event.TicketID = ticketID
		n.effects.publishEvent(ctx, event)
	}
	return written
}

// ProjectOwnersAndAdmins returns the ids of the project's active PO members
// followed by every active global admin, without duplicates.
func (n *NotificationService) ProjectOwnersAndAdmins(ctx context.Context, projectID string) ([]string, error) {
	members, err := n.projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, mapRepoError(err, "project", map[string]any{"project_id": projectID})
	}
	admins, err := n.users.ListByRole(ctx, domain.RoleAdmin, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, m := range projectOwners(members) {
		add(m.UserID)
	}
	for _, a := range admins {
		add(a.ID)
	}
	return ids, nil
}

// projectOwners filters members down to active PO members.
func projectOwners(members []domain.ProjectMember) []domain.ProjectMember {
	var out []domain.ProjectMember
	for _, m := range members {
		if m.Role != domain.MemberRolePO {
			continue
		}
		if m.Profile != nil && !m.Profile.IsActive {
			continue
		}
		out = append(out, m)
	}
	return out
}

// notifyOwners is the best-effort fan-out to project owners and admins.
func (n *NotificationService) notifyOwners(ctx context.Context, actorID string, ticket *domain.Ticket, kind domain.NotificationType, message string) {
	recipients, err := n.ProjectOwnersAndAdmins(ctx, ticket.ProjectID)
	if err != nil {
		n.effects.failed(sideEffectNotification, err, zap.Int64("ticket_id", ticket.ID))
		return
	}
	id := ticket.ID
	n.Notify(ctx, actorID, recipients, &id, kind, message)
}

// ListForUser returns the actor's notifications, newest first.
func (n *NotificationService) ListForUser(ctx context.Context, actor *domain.Profile, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	items, err := n.notifications.ListByUser(ctx, actor.ID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead marks one notification read. Only its recipient may do that.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.Profile, notificationID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	details := map[string]any{"notification_id": notificationID}
	record, err := n.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return mapRepoError(err, "notification", details)
	}
	if record.UserID != actor.ID {
		return apperrors.NewPermissionDenied("notification belongs to another user", details)
	}
	if record.IsRead {
		return nil
	}
	return mapRepoError(n.notifications.MarkRead(ctx, notificationID), "notification", details)
}

// MarkAllRead marks every unread notification of the actor read.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor *domain.Profile) (int64, error) {
	if actor == nil {
		return 0, apperrors.NewUnauthorized("authentication required")
	}
	count, err := n.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// RegisterHandlers subscribes push delivery to the dispatcher.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventNotificationCreated, n.handleNotificationCreated)
	dispatcher.Subscribe(events.EventTicketChanged, n.handleTicketChanged)
	dispatcher.Subscribe(events.EventUserDeactivated, n.handleUserDeactivated)
}

func (n *NotificationService) handleNotificationCreated(ctx context.Context, event events.Event) error {
	n.effects.logger.Debug("NotificationCreated", zap.Int64p("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketChanged(ctx context.Context, event events.Event) error {
	n.effects.logger.Info("TicketChanged", zap.Int64p("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleUserDeactivated(ctx context.Context, event events.Event) error {
	n.effects.logger.Info("UserDeactivated", zap.String("actor_id", event.ActorID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.effects.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Int64p("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.effects.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Int64p("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
