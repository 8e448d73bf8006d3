package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	"github.com/alpi-dev/alpi/internal/repository/memstore"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// harness wires every service over one memstore. Projects p1 and p2 exist;
// po1 owns p1, po2 owns p2, d1 develops on both and d2 only on p1.
type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *memstore.Store
	clock   *clock.Fake
	metrics *observability.Metrics

	ticketRepo       repository.TicketRepository
	notificationRepo repository.NotificationRepository

	mu     sync.Mutex
	events []events.Event

	notifications *NotificationService
	lifecycle     *LifecycleService
	tickets       *TicketService
	users         *UserService
	projects      *ProjectService
	settings      *SettingsService
}

type harnessOption func(*harness)

func withTicketRepo(wrap func(repository.TicketRepository) repository.TicketRepository) harnessOption {
	return func(h *harness) { h.ticketRepo = wrap(h.ticketRepo) }
}

func withNotificationRepo(repo repository.NotificationRepository) harnessOption {
	return func(h *harness) { h.notificationRepo = repo }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := memstore.New()
	for _, p := range []domain.Profile{
		{ID: "admin", FullName: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true},
		{ID: "po1", FullName: "Pat Owner", Email: "pat@example.com", Role: domain.RoleDeveloper, IsActive: true},
		{ID: "po2", FullName: "Quinn Owner", Email: "quinn@example.com", Role: domain.RoleDeveloper, IsActive: true},
		{ID: "d1", FullName: "D1", Email: "d1@example.com", Role: domain.RoleDeveloper, IsActive: true},
		{ID: "d2", FullName: "D2", Email: "d2@example.com", Role: domain.RoleDeveloper, IsActive: true},
		{ID: "outsider", Email: "out@example.com", Role: domain.RoleDeveloper, IsActive: true},
		{ID: "gone", FullName: "Gone Dev", Email: "gone@example.com", Role: domain.RoleDeveloper, IsActive: false},
	} {
		store.PutProfile(p)
	}
	store.PutProject(domain.Project{ID: "p1", Name: "Portal", Slug: "portal"})
	store.PutProject(domain.Project{ID: "p2", Name: "Billing", Slug: "billing",
		SLAHours: map[domain.TicketPriority]int{domain.TicketPriorityP0Critical: 2}})
	store.AddMember("p1", "po1", domain.MemberRolePO)
	store.AddMember("p2", "po2", domain.MemberRolePO)
	store.AddMember("p1", "d1", domain.MemberRoleDeveloper)
	store.AddMember("p2", "d1", domain.MemberRoleDeveloper)
	store.AddMember("p1", "d2", domain.MemberRoleDeveloper)
	store.AddMember("p1", "gone", domain.MemberRoleDeveloper)

	h := &harness{
		t:                t,
		ctx:              context.Background(),
		store:            store,
		clock:            clock.NewFake(testStart),
		metrics:          observability.NewMetrics(),
		ticketRepo:       store.Tickets(),
		notificationRepo: store.Notifications(),
	}
	for _, opt := range opts {
		opt(h)
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
			return nil
		})
	}

	roles := NewRoleResolver(store.Users(), store.Projects())
	sla := NewSLAService(config.SLAConfig{}, store.Settings())
	h.notifications = NewNotificationService(config.NotificationConfig{}, NotificationDependencies{
		NotificationRepo: h.notificationRepo,
		UserRepo:         store.Users(),
		ProjectRepo:      store.Projects(),
		Clock:            h.clock,
		Dispatcher:       dispatcher,
		Metrics:          h.metrics,
	})
	h.lifecycle = NewLifecycleService(LifecycleDependencies{
		TicketRepo:   h.ticketRepo,
		UserRepo:     store.Users(),
		ProjectRepo:  store.Projects(),
		TaskRepo:     store.ReassignmentTasks(),
		Roles:        roles,
		SLA:          sla,
		Notification: h.notifications,
		Clock:        h.clock,
		Dispatcher:   dispatcher,
		Metrics:      h.metrics,
	})
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   h.ticketRepo,
		CommentRepo:  store.Comments(),
		UserRepo:     store.Users(),
		ProjectRepo:  store.Projects(),
		Roles:        roles,
		SLA:          sla,
		Lifecycle:    h.lifecycle,
		Notification: h.notifications,
		Clock:        h.clock,
		Dispatcher:   dispatcher,
		Metrics:      h.metrics,
	})
	h.users = NewUserService(UserDependencies{
		UserRepo:     store.Users(),
		TicketRepo:   h.ticketRepo,
		CommentRepo:  store.Comments(),
		ProjectRepo:  store.Projects(),
		TaskRepo:     store.ReassignmentTasks(),
		Notification: h.notifications,
		Clock:        h.clock,
		Dispatcher:   dispatcher,
		Metrics:      h.metrics,
	})
	h.projects = NewProjectService(ProjectDependencies{
		ProjectRepo: store.Projects(),
		UserRepo:    store.Users(),
		Roles:       roles,
		SLA:         sla,
		Clock:       h.clock,
		Dispatcher:  dispatcher,
		Metrics:     h.metrics,
	})
	h.settings = NewSettingsService(SettingsDependencies{
		SettingsRepo: store.Settings(),
		SLA:          sla,
		Clock:        h.clock,
		Dispatcher:   dispatcher,
		Metrics:      h.metrics,
	})
	return h
}

func (h *harness) profile(id string) *domain.Profile {
	h.t.Helper()
	p, err := h.store.Users().GetByID(h.ctx, id)
	if err != nil {
		h.t.Fatalf("profile %s: %v", id, err)
	}
	return p
}

func (h *harness) createTicket(projectID, title string) *domain.Ticket {
	h.t.Helper()
	owner := "po1"
	if projectID == "p2" {
		owner = "po2"
	}
	ticket, err := h.tickets.CreateTicket(h.ctx, h.profile(owner), TicketCreateInput{ProjectID: projectID, Title: title})
	if err != nil {
		h.t.Fatalf("CreateTicket(%s) error = %v", title, err)
	}
	return ticket
}

func (h *harness) ticket(id int64) *domain.Ticket {
	h.t.Helper()
	ticket, err := h.store.Tickets().GetByID(h.ctx, id)
	if err != nil {
		h.t.Fatalf("ticket %d: %v", id, err)
	}
	return ticket
}

func (h *harness) comments(ticketID int64) []domain.TicketComment {
	h.t.Helper()
	comments, err := h.store.Comments().ListByTicket(h.ctx, ticketID)
	if err != nil {
		h.t.Fatalf("comments %d: %v", ticketID, err)
	}
	return comments
}

func (h *harness) inbox(userID string) []domain.Notification {
	h.t.Helper()
	items, err := h.store.Notifications().ListByUser(h.ctx, userID, false, 0)
	if err != nil {
		h.t.Fatalf("inbox %s: %v", userID, err)
	}
	return items
}

func (h *harness) eventsOf(et events.EventType) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, e := range h.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

// failingNotifications rejects every insert.
type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *domain.Notification) error {
	return errors.New("notifications table unavailable")
}

// racingTickets runs race once right before the first conditional write,
// simulating a concurrent editor.
type racingTickets struct {
	repository.TicketRepository
	once sync.Once
	race func()
}

func (r *racingTickets) ApplyTransition(ctx context.Context, ticket *domain.Ticket, comment *domain.TicketComment) error {
	r.once.Do(r.race)
	return r.TicketRepository.ApplyTransition(ctx, ticket, comment)
}
