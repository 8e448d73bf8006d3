// Package memstore is an in-memory implementation of the repository
// interfaces. It backs the API when no Postgres DSN is configured and serves
// as the store in service tests. Every method runs under one mutex, so
// ApplyTransition is atomic in the same way the Postgres transaction is.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/repository"
)

// Store holds every table in memory.
type Store struct {
	mu            sync.Mutex
	nextTicketID  int64
	tickets       map[int64]domain.Ticket
	comments      []domain.TicketComment
	notifications []domain.Notification
	tasks         []domain.ReassignmentTask
	profiles      map[string]domain.Profile
	projects      map[string]domain.Project
	members       []domain.ProjectMember
	settings      *domain.GlobalSettings
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nextTicketID: 1,
		tickets:      make(map[int64]domain.Ticket),
		profiles:     make(map[string]domain.Profile),
		projects:     make(map[string]domain.Project),
	}
}

// PutProfile inserts or replaces a profile.
func (s *Store) PutProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = p
}

// PutProject inserts or replaces a project.
func (s *Store) PutProject(p domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// AddMember adds a project membership.
func (s *Store) AddMember(projectID, userID string, role domain.MemberRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, domain.ProjectMember{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	})
}

// SetGlobalSettings replaces the global settings row.
func (s *Store) SetGlobalSettings(g domain.GlobalSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &g
}

// Repositories returns every repository backed by s.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tickets:       s.Tickets(),
		Comments:      s.Comments(),
		Notifications: s.Notifications(),
		Tasks:         s.ReassignmentTasks(),
		Users:         s.Users(),
		Projects:      s.Projects(),
		Settings:      s.Settings(),
	}
}

func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) ReassignmentTasks() repository.ReassignmentTaskRepository { return taskRepo{s} }
func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Projects() repository.ProjectRepository { return projectRepo{s} }
func (s *Store) Settings() repository.SettingsRepository { return settingsRepo{s} }

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.nextTicketID
	r.s.nextTicketID++
	t.Version = 1
	r.s.tickets[t.ID] = t.Clone()
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := t.Clone()
	return &out, nil
}

func (r ticketRepo) ApplyTransition(_ context.Context, t *domain.Ticket, comment *domain.TicketComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != t.Version {
		return repository.ErrVersionConflict
	}
	next := t.Clone()
	// Immutable columns are never overwritten.
	next.ProjectID = stored.ProjectID
	next.CreatedBy = stored.CreatedBy
	next.CreatedAt = stored.CreatedAt
	next.SortOrder = stored.SortOrder
	next.Version = stored.Version + 1
	r.s.tickets[t.ID] = next
	if comment != nil {
		r.s.appendComment(comment)
	}
	t.Version = next.Version
	return nil
}

func (r ticketRepo) SwapSortOrder(_ context.Context, a, b int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ta, okA := r.s.tickets[a]
	tb, okB := r.s.tickets[b]
	if !okA || !okB {
		return repository.ErrNotFound
	}
	ta.SortOrder, tb.SortOrder = tb.SortOrder, ta.SortOrder
	r.s.tickets[a] = ta
	r.s.tickets[b] = tb
	return nil
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := ""
	if f.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*f.SearchTerm))
	}
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if t.ProjectID != f.ProjectID {
			continue
		}
		if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func (r ticketRepo) ListAssignedTo(_ context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if !t.IsAssignedTo(userID) {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, t.Status) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r ticketRepo) MaxSortOrder(_ context.Context, projectID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	highest := int64(-1)
	for _, t := range r.s.tickets {
		if t.ProjectID == projectID && t.SortOrder > highest {
			highest = t.SortOrder
		}
	}
	return highest, nil
}

// appendComment must be called with mu held.
func (s *Store) appendComment(c *domain.TicketComment) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.comments = append(s.comments, *c)
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, c *domain.TicketComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[c.TicketID]; !ok {
		return repository.ErrNotFound
	}
	r.s.appendComment(c)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketComment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketComment
	for _, c := range r.s.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id {
			out := n
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r notificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return paginate(out, 0, limit), nil
}

func (r notificationRepo) MarkRead(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id {
			r.s.notifications[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.notifications {
		if r.s.notifications[i].UserID == userID && !r.s.notifications[i].IsRead {
			r.s.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

type taskRepo struct{ s *Store }

func (r taskRepo) Create(_ context.Context, t *domain.ReassignmentTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.s.tasks = append(r.s.tasks, *t)
	return nil
}

func (r taskRepo) CompleteForTicket(_ context.Context, ticketID int64, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.tasks {
		if r.s.tasks[i].TicketID == ticketID && !r.s.tasks[i].IsCompleted {
			completed := at
			r.s.tasks[i].IsCompleted = true
			r.s.tasks[i].CompletedAt = &completed
			n++
		}
	}
	return n, nil
}

func (r taskRepo) ListOpenByOwner(_ context.Context, ownerID string) ([]domain.ReassignmentTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ReassignmentTask
	for _, t := range r.s.tasks {
		if t.ProjectOwnerID == ownerID && !t.IsCompleted {
			out = append(out, t)
		}
	}
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r userRepo) List(_ context.Context, f repository.UserFilter) ([]domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Profile
	for _, p := range r.s.profiles {
		if f.Role != nil && p.Role != *f.Role {
			continue
		}
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func (r userRepo) ListByRole(ctx context.Context, role domain.Role, activeOnly bool) ([]domain.Profile, error) {
	return r.List(ctx, repository.UserFilter{Role: &role, ActiveOnly: activeOnly})
}

func (r userRepo) Update(_ context.Context, p *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[p.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.profiles[p.ID] = *p
	return nil
}

type projectRepo struct{ s *Store }

func (r projectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.SLAHours = copyHours(p.SLAHours)
	return &p, nil
}

func (r projectRepo) List(_ context.Context, memberID string) ([]domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Project
	for _, p := range r.s.projects {
		if memberID != "" && r.s.memberIndex(p.ID, memberID) < 0 {
			continue
		}
		p.SLAHours = copyHours(p.SLAHours)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r projectRepo) Create(_ context.Context, p *domain.Project, owner *domain.ProjectMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.projects {
		if existing.Slug == p.Slug {
			return repository.ErrDuplicate
		}
	}
	p.ID = uuid.NewString()
	stored := *p
	stored.SLAHours = copyHours(p.SLAHours)
	r.s.projects[p.ID] = stored

	owner.ID = uuid.NewString()
	owner.ProjectID = p.ID
	m := *owner
	m.Profile = nil
	r.s.members = append(r.s.members, m)
	return nil
}

func (r projectRepo) Update(_ context.Context, p *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.projects[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Name = p.Name
	stored.Description = p.Description
	stored.SLAHours = copyHours(p.SLAHours)
	r.s.projects[p.ID] = stored
	return nil
}

func (r projectRepo) AddMember(_ context.Context, m *domain.ProjectMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.memberIndex(m.ProjectID, m.UserID) >= 0 {
		return repository.ErrDuplicate
	}
	m.ID = uuid.NewString()
	stored := *m
	stored.Profile = nil
	r.s.members = append(r.s.members, stored)
	return nil
}

func (r projectRepo) RemoveMember(_ context.Context, projectID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	idx := r.s.memberIndex(projectID, userID)
	if idx < 0 {
		return repository.ErrNotFound
	}
	r.s.members = append(r.s.members[:idx], r.s.members[idx+1:]...)
	return nil
}

// memberIndex must be called with s.mu held.
func (s *Store) memberIndex(projectID, userID string) int {
	for i, m := range s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			return i
		}
	}
	return -1
}

func (r projectRepo) ListMembers(_ context.Context, projectID string) ([]domain.ProjectMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ProjectMember
	for _, m := range r.s.members {
		if m.ProjectID != projectID {
			continue
		}
		if p, ok := r.s.profiles[m.UserID]; ok {
			profile := p
			m.Profile = &profile
		}
		out = append(out, m)
	}
	return out, nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) GetGlobal(_ context.Context) (*domain.GlobalSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil {
		return nil, repository.ErrNotFound
	}
	out := *r.s.settings
	out.SLAHours = copyHours(out.SLAHours)
	return &out, nil
}

func (r settingsRepo) SaveGlobal(_ context.Context, g *domain.GlobalSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	} else if r.s.settings == nil || r.s.settings.ID != g.ID {
		return repository.ErrNotFound
	}
	stored := *g
	stored.SLAHours = copyHours(g.SLAHours)
	r.s.settings = &stored
	return nil
}

func copyHours(in map[domain.TicketPriority]int) map[domain.TicketPriority]int {
	if in == nil {
		return nil
	}
	out := make(map[domain.TicketPriority]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
