package service

import (
	"testing"
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

func withLead(h *harness) *domain.Profile {
	h.store.PutProfile(domain.Profile{ID: "lead", FullName: "Lee Lead", Email: "lee@example.com", Role: domain.RolePO, IsActive: true})
	return h.profile("lead")
}

func TestCreateProject(t *testing.T) {
	h := newHarness(t)
	withLead(h)
	admin := h.profile("admin")

	project, err := h.projects.CreateProject(h.ctx, admin, ProjectCreateInput{Name: "  Mobile App!  ", Description: " iOS ", OwnerID: "lead"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if project.Name != "Mobile App!" || project.Slug != "mobile-app" || project.Description != "iOS" || project.CreatedBy != "admin" {
		t.Fatalf("project = %+v", project)
	}
	members, err := h.store.Projects().ListMembers(h.ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != "lead" || members[0].Role != domain.MemberRolePO {
		t.Fatalf("members = %+v", members)
	}
	caps, err := h.projects.roles.RoleOf(h.ctx, "lead", project.ID)
	if err != nil || !caps.IsPO {
		t.Fatalf("lead capabilities = %+v, %v", caps, err)
	}
	if n := len(h.eventsOf(events.EventProjectChanged)); n != 1 {
		t.Fatalf("project_changed events = %d, want 1", n)
	}

	symbols, err := h.projects.CreateProject(h.ctx, h.profile("lead"), ProjectCreateInput{Name: "!!!"})
	if err != nil {
		t.Fatalf("CreateProject(symbols) error = %v", err)
	}
	if want := "project-1772442000"; symbols.Slug != want {
		t.Fatalf("fallback slug = %s, want %s", symbols.Slug, want)
	}

	tests := []struct {
		name  string
		actor string
		input ProjectCreateInput
		code  string
	}{
		{"developer", "d1", ProjectCreateInput{Name: "Side project"}, apperrors.CodePermissionDenied},
		{"blank name", "admin", ProjectCreateInput{Name: "  "}, apperrors.CodeValidationFailed},
		{"developer owner", "admin", ProjectCreateInput{Name: "Ops", OwnerID: "d1"}, apperrors.CodeValidationFailed},
		{"unknown owner", "admin", ProjectCreateInput{Name: "Ops", OwnerID: "nobody"}, apperrors.CodeValidationFailed},
		{"taken slug", "admin", ProjectCreateInput{Name: "mobile app"}, apperrors.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.projects.CreateProject(h.ctx, h.profile(tt.actor), tt.input)
			assertCode(t, err, tt.code)
		})
	}
}

func TestProjectMembership(t *testing.T) {
	h := newHarness(t)
	lead := withLead(h)
	project, err := h.projects.CreateProject(h.ctx, lead, ProjectCreateInput{Name: "Mobile"})
	if err != nil {
		t.Fatal(err)
	}

	member, err := h.projects.AddMember(h.ctx, lead, project.ID, "d2", "")
	if err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if member.Role != domain.MemberRoleDeveloper || member.Profile == nil || member.Profile.ID != "d2" {
		t.Fatalf("member = %+v", member)
	}
	// The new developer can now work tickets on the project.
	ticket, err := h.tickets.CreateTicket(h.ctx, lead, TicketCreateInput{ProjectID: project.ID, Title: "Crash on launch"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d2"), ticket.ID); err != nil {
		t.Fatalf("Claim() by new member error = %v", err)
	}

	addTests := []struct {
		name  string
		actor string
		user  string
		role  domain.MemberRole
		code  string
	}{
		{"already member", "lead", "d2", domain.MemberRoleDeveloper, apperrors.CodeConflict},
		{"deactivated user", "lead", "gone", domain.MemberRoleDeveloper, apperrors.CodeValidationFailed},
		{"unknown user", "lead", "nobody", domain.MemberRoleDeveloper, apperrors.CodeNotFound},
		{"bad role", "lead", "d1", "OWNER", apperrors.CodeValidationFailed},
		{"developer actor", "d2", "d1", domain.MemberRoleDeveloper, apperrors.CodePermissionDenied},
		{"outsider actor", "outsider", "d1", domain.MemberRoleDeveloper, apperrors.CodePermissionDenied},
	}
	for _, tt := range addTests {
		t.Run("add "+tt.name, func(t *testing.T) {
			_, err := h.projects.AddMember(h.ctx, h.profile(tt.actor), project.ID, tt.user, tt.role)
			assertCode(t, err, tt.code)
		})
	}

	err = h.projects.RemoveMember(h.ctx, lead, project.ID, "lead")
	assertCode(t, err, apperrors.CodeValidationFailed)
	err = h.projects.RemoveMember(h.ctx, h.profile("admin"), project.ID, "lead")
	assertCode(t, err, apperrors.CodeConflict)

	if err := h.projects.RemoveMember(h.ctx, lead, project.ID, "d2"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	err = h.projects.RemoveMember(h.ctx, lead, project.ID, "d2")
	assertCode(t, err, apperrors.CodeNotFound)
	next, err := h.tickets.CreateTicket(h.ctx, lead, TicketCreateInput{ProjectID: project.ID, Title: "Dark mode"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.lifecycle.Claim(h.ctx, h.profile("d2"), next.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	if n := len(h.eventsOf(events.EventProjectChanged)); n != 3 {
		t.Fatalf("project_changed events = %d, want 3", n)
	}
}

func TestUpdateProjectSLAOverrides(t *testing.T) {
	h := newHarness(t)
	po := h.profile("po1")
	name := " Customer Portal "

	project, err := h.projects.UpdateProject(h.ctx, po, "p1", ProjectUpdateInput{
		Name: &name,
		SLAHours: map[domain.TicketPriority]float64{
			domain.TicketPriorityP0Critical: 1,
			domain.TicketPriorityP1High:     0,
		},
	})
	if err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	if project.Name != "Customer Portal" || len(project.SLAHours) != 1 || project.SLAHours[domain.TicketPriorityP0Critical] != 1 {
		t.Fatalf("project = %+v", project)
	}

	ticket, err := h.tickets.CreateTicket(h.ctx, po, TicketCreateInput{ProjectID: "p1", Title: "Outage", Priority: domain.TicketPriorityP0Critical})
	if err != nil {
		t.Fatal(err)
	}
	if want := testStart.Add(time.Hour); !ticket.SLADeadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", ticket.SLADeadline, want)
	}

	view, err := h.projects.GetProject(h.ctx, h.profile("d2"), "p1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if view.EffectiveSLA[domain.TicketPriorityP0Critical] != 1 || view.EffectiveSLA[domain.TicketPriorityP1High] != 24 {
		t.Fatalf("effective SLA = %v", view.EffectiveSLA)
	}
	if len(view.Members) != 4 {
		t.Fatalf("members = %d, want 4", len(view.Members))
	}

	tests := []struct {
		name  string
		actor string
		hours map[domain.TicketPriority]float64
		code  string
	}{
		{"fractional hours", "po1", map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 0.5}, apperrors.CodeValidationFailed},
		{"negative hours", "po1", map[domain.TicketPriority]float64{domain.TicketPriorityP1High: -4}, apperrors.CodeValidationFailed},
		{"too many hours", "po1", map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 1e9}, apperrors.CodeValidationFailed},
		{"unknown priority", "po1", map[domain.TicketPriority]float64{"P9": 4}, apperrors.CodeValidationFailed},
		{"developer", "d1", map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 4}, apperrors.CodePermissionDenied},
		{"other project owner", "po2", map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 4}, apperrors.CodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.projects.UpdateProject(h.ctx, h.profile(tt.actor), "p1", ProjectUpdateInput{SLAHours: tt.hours})
			assertCode(t, err, tt.code)
		})
	}
	_, err = h.projects.GetProject(h.ctx, h.profile("outsider"), "p1")
	assertCode(t, err, apperrors.CodePermissionDenied)
	_, err = h.projects.UpdateProject(h.ctx, po, "p9", ProjectUpdateInput{})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestListProjects(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		actor string
		want  int
	}{
		{"admin", 2},
		{"d1", 2},
		{"d2", 1},
		{"outsider", 0},
	}
	for _, tt := range tests {
		got, err := h.projects.ListProjects(h.ctx, h.profile(tt.actor))
		if err != nil {
			t.Fatalf("ListProjects(%s) error = %v", tt.actor, err)
		}
		if len(got) != tt.want {
			t.Fatalf("ListProjects(%s) = %d projects, want %d", tt.actor, len(got), tt.want)
		}
	}
}

func TestUpdateGlobalSLA(t *testing.T) {
	h := newHarness(t)
	admin := h.profile("admin")

	hours, err := h.settings.UpdateGlobalSLA(h.ctx, admin, map[domain.TicketPriority]float64{
		domain.TicketPriorityP0Critical: 3,
		domain.TicketPriorityP1High:     12,
	})
	if err != nil {
		t.Fatalf("UpdateGlobalSLA() error = %v", err)
	}
	if hours[domain.TicketPriorityP0Critical] != 3 || hours[domain.TicketPriorityP1High] != 12 || hours[domain.TicketPriorityP3Low] != 720 {
		t.Fatalf("effective hours = %v", hours)
	}
	if n := len(h.eventsOf(events.EventSettingsChanged)); n != 1 {
		t.Fatalf("settings_changed events = %d, want 1", n)
	}

	// p1 has no override, p2 overrides P0 with 2h.
	portal, err := h.tickets.CreateTicket(h.ctx, h.profile("po1"), TicketCreateInput{ProjectID: "p1", Title: "Slow", Priority: domain.TicketPriorityP0Critical})
	if err != nil {
		t.Fatal(err)
	}
	billing, err := h.tickets.CreateTicket(h.ctx, h.profile("po2"), TicketCreateInput{ProjectID: "p2", Title: "Down", Priority: domain.TicketPriorityP0Critical})
	if err != nil {
		t.Fatal(err)
	}
	if want := testStart.Add(3 * time.Hour); !portal.SLADeadline.Equal(want) {
		t.Fatalf("p1 deadline = %v, want %v", portal.SLADeadline, want)
	}
	if want := testStart.Add(2 * time.Hour); !billing.SLADeadline.Equal(want) {
		t.Fatalf("p2 deadline = %v, want %v", billing.SLADeadline, want)
	}

	// A second update rewrites the same row.
	if _, err := h.settings.UpdateGlobalSLA(h.ctx, admin, map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 8}); err != nil {
		t.Fatalf("second UpdateGlobalSLA() error = %v", err)
	}
	read, err := h.settings.GlobalSLA(h.ctx, h.profile("d1"))
	if err != nil {
		t.Fatalf("GlobalSLA() error = %v", err)
	}
	if read[domain.TicketPriorityP0Critical] != 4 || read[domain.TicketPriorityP1High] != 8 {
		t.Fatalf("global hours = %v", read)
	}

	_, err = h.settings.UpdateGlobalSLA(h.ctx, h.profile("po1"), map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 8})
	assertCode(t, err, apperrors.CodePermissionDenied)
	_, err = h.settings.UpdateGlobalSLA(h.ctx, admin, map[domain.TicketPriority]float64{domain.TicketPriorityP1High: 1.5})
	assertCode(t, err, apperrors.CodeValidationFailed)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Mobile App":         "mobile-app",
		"  --Billing 2.0--  ": "billing-2-0",
		"Crème brûlée":       "cr-me-br-l-e",
		"日本":                 "",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
