package service

import (
	"testing"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

func TestDeactivationCascade(t *testing.T) {
	h := newHarness(t)
	d1 := h.profile("d1")
	portal := h.createTicket("p1", "Portal crash")
	billing := h.createTicket("p2", "Invoice rounding")
	done := h.createTicket("p1", "Already fixed")
	for _, id := range []int64{portal.ID, billing.ID, done.ID} {
		if _, err := h.lifecycle.Claim(h.ctx, d1, id); err != nil {
			t.Fatalf("Claim(%d) error = %v", id, err)
		}
	}
	if _, err := h.lifecycle.Resolve(h.ctx, h.profile("po1"), done.ID, ""); err != nil {
		t.Fatal(err)
	}
	before := map[int64]*domain.Ticket{portal.ID: h.ticket(portal.ID), billing.ID: h.ticket(billing.ID)}

	result, err := h.users.DeactivateUser(h.ctx, h.profile("admin"), "d1")
	if err != nil {
		t.Fatalf("DeactivateUser() error = %v", err)
	}
	if result.TasksCreated != 2 || result.NotificationsSent != 2 || result.CommentsWritten != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.AffectedTickets) != 2 || result.AffectedTickets[0] != portal.ID || result.AffectedTickets[1] != billing.ID {
		t.Fatalf("affected = %v", result.AffectedTickets)
	}
	if h.profile("d1").IsActive || h.profile("d1").DeactivatedAt == nil {
		t.Fatal("d1 still active")
	}

	for id, prev := range before {
		got := h.ticket(id)
		if got.Status != prev.Status || !got.IsAssignedTo("d1") || got.Version != prev.Version {
			t.Fatalf("ticket %d changed: %+v", id, got)
		}
		comments := h.comments(id)
		if last := comments[len(comments)-1]; last.Body != "D1 was deactivated. This ticket needs to be reassigned by the project owner." || last.AuthorID != "admin" {
			t.Fatalf("ticket %d last comment = %+v", id, last)
		}
	}

	for owner, ticket := range map[string]*domain.Ticket{"po1": portal, "po2": billing} {
		tasks, err := h.users.ListReassignmentTasks(h.ctx, h.profile(owner))
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) != 1 || tasks[0].TicketID != ticket.ID || tasks[0].DeactivatedUserID != "d1" {
			t.Fatalf("%s tasks = %+v", owner, tasks)
		}
		inbox := h.inbox(owner)
		if len(inbox) != 1 || inbox[0].Type != domain.NotificationReassignmentNeeded {
			t.Fatalf("%s inbox = %+v", owner, inbox)
		}
	}
	if want := `User D1 was deactivated. Ticket #1 "Portal crash" needs to be reassigned.`; h.inbox("po1")[0].Message != want {
		t.Fatalf("message = %q, want %q", h.inbox("po1")[0].Message, want)
	}
	if n := len(h.eventsOf(events.EventUserDeactivated)); n != 1 {
		t.Fatalf("user_deactivated events = %d, want 1", n)
	}

	// Reassigning completes the owner's task.
	if _, err := h.lifecycle.Assign(h.ctx, h.profile("po1"), portal.ID, "d2"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if tasks, _ := h.users.ListReassignmentTasks(h.ctx, h.profile("po1")); len(tasks) != 0 {
		t.Fatalf("po1 tasks after reassignment = %+v", tasks)
	}
}

func TestDeactivateUserGuards(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		actor  string
		target string
		code   string
	}{
		{"non admin", "po1", "d1", apperrors.CodePermissionDenied},
		{"self", "admin", "admin", apperrors.CodeValidationFailed},
		{"unknown", "admin", "nobody", apperrors.CodeNotFound},
		{"already inactive", "admin", "gone", apperrors.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.users.DeactivateUser(h.ctx, h.profile(tt.actor), tt.target)
			assertCode(t, err, tt.code)
		})
	}
}

func TestDeactivatedUserLosesCapabilities(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	if _, err := h.users.DeactivateUser(h.ctx, h.profile("admin"), "d2"); err != nil {
		t.Fatal(err)
	}
	_, err := h.lifecycle.Claim(h.ctx, h.profile("d2"), ticket.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)
}

func TestReactivateAndChangeRole(t *testing.T) {
	h := newHarness(t)
	admin := h.profile("admin")
	po := domain.RolePO

	got, err := h.users.ReactivateUser(h.ctx, admin, "gone", &po)
	if err != nil {
		t.Fatalf("ReactivateUser() error = %v", err)
	}
	if !got.IsActive || got.DeactivatedAt != nil || got.Role != domain.RolePO {
		t.Fatalf("profile = %+v", got)
	}
	_, err = h.users.ReactivateUser(h.ctx, admin, "gone", nil)
	assertCode(t, err, apperrors.CodeConflict)

	got, err = h.users.ChangeRole(h.ctx, admin, "d2", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("ChangeRole() error = %v", err)
	}
	if h.profile("d2").Role != domain.RoleAdmin || got.Role != domain.RoleAdmin {
		t.Fatalf("role = %s", got.Role)
	}

	_, err = h.users.ChangeRole(h.ctx, admin, "admin", domain.RoleDeveloper)
	assertCode(t, err, apperrors.CodeValidationFailed)
	_, err = h.users.ChangeRole(h.ctx, admin, "d1", "ROOT")
	assertCode(t, err, apperrors.CodeValidationFailed)
	_, err = h.users.ChangeRole(h.ctx, h.profile("po1"), "d1", domain.RoleAdmin)
	assertCode(t, err, apperrors.CodePermissionDenied)
}

func TestListUsers(t *testing.T) {
	h := newHarness(t)
	role := domain.RoleDeveloper
	users, err := h.users.ListUsers(h.ctx, h.profile("admin"), repository.UserFilter{Role: &role, ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 5 {
		t.Fatalf("active developers = %d, want 5", len(users))
	}
	_, err = h.users.ListUsers(h.ctx, h.profile("d1"), repository.UserFilter{})
	assertCode(t, err, apperrors.CodePermissionDenied)
}
