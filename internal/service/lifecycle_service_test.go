package service

import (
	"strings"
	"testing"
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

func TestClaimTestingUnclaimScenario(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Checkout button does nothing")

	claimed, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if claimed.Status != domain.TicketStatusInProgress || !claimed.IsAssignedTo("d1") {
		t.Fatalf("after claim status=%s assigned=%v", claimed.Status, claimed.AssignedTo)
	}
	comments := h.comments(ticket.ID)
	if len(comments) != 1 || comments[0].Body != "D1 claimed this ticket" || !comments[0].IsSystemGenerated {
		t.Fatalf("comments after claim = %+v", comments)
	}

	if _, err := h.lifecycle.MarkTesting(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatalf("MarkTesting() error = %v", err)
	}
	before := h.ticket(ticket.ID)
	if before.Status != domain.TicketStatusTesting {
		t.Fatalf("status = %s, want TESTING", before.Status)
	}

	_, err = h.lifecycle.Unclaim(h.ctx, h.profile("d2"), ticket.ID, "not mine")
	assertCode(t, err, apperrors.CodePermissionDenied)
	after := h.ticket(ticket.ID)
	if after.Version != before.Version || after.Status != domain.TicketStatusTesting || !after.IsAssignedTo("d1") {
		t.Fatalf("ticket changed by rejected unclaim: %+v", after)
	}
	if got := len(h.comments(ticket.ID)); got != 2 {
		t.Fatalf("comments = %d, want 2", got)
	}
	if got := h.metrics.TransitionCount(string(lifecycle.TransitionUnclaim), "permission_denied"); got != 1 {
		t.Fatalf("rejected unclaim count = %d, want 1", got)
	}
}

func TestClaimRejectsInProgressTicket(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Broken link")
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatal(err)
	}
	_, err := h.lifecycle.Claim(h.ctx, h.profile("d2"), ticket.ID)
	assertCode(t, err, apperrors.CodeInvalidStateTransition)

	_, err = h.lifecycle.Claim(h.ctx, h.profile("outsider"), ticket.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = h.lifecycle.Claim(h.ctx, h.profile("d1"), 999)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestMarkDuplicateScenario(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.createTicket("p1", "Report")
	}
	po := h.profile("po1")

	dup, err := h.lifecycle.MarkDuplicate(h.ctx, po, 5, 3, "same report")
	if err != nil {
		t.Fatalf("MarkDuplicate() error = %v", err)
	}
	if dup.Status != domain.TicketStatusDuplicate || dup.DuplicateOf == nil || *dup.DuplicateOf != 3 || dup.AssignedTo != nil {
		t.Fatalf("ticket #5 = %+v", dup)
	}
	comments := h.comments(5)
	if len(comments) != 1 || !strings.Contains(comments[0].Body, "#3") {
		t.Fatalf("comments = %+v", comments)
	}
	if want := `Pat Owner marked this as duplicate of #3: "same report"`; comments[0].Body != want {
		t.Fatalf("comment = %q, want %q", comments[0].Body, want)
	}

	_, err = h.lifecycle.MarkDuplicate(h.ctx, po, 5, 3, "again")
	assertCode(t, err, apperrors.CodeInvalidStateTransition)

	reopened, err := h.lifecycle.Reopen(h.ctx, po, 5, "not a duplicate after all")
	if err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if reopened.Status != domain.TicketStatusOpen || reopened.DuplicateOf != nil {
		t.Fatalf("reopened = %+v", reopened)
	}
}

func TestMarkDuplicateTargetChecks(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	po := h.profile("po1")

	_, err := h.lifecycle.MarkDuplicate(h.ctx, po, ticket.ID, ticket.ID, "self")
	assertCode(t, err, apperrors.CodeValidationFailed)

	_, err = h.lifecycle.MarkDuplicate(h.ctx, po, ticket.ID, 42, "missing")
	assertCode(t, err, apperrors.CodeNotFound)

	if got := h.ticket(ticket.ID); got.Status != domain.TicketStatusOpen || got.Version != 1 {
		t.Fatalf("ticket mutated: %+v", got)
	}
}

func TestRequiredTextBlankCausesNoMutation(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"unclaim", func() error {
			_, err := h.lifecycle.Unclaim(h.ctx, h.profile("d1"), ticket.ID, "   ")
			return err
		}},
		{"request cancellation", func() error {
			_, err := h.lifecycle.RequestCancellation(h.ctx, h.profile("d1"), ticket.ID, domain.RejectionNotABug, 0, "\t")
			return err
		}},
		{"block", func() error {
			_, err := h.lifecycle.Block(h.ctx, h.profile("po1"), ticket.ID, "")
			return err
		}},
		{"cancel", func() error {
			_, err := h.lifecycle.Cancel(h.ctx, h.profile("po1"), ticket.ID, " ")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCode(t, tt.run(), apperrors.CodeValidationFailed)
			got := h.ticket(ticket.ID)
			if got.Version != 2 || got.Status != domain.TicketStatusInProgress {
				t.Fatalf("ticket mutated: version=%d status=%s", got.Version, got.Status)
			}
			if n := len(h.comments(ticket.ID)); n != 1 {
				t.Fatalf("comments = %d, want 1", n)
			}
		})
	}
}

func TestUnclaimNotifiesOwnersAndAdmins(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.lifecycle.Unclaim(h.ctx, h.profile("d1"), ticket.ID, "blocked on design"); err != nil {
		t.Fatalf("Unclaim() error = %v", err)
	}

	want := `D1 returned ticket #1 to pool: "blocked on design"`
	for _, id := range []string{"po1", "admin"} {
		inbox := h.inbox(id)
		if len(inbox) != 1 || inbox[0].Type != domain.NotificationUnassigned || inbox[0].Message != want {
			t.Fatalf("inbox(%s) = %+v", id, inbox)
		}
	}
	if got := h.inbox("po2"); len(got) != 0 {
		t.Fatalf("po2 of another project notified: %+v", got)
	}
	if got := len(h.eventsOf(events.EventNotificationCreated)); got != 2 {
		t.Fatalf("notification events = %d, want 2", got)
	}
}

func TestRequestCancellationBlocksAndNotifies(t *testing.T) {
	h := newHarness(t)
	original := h.createTicket("p1", "Original")
	ticket := h.createTicket("p1", "Copy")

	got, err := h.lifecycle.RequestCancellation(h.ctx, h.profile("d2"), ticket.ID, domain.RejectionDuplicate, original.ID, "filed twice")
	if err != nil {
		t.Fatalf("RequestCancellation() error = %v", err)
	}
	if got.Status != domain.TicketStatusBlocked || got.AssignedTo != nil || got.BlockedAt == nil ||
		got.RejectionReason == nil || *got.RejectionReason != domain.RejectionDuplicate {
		t.Fatalf("ticket = %+v", got)
	}
	comments := h.comments(ticket.ID)
	if want := `D2 requested cancellation. Reason: Duplicate (duplicate of #1). Comment: "filed twice"`; comments[0].Body != want {
		t.Fatalf("comment = %q, want %q", comments[0].Body, want)
	}
	inbox := h.inbox("po1")
	if len(inbox) != 1 || inbox[0].Type != domain.NotificationCancellationRequested {
		t.Fatalf("po inbox = %+v", inbox)
	}
	if want := `D2 requested cancellation of ticket #2: Duplicate (duplicate of #1). "filed twice"`; inbox[0].Message != want {
		t.Fatalf("message = %q, want %q", inbox[0].Message, want)
	}
}

func TestRequestCancellationOnAssignedTicketNeedsAssignee(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatal(err)
	}
	_, err := h.lifecycle.RequestCancellation(h.ctx, h.profile("d2"), ticket.ID, domain.RejectionNotABug, 0, "works for me")
	assertCode(t, err, apperrors.CodePermissionDenied)
}

func TestAssignNotifiesAndCompletesTasks(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	po := h.profile("po1")
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatal(err)
	}
	if err := h.store.ReassignmentTasks().Create(h.ctx, &domain.ReassignmentTask{TicketID: ticket.ID, ProjectOwnerID: "po1", DeactivatedUserID: "d1"}); err != nil {
		t.Fatal(err)
	}

	got, err := h.lifecycle.Assign(h.ctx, po, ticket.ID, "d2")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if !got.IsAssignedTo("d2") || got.Status != domain.TicketStatusInProgress {
		t.Fatalf("ticket = %+v", got)
	}
	comments := h.comments(ticket.ID)
	if last := comments[len(comments)-1].Body; last != "Pat Owner assigned this ticket to D2" {
		t.Fatalf("comment = %q", last)
	}
	if inbox := h.inbox("d2"); len(inbox) != 1 || inbox[0].Message != "You were assigned to ticket #1: Report" {
		t.Fatalf("d2 inbox = %+v", inbox)
	}
	if inbox := h.inbox("d1"); len(inbox) != 1 || inbox[0].Type != domain.NotificationUnassigned {
		t.Fatalf("d1 inbox = %+v", inbox)
	}
	if open, _ := h.store.ReassignmentTasks().ListOpenByOwner(h.ctx, "po1"); len(open) != 0 {
		t.Fatalf("open tasks = %+v", open)
	}
}

func TestAssignRejectsTargetsOutsideThePool(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	po := h.profile("po1")

	tests := []struct {
		assignee string
		code     string
	}{
		{"gone", apperrors.CodeValidationFailed},
		{"outsider", apperrors.CodeValidationFailed},
		{"nobody", apperrors.CodeNotFound},
		{"", apperrors.CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.assignee, func(t *testing.T) {
			_, err := h.lifecycle.Assign(h.ctx, po, ticket.ID, tt.assignee)
			assertCode(t, err, tt.code)
		})
	}
	if got := h.ticket(ticket.ID); got.AssignedTo != nil || got.Version != 1 {
		t.Fatalf("ticket mutated: %+v", got)
	}

	// Global admins are assignable without a membership row.
	if _, err := h.lifecycle.Assign(h.ctx, po, ticket.ID, "admin"); err != nil {
		t.Fatalf("Assign(admin) error = %v", err)
	}
}

func TestAssignableUsers(t *testing.T) {
	h := newHarness(t)
	pool, err := h.lifecycle.AssignableUsers(h.ctx, h.profile("po1"), "p1")
	if err != nil {
		t.Fatalf("AssignableUsers() error = %v", err)
	}
	var ids []string
	for _, p := range pool {
		ids = append(ids, p.ID)
	}
	if got, want := strings.Join(ids, ","), "admin,d1,d2"; got != want {
		t.Fatalf("pool = %s, want %s", got, want)
	}

	_, err = h.lifecycle.AssignableUsers(h.ctx, h.profile("outsider"), "p1")
	assertCode(t, err, apperrors.CodePermissionDenied)
}

func TestBlockUnblockPausesSLAAndNotifies(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	po := h.profile("po1")
	if _, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(2 * time.Hour)
	if _, err := h.lifecycle.Block(h.ctx, po, ticket.ID, "waiting on vendor"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	h.clock.Advance(200 * time.Hour)
	view, err := h.tickets.GetTicket(h.ctx, po, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.SLA.State != lifecycle.SLAStatePaused {
		t.Fatalf("SLA state = %s, want paused", view.SLA.State)
	}

	got, err := h.lifecycle.Unblock(h.ctx, po, ticket.ID)
	if err != nil {
		t.Fatalf("Unblock() error = %v", err)
	}
	if got.Status != domain.TicketStatusInProgress || got.BlockedAt != nil || got.SLAPausedDuration != 200*time.Hour {
		t.Fatalf("ticket = %+v", got)
	}
	inbox := h.inbox("d1")
	if len(inbox) != 1 || inbox[0].Message != "Ticket #1 was unblocked and is now In Progress" {
		t.Fatalf("d1 inbox = %+v", inbox)
	}
}

func TestEditPriorityRecomputesDeadline(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p2", "Invoices")
	if want := testStart.Add(168 * time.Hour); !ticket.SLADeadline.Equal(want) {
		t.Fatalf("initial deadline = %v, want %v", ticket.SLADeadline, want)
	}

	h.clock.Advance(time.Hour)
	got, err := h.lifecycle.EditPriority(h.ctx, h.profile("po2"), ticket.ID, domain.TicketPriorityP0Critical)
	if err != nil {
		t.Fatalf("EditPriority() error = %v", err)
	}
	// p2 overrides P0 with 2h; the deadline counts from creation.
	if want := testStart.Add(2 * time.Hour); !got.SLADeadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", got.SLADeadline, want)
	}
	comments := h.comments(ticket.ID)
	if comments[0].Body != "Quinn Owner changed priority to P0 - Critical" {
		t.Fatalf("comment = %q", comments[0].Body)
	}

	_, err = h.lifecycle.EditPriority(h.ctx, h.profile("po2"), ticket.ID, "P9")
	assertCode(t, err, apperrors.CodeValidationFailed)
}

func TestResolveCancelReopen(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")
	po := h.profile("po1")

	if _, err := h.lifecycle.Resolve(h.ctx, po, ticket.ID, ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := h.lifecycle.Resolve(h.ctx, po, ticket.ID, ""); !apperrors.HasCode(err, apperrors.CodeInvalidStateTransition) {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if _, err := h.lifecycle.Cancel(h.ctx, po, ticket.ID, "won't fix"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	got, err := h.lifecycle.Reopen(h.ctx, po, ticket.ID, "customer escalated")
	if err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if got.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s", got.Status)
	}

	bodies := make([]string, 0, 3)
	for _, c := range h.comments(ticket.ID) {
		bodies = append(bodies, c.Body)
	}
	want := []string{
		"Pat Owner resolved this ticket",
		`Pat Owner cancelled this ticket: "won't fix"`,
		`Pat Owner reopened this ticket: "customer escalated"`,
	}
	if strings.Join(bodies, "|") != strings.Join(want, "|") {
		t.Fatalf("comments = %q, want %q", bodies, want)
	}
}

func TestVersionConflictWritesNothing(t *testing.T) {
	var racer *racingTickets
	h := newHarness(t, withTicketRepo(func(inner repository.TicketRepository) repository.TicketRepository {
		racer = &racingTickets{TicketRepository: inner}
		return racer
	}))
	ticket := h.createTicket("p1", "Report")
	racer.race = func() {
		other := h.ticket(ticket.ID)
		other.Title = "edited elsewhere"
		comment := &domain.TicketComment{TicketID: other.ID, AuthorID: "po1", Body: "Pat Owner edited ticket details", IsSystemGenerated: true}
		if err := h.store.Tickets().ApplyTransition(h.ctx, other, comment); err != nil {
			t.Errorf("concurrent write error = %v", err)
		}
	}

	_, err := h.lifecycle.Claim(h.ctx, h.profile("d1"), ticket.ID)
	assertCode(t, err, apperrors.CodeConflict)

	got := h.ticket(ticket.ID)
	if got.Status != domain.TicketStatusOpen || got.AssignedTo != nil || got.Title != "edited elsewhere" || got.Version != 2 {
		t.Fatalf("ticket = %+v", got)
	}
	if n := len(h.comments(ticket.ID)); n != 1 {
		t.Fatalf("comments = %d, want 1", n)
	}
	if n := len(h.eventsOf(events.EventTicketChanged)); n != 0 {
		t.Fatalf("ticket_changed events = %d, want 0", n)
	}
	if got := h.metrics.TransitionCount(string(lifecycle.TransitionClaim), "conflict"); got != 1 {
		t.Fatalf("conflict count = %d, want 1", got)
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t, withNotificationRepo(failingNotifications{}))
	ticket := h.createTicket("p1", "Report")
	d1 := h.profile("d1")
	if _, err := h.lifecycle.Claim(h.ctx, d1, ticket.ID); err != nil {
		t.Fatal(err)
	}

	got, err := h.lifecycle.Unclaim(h.ctx, d1, ticket.ID, "out sick")
	if err != nil {
		t.Fatalf("Unclaim() error = %v", err)
	}
	if got.Status != domain.TicketStatusOpen || got.AssignedTo != nil {
		t.Fatalf("ticket = %+v", got)
	}
	if stored := h.ticket(ticket.ID); stored.Status != domain.TicketStatusOpen {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if n := h.metrics.SideEffectFailures(sideEffectNotification); n != 2 {
		t.Fatalf("notification failures = %d, want 2", n)
	}
	if n := len(h.eventsOf(events.EventTicketChanged)); n != 2 {
		t.Fatalf("ticket_changed events = %d, want 2", n)
	}
}

func TestAvailableTransitions(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket("p1", "Report")

	got, err := h.lifecycle.AvailableTransitions(h.ctx, h.profile("d1"), ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []lifecycle.Transition{lifecycle.TransitionClaim, lifecycle.TransitionRequestCancellation}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("available = %v, want %v", got, want)
	}
}
