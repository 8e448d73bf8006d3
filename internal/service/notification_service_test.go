package service

import (
	"strings"
	"testing"

	"github.com/alpi-dev/alpi/internal/domain"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

func TestNotifySkipsDuplicateRecipients(t *testing.T) {
	h := newHarness(t)
	id := int64(7)
	n := h.notifications.Notify(h.ctx, "po1", []string{"d1", "d1", "", "d2"}, &id, domain.NotificationStatusChanged, "hello")
	if n != 2 {
		t.Fatalf("Notify() = %d, want 2", n)
	}
	if inbox := h.inbox("d1"); len(inbox) != 1 || inbox[0].TicketID == nil || *inbox[0].TicketID != 7 {
		t.Fatalf("d1 inbox = %+v", inbox)
	}
}

func TestProjectOwnersAndAdmins(t *testing.T) {
	h := newHarness(t)
	h.store.AddMember("p1", "admin", domain.MemberRolePO)
	h.store.AddMember("p1", "gone", domain.MemberRolePO)

	ids, err := h.notifications.ProjectOwnersAndAdmins(h.ctx, "p1")
	if err != nil {
		t.Fatalf("ProjectOwnersAndAdmins() error = %v", err)
	}
	if got := strings.Join(ids, ","); got != "po1,admin" {
		t.Fatalf("recipients = %s, want po1,admin", got)
	}
}

func TestInbox(t *testing.T) {
	h := newHarness(t)
	h.notifications.Notify(h.ctx, "po1", []string{"d1"}, nil, domain.NotificationMentioned, "first")
	h.notifications.Notify(h.ctx, "po1", []string{"d1"}, nil, domain.NotificationMentioned, "second")
	d1 := h.profile("d1")

	items, err := h.notifications.ListForUser(h.ctx, d1, true, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(items) != 2 || items[0].Message != "second" {
		t.Fatalf("items = %+v", items)
	}

	err = h.notifications.MarkRead(h.ctx, h.profile("d2"), items[0].ID)
	assertCode(t, err, apperrors.CodePermissionDenied)
	err = h.notifications.MarkRead(h.ctx, d1, "missing")
	assertCode(t, err, apperrors.CodeNotFound)

	if err := h.notifications.MarkRead(h.ctx, d1, items[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	unread, _ := h.notifications.ListForUser(h.ctx, d1, true, 10)
	if len(unread) != 1 || unread[0].Message != "first" {
		t.Fatalf("unread = %+v", unread)
	}

	count, err := h.notifications.MarkAllRead(h.ctx, d1)
	if err != nil || count != 1 {
		t.Fatalf("MarkAllRead() = %d, %v", count, err)
	}
}
