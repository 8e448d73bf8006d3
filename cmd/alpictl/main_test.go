package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/persistence"
	"github.com/alpi-dev/alpi/internal/repository/memstore"
)

func newTestCLI(t *testing.T) (*cli, *memstore.Store, *bytes.Buffer) {
	t.Helper()
	mem := memstore.New()
	mem.PutProfile(domain.Profile{ID: "admin", FullName: "Ada Admin", Role: domain.RoleAdmin, IsActive: true})
	mem.PutProfile(domain.Profile{ID: "po1", FullName: "Pat Owner", Role: domain.RoleDeveloper, IsActive: true})
	mem.PutProfile(domain.Profile{ID: "d1", FullName: "D1", Role: domain.RoleDeveloper, IsActive: true})
	mem.PutProject(domain.Project{ID: "p1", Name: "Portal"})
	mem.AddMember("p1", "po1", domain.MemberRolePO)
	mem.AddMember("p1", "d1", domain.MemberRoleDeveloper)

	out := &bytes.Buffer{}
	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5},
	}
	return &cli{
		cfg:    cfg,
		logger: zap.NewNop(),
		out:    out,
		clock:  clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		openStore: func(context.Context, config.PostgresConfig) (*persistence.Store, error) {
			return &persistence.Store{Repositories: mem.Repositories(), Memory: mem}, nil
		},
	}, mem, out
}

func TestRunRejectsBadInvocations(t *testing.T) {
	a, _, _ := newTestCLI(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"missing actor", []string{"deactivate", "--user", "d1"}, "--user and --actor are required"},
		{"bad ticket", []string{"sla", "--ticket", "abc"}, "--ticket must be a positive number"},
		{"stray argument", []string{"token", "--user", "d1", "extra"}, "unexpected argument"},
		{"migrate without dsn", []string{"migrate"}, "POSTGRES_DSN is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.run(context.Background(), tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("run(%v) error = %v, want %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestRunPrintsUsage(t *testing.T) {
	a, _, out := newTestCLI(t)
	if err := a.run(context.Background(), nil); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Usage: alpictl") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestDeactivateCommand(t *testing.T) {
	a, mem, out := newTestCLI(t)
	ctx := context.Background()
	assignee := "d1"
	ticket := &domain.Ticket{ProjectID: "p1", Title: "Crash", Priority: domain.TicketPriorityP1High,
		Status: domain.TicketStatusInProgress, AssignedTo: &assignee, CreatedBy: "po1"}
	if err := mem.Tickets().Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}

	if err := a.run(ctx, []string{"deactivate", "--user", "d1", "--actor", "admin"}); err != nil {
		t.Fatalf("deactivate error = %v", err)
	}
	if !strings.Contains(out.String(), "tickets needing reassignment: 1") {
		t.Fatalf("output = %q", out.String())
	}
	tasks, _ := mem.ReassignmentTasks().ListOpenByOwner(ctx, "po1")
	if len(tasks) != 1 || tasks[0].TicketID != ticket.ID {
		t.Fatalf("tasks = %+v", tasks)
	}

	err := a.run(ctx, []string{"deactivate", "--user", "d1", "--actor", "po1"})
	if err == nil {
		t.Fatal("non-admin deactivation succeeded")
	}
}

func TestSLACommand(t *testing.T) {
	a, mem, out := newTestCLI(t)
	ctx := context.Background()
	deadline := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{ProjectID: "p1", Title: "Crash", Priority: domain.TicketPriorityP0Critical,
		Status: domain.TicketStatusOpen, CreatedBy: "po1", SLADeadline: &deadline}
	if err := mem.Tickets().Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}

	if err := a.run(ctx, []string{"sla", "--ticket", "1"}); err != nil {
		t.Fatalf("sla error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"ticket #1 Crash [Open]", "priority: P0 - Critical (policy 4h)", "deadline: 2026-03-02 12:00 UTC"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}
}

func TestTokenCommand(t *testing.T) {
	a, _, out := newTestCLI(t)
	if err := a.run(context.Background(), []string{"token", "--user", "d1"}); err != nil {
		t.Fatalf("token error = %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(out.String()), "."); len(parts) != 3 {
		t.Fatalf("output is not a JWT: %q", out.String())
	}
	if err := a.run(context.Background(), []string{"token", "--user", "nobody"}); err == nil {
		t.Fatal("token for unknown user succeeded")
	}
}
