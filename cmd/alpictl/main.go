// alpictl is the operator CLI for an Alpi deployment: it applies migrations,
// deactivates users with the full reassignment cascade, inspects ticket SLAs
// and issues bearer tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/persistence"
	"github.com/alpi-dev/alpi/internal/service"
)

const usage = `Usage: alpictl <command> [flags]

Commands:
  migrate                            apply the SQL migrations
  deactivate --user ID --actor ID    deactivate a user and request reassignment of their tickets
  sla --ticket N                     show the SLA state of a ticket
  token --user ID                    issue a bearer token for a user
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	a := &cli{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		openStore: func(ctx context.Context, pgCfg config.PostgresConfig) (*persistence.Store, error) {
			return persistence.OpenStore(ctx, pgCfg, logger)
		},
	}
	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	cfg       *config.Config
	logger    *zap.Logger
	out       io.Writer
	clock     clock.Clock
	openStore func(ctx context.Context, cfg config.PostgresConfig) (*persistence.Store, error)
}

func (a *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(a.out, usage)
		return nil
	}
	command, rest := args[0], args[1:]
	switch command {
	case "migrate":
		return a.migrate(ctx, rest)
	case "deactivate":
		return a.deactivate(ctx, rest)
	case "sla":
		return a.sla(ctx, rest)
	case "token":
		return a.token(ctx, rest)
	}
	return fmt.Errorf("unknown command %q\n\n%s", command, usage)
}

func (a *cli) parse(name string, args []string, define func(*pflag.FlagSet)) error {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(a.out)
	define(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return nil
}

func (a *cli) migrate(ctx context.Context, args []string) error {
	dir := a.cfg.Postgres.MigrationsDir
	if err := a.parse("migrate", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&dir, "dir", dir, "directory holding the *.sql migrations")
	}); err != nil {
		return err
	}
	if a.cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required to migrate")
	}
	pgCfg := a.cfg.Postgres
	pgCfg.RunMigrations = true
	pgCfg.MigrationsDir = dir
	store, err := a.openStore(ctx, pgCfg)
	if err != nil {
		return err
	}
	store.Close()
	fmt.Fprintln(a.out, "migrations applied")
	return nil
}

func (a *cli) deactivate(ctx context.Context, args []string) error {
	var userID, actorID string
	if err := a.parse("deactivate", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&userID, "user", "", "id of the user to deactivate")
		fs.StringVar(&actorID, "actor", "", "id of the admin performing the deactivation")
	}); err != nil {
		return err
	}
	if userID == "" || actorID == "" {
		return errors.New("--user and --actor are required")
	}

	store, services, cleanup, err := a.services(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	actor, err := store.Users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("load actor %s: %w", actorID, err)
	}
	result, err := services.Users.DeactivateUser(ctx, actor, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deactivated %s (%s)\n", result.User.DisplayName(), result.User.ID)
	fmt.Fprintf(a.out, "tickets needing reassignment: %d\n", len(result.AffectedTickets))
	for _, id := range result.AffectedTickets {
		fmt.Fprintf(a.out, "  #%d\n", id)
	}
	fmt.Fprintf(a.out, "tasks created: %d, notifications sent: %d\n", result.TasksCreated, result.NotificationsSent)
	return nil
}

func (a *cli) sla(ctx context.Context, args []string) error {
	var ticketArg string
	if err := a.parse("sla", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&ticketArg, "ticket", "", "ticket number")
	}); err != nil {
		return err
	}
	ticketID, err := strconv.ParseInt(ticketArg, 10, 64)
	if err != nil || ticketID <= 0 {
		return fmt.Errorf("--ticket must be a positive number, got %q", ticketArg)
	}

	store, services, cleanup, err := a.services(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ticket, err := store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket #%d: %w", ticketID, err)
	}
	project, err := store.Projects.GetByID(ctx, ticket.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", ticket.ProjectID, err)
	}
	hours, err := services.SLA.HoursFor(ctx, ticket.Priority, project)
	if err != nil {
		return err
	}
	status := lifecycle.EvaluateSLA(ticket, a.now())

	fmt.Fprintf(a.out, "ticket #%d %s [%s]\n", ticket.ID, ticket.Title, ticket.Status.Label())
	fmt.Fprintf(a.out, "priority: %s (policy %dh)\n", ticket.Priority.Label(), hours)
	fmt.Fprintf(a.out, "sla: %s\n", status.Display())
	if status.Deadline != nil {
		fmt.Fprintf(a.out, "deadline: %s\n", status.Deadline.UTC().Format("2006-01-02 15:04 MST"))
	}
	if ticket.SLAPausedDuration > 0 {
		fmt.Fprintf(a.out, "paused for: %s\n", ticket.SLAPausedDuration)
	}
	return nil
}

func (a *cli) token(ctx context.Context, args []string) error {
	var userID string
	if err := a.parse("token", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&userID, "user", "", "id of the user")
	}); err != nil {
		return err
	}
	if userID == "" {
		return errors.New("--user is required")
	}
	_, services, cleanup, err := a.services(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	token, exp, err := services.Auth.IssueToken(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	a.logger.Info("token issued", zap.String("user_id", userID), zap.Time("expires_at", exp))
	return nil
}

// services opens the store and wires the service graph. Events raised by
// the CLI are forwarded to the configured bridges synchronously.
func (a *cli) services(ctx context.Context) (*persistence.Store, *service.Services, func(), error) {
	pgCfg := a.cfg.Postgres
	pgCfg.RunMigrations = false
	store, err := a.openStore(ctx, pgCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	dispatcher := events.NewInMemoryDispatcher()
	redis := persistence.NewRedis(a.cfg.Redis, a.logger)
	if redis != nil {
		events.NewRedisBridge(redis, a.cfg.Redis.EventsChannel).Register(dispatcher)
	}
	broker, err := persistence.NewAMQP(a.cfg.AMQP, a.logger)
	if err != nil {
		a.logger.Warn("amqp unavailable; events will not reach the exchange", zap.Error(err))
		broker = nil
	}
	if broker != nil {
		events.NewAMQPBridge(broker).Register(dispatcher)
	}

	services := service.NewServices(a.cfg, store.Repositories, service.Runtime{
		Clock:      a.clock,
		Dispatcher: dispatcher,
		Logger:     a.logger,
	})
	cleanup := func() {
		_ = broker.Close()
		redis.Close()
		store.Close()
	}
	return store, services, cleanup, nil
}

func (a *cli) now() time.Time {
	if a.clock != nil {
		return a.clock.Now()
	}
	return clock.Real().Now()
}
