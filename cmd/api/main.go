package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/alpi-dev/alpi/internal/api/http"
	"github.com/alpi-dev/alpi/internal/api/http/handlers"
	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/persistence"
	"github.com/alpi-dev/alpi/internal/service"
	"github.com/alpi-dev/alpi/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, err := observability.NewRecorder(cfg.Metrics, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to init metrics", zap.Error(err))
	}

	store, err := persistence.OpenStore(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	broker, err := persistence.NewAMQP(cfg.AMQP, logger)
	if err != nil {
		logger.Fatal("failed to connect amqp", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	var bridges []*events.Bridge
	if redis != nil {
		bridges = append(bridges, events.NewRedisBridge(redis, cfg.Redis.EventsChannel))
	}
	if broker != nil {
		bridges = append(bridges, events.NewAMQPBridge(broker))
	}
	forwarder := worker.NewEventForwarder(1024, logger, recorder, bridges...)
	if len(bridges) > 0 {
		forwarder.Register(dispatcher)
	}
	forwarder.Start()

	services := service.NewServices(cfg, store.Repositories, service.Runtime{
		Clock:      clock.Real(),
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    recorder,
	})
	worker.StartNotificationWorker(services.Notifications, dispatcher)

	if store.Memory != nil {
		seedDevelopmentAdmin(store, services.Auth, cfg.App.Env, logger)
	}

	authMiddleware := auth.NewAuthMiddleware(services.Auth.Tokens(), store.Users)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, recorder, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{}
	if store.Postgres != nil {
		deps["postgres"] = store.Postgres
	}
	if redis != nil {
		deps["redis"] = redis
	}
	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Tickets:        handlers.NewTicketsHandler(services.Tickets, services.Lifecycle),
		Notifications:  handlers.NewNotificationsHandler(services.Notifications),
		Users:          handlers.NewUsersHandler(services.Users),
		Projects:       handlers.NewProjectsHandler(services.Projects),
		Settings:       handlers.NewSettingsHandler(services.Settings),
		AuthMiddleware: authMiddleware,
	}
	if prom, ok := recorder.(*observability.PrometheusRecorder); ok {
		routes.Prometheus = prom
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := forwarder.Close(shutdownCtx); err != nil {
		logger.Warn("event forwarder shutdown", zap.Error(err))
	}
	if broker != nil {
		_ = broker.Close()
	}
	if err := recorder.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
}

// seedDevelopmentAdmin gives an empty in-memory store one admin so the API is
// usable without a database.
func seedDevelopmentAdmin(store *persistence.Store, authService *service.AuthService, env string, logger *zap.Logger) {
	if env != "development" {
		logger.Warn("in-memory store outside development; no users are seeded")
		return
	}
	store.Memory.PutProfile(domain.Profile{
		ID:        "admin",
		Email:     "admin@localhost",
		FullName:  "Development Admin",
		Role:      domain.RoleAdmin,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
	token, exp, err := authService.IssueToken(context.Background(), "admin")
	if err != nil {
		logger.Warn("issue development token", zap.Error(err))
		return
	}
	logger.Info("seeded development admin", zap.String("user_id", "admin"), zap.String("token", token), zap.Time("expires_at", exp))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
