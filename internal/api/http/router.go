package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/alpi-dev/alpi/internal/api/http/handlers"
	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	Users          *handlers.UsersHandler
	Projects       *handlers.ProjectsHandler
	Settings       *handlers.SettingsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Prometheus is nil unless the prometheus metrics backend is selected.
	Prometheus *observability.PrometheusRecorder
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Prometheus != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Prometheus.Handler()))
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	api.Get("/me", cfg.Users.Me)

	api.Get("/projects", cfg.Projects.List)
	api.Post("/projects", cfg.Projects.Create)

	projects := api.Group("/projects/:projectID")
	projects.Get("", cfg.Projects.Get)
	projects.Patch("", cfg.Projects.Update)
	projects.Post("/members", cfg.Projects.AddMember)
	projects.Delete("/members/:userID", cfg.Projects.RemoveMember)
	projects.Get("/tickets", cfg.Tickets.ListTickets)
	projects.Post("/tickets", cfg.Tickets.CreateTicket)
	projects.Get("/assignable-users", cfg.Tickets.AssignableUsers)

	tickets := api.Group("/tickets/:id")
	tickets.Get("", cfg.Tickets.GetTicket)
	tickets.Patch("", cfg.Tickets.EditTicket)
	tickets.Post("/comments", cfg.Tickets.AddComment)
	tickets.Post("/move", cfg.Tickets.MoveTicket)
	for _, tr := range lifecycle.Transitions {
		if tr == lifecycle.TransitionEditDetails {
			continue
		}
		tickets.Post("/"+handlers.TransitionPath(tr), cfg.Tickets.Transition(tr))
	}

	notifications := api.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	api.Get("/reassignment-tasks", cfg.Users.ReassignmentTasks)

	api.Get("/settings/sla", cfg.Settings.GetSLA)
	api.Put("/settings/sla", auth.RequireAdmin(), cfg.Settings.UpdateSLA)

	users := api.Group("/users", auth.RequireAdmin())
	users.Get("", cfg.Users.List)
	users.Post("/:id/deactivate", cfg.Users.Deactivate)
	users.Post("/:id/reactivate", cfg.Users.Reactivate)
	users.Patch("/:id/role", cfg.Users.ChangeRole)
}
