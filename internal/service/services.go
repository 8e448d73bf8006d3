package service

import (
	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
)

// Services is the wired service graph shared by the API and the admin CLI.
type Services struct {
	Roles         *RoleResolver
	SLA           *SLAService
	Notifications *NotificationService
	Lifecycle     *LifecycleService
	Tickets       *TicketService
	Users         *UserService
	Projects      *ProjectService
	Settings      *SettingsService
	Auth          *AuthService
}

// Runtime carries the ambient collaborators of every service.
type Runtime struct {
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    observability.Recorder
}

// NewServices wires every service over repos.
func NewServices(cfg *config.Config, repos repository.Repositories, rt Runtime) *Services {
	if rt.Dispatcher == nil {
		rt.Dispatcher = events.NewInMemoryDispatcher()
	}
	roles := NewRoleResolver(repos.Users, repos.Projects)
	sla := NewSLAService(cfg.SLA, repos.Settings)
	notifications := NewNotificationService(cfg.Notification, NotificationDependencies{
		NotificationRepo: repos.Notifications,
		UserRepo:         repos.Users,
		ProjectRepo:      repos.Projects,
		Clock:            rt.Clock,
		Dispatcher:       rt.Dispatcher,
		Logger:           rt.Logger,
		Metrics:          rt.Metrics,
	})
	lifecycleSvc := NewLifecycleService(LifecycleDependencies{
		TicketRepo:   repos.Tickets,
		UserRepo:     repos.Users,
		ProjectRepo:  repos.Projects,
		TaskRepo:     repos.Tasks,
		Roles:        roles,
		SLA:          sla,
		Notification: notifications,
		Clock:        rt.Clock,
		Dispatcher:   rt.Dispatcher,
		Logger:       rt.Logger,
		Metrics:      rt.Metrics,
	})
	return &Services{
		Roles:         roles,
		SLA:           sla,
		Notifications: notifications,
		Lifecycle:     lifecycleSvc,
		Tickets: NewTicketService(TicketDependencies{
			TicketRepo:   repos.Tickets,
			CommentRepo:  repos.Comments,
			UserRepo:     repos.Users,
			ProjectRepo:  repos.Projects,
			Roles:        roles,
			SLA:          sla,
			Lifecycle:    lifecycleSvc,
			Notification: notifications,
			Clock:        rt.Clock,
			Dispatcher:   rt.Dispatcher,
			Logger:       rt.Logger,
			Metrics:      rt.Metrics,
		}),
		Users: NewUserService(UserDependencies{
			UserRepo:     repos.Users,
			TicketRepo:   repos.Tickets,
			CommentRepo:  repos.Comments,
			ProjectRepo:  repos.Projects,
			TaskRepo:     repos.Tasks,
			Notification: notifications,
			Clock:        rt.Clock,
			Dispatcher:   rt.Dispatcher,
			Logger:       rt.Logger,
			Metrics:      rt.Metrics,
		}),
		Projects: NewProjectService(ProjectDependencies{
			ProjectRepo: repos.Projects,
			UserRepo:    repos.Users,
			Roles:       roles,
			SLA:         sla,
			Clock:       rt.Clock,
			Dispatcher:  rt.Dispatcher,
			Logger:      rt.Logger,
			Metrics:     rt.Metrics,
		}),
		Settings: NewSettingsService(SettingsDependencies{
			SettingsRepo: repos.Settings,
			SLA:          sla,
			Clock:        rt.Clock,
			Dispatcher:   rt.Dispatcher,
			Logger:       rt.Logger,
			Metrics:      rt.Metrics,
		}),
		Auth: NewAuthService(cfg.Auth, repos.Users),
	}
}
