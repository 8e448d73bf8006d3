package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles one backend's implementation of every repository.
type Repositories struct {
	Tickets       TicketRepository
	Comments      CommentRepository
	Notifications NotificationRepository
	Tasks         ReassignmentTaskRepository
	Users         UserRepository
	Projects      ProjectRepository
	Settings      SettingsRepository
}

// NewPostgresRepositories builds every repository over pool.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Tickets:       NewTicketRepository(pool),
		Comments:      NewCommentRepository(pool),
		Notifications: NewNotificationRepository(pool),
		Tasks:         NewReassignmentTaskRepository(pool),
		Users:         NewUserRepository(pool),
		Projects:      NewProjectRepository(pool),
		Settings:      NewSettingsRepository(pool),
	}
}
