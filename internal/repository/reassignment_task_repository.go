package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// ReassignmentTaskRepository stores the follow-ups created when an assignee
// is deactivated.
type ReassignmentTaskRepository interface {
	Create(ctx context.Context, task *domain.ReassignmentTask) error
	// CompleteForTicket closes every open task of the ticket and returns how
	// many were closed.
	CompleteForTicket(ctx context.Context, ticketID int64, at time.Time) (int64, error)
	ListOpenByOwner(ctx context.Context, ownerID string) ([]domain.ReassignmentTask, error)
}

type reassignmentTaskRepository struct {
	pool *pgxpool.Pool
}

// NewReassignmentTaskRepository instantiates the repository.
func NewReassignmentTaskRepository(pool *pgxpool.Pool) ReassignmentTaskRepository {
	return &reassignmentTaskRepository{pool: pool}
}

func (r *reassignmentTaskRepository) Create(ctx context.Context, task *domain.ReassignmentTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `
        INSERT INTO reassignment_tasks (ticket_id, project_owner_id, deactivated_user_id, is_completed, created_at)
        VALUES ($1,$2,$3,FALSE,$4)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		task.TicketID,
		task.ProjectOwnerID,
		task.DeactivatedUserID,
		task.CreatedAt,
	).Scan(&task.ID)
	return errors.Wrap(err, "insert reassignment task")
}

func (r *reassignmentTaskRepository) CompleteForTicket(ctx context.Context, ticketID int64, at time.Time) (int64, error) {
	const query = `
        UPDATE reassignment_tasks SET is_completed=TRUE, completed_at=$2
        WHERE ticket_id=$1 AND NOT is_completed`
	cmd, err := r.pool.Exec(ctx, query, ticketID, at)
	if err != nil {
		return 0, errors.Wrap(err, "complete reassignment tasks")
	}
	return cmd.RowsAffected(), nil
}

func (r *reassignmentTaskRepository) ListOpenByOwner(ctx context.Context, ownerID string) ([]domain.ReassignmentTask, error) {
	const query = `
        SELECT id, ticket_id, project_owner_id, deactivated_user_id, is_completed, created_at, completed_at
        FROM reassignment_tasks WHERE project_owner_id=$1 AND NOT is_completed
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list reassignment tasks")
	}
	defer rows.Close()

	var result []domain.ReassignmentTask
	for rows.Next() {
		var t domain.ReassignmentTask
		if err := rows.Scan(
			&t.ID,
			&t.TicketID,
			&t.ProjectOwnerID,
			&t.DeactivatedUserID,
			&t.IsCompleted,
			&t.CreatedAt,
			&t.CompletedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan reassignment task")
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
