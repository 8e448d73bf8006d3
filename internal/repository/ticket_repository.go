package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// TicketFilter captures project list parameters.
type TicketFilter struct {
	ProjectID  string
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// ApplyTransition stores ticket and appends comment in one atomic write.
	// The write only happens when the stored version still equals
	// ticket.Version; on success ticket.Version is incremented.
	ApplyTransition(ctx context.Context, ticket *domain.Ticket, comment *domain.TicketComment) error
	SwapSortOrder(ctx context.Context, a, b int64) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListAssignedTo(ctx context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error)
	// MaxSortOrder returns -1 for a project without tickets.
	MaxSortOrder(ctx context.Context, projectID string) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, project_id, title, description, priority, status, assigned_to, created_by,
               sort_order, duplicate_of, rejection_reason, sla_deadline, blocked_at, sla_paused_seconds,
               report_link, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (project_id, title, description, priority, status, assigned_to, created_by,
            sort_order, sla_deadline, report_link, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, version`
	err := r.pool.QueryRow(ctx, query,
		ticket.ProjectID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.SortOrder,
		ticket.SLADeadline,
		ticket.ReportLink,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID, &ticket.Version)
	return wrap(err, "insert ticket")
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrap(err, "select ticket")
	}
	return ticket, nil
}

func (r *ticketRepository) ApplyTransition(ctx context.Context, ticket *domain.Ticket, comment *domain.TicketComment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const update = `
            UPDATE tickets SET title=$1, description=$2, priority=$3, status=$4, assigned_to=$5,
                duplicate_of=$6, rejection_reason=$7, sla_deadline=$8, blocked_at=$9,
                sla_paused_seconds=$10, report_link=$11, updated_at=$12, version=version+1
            WHERE id=$13 AND version=$14`
		cmd, err := tx.Exec(ctx, update,
			ticket.Title,
			ticket.Description,
			ticket.Priority,
			ticket.Status,
			ticket.AssignedTo,
			ticket.DuplicateOf,
			ticket.RejectionReason,
			ticket.SLADeadline,
			ticket.BlockedAt,
			int64(ticket.SLAPausedDuration/time.Second),
			ticket.ReportLink,
			ticket.UpdatedAt,
			ticket.ID,
			ticket.Version,
		)
		if err != nil {
			return errors.Wrap(err, "update ticket")
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
				return errors.Wrap(err, "check ticket")
			}
			if !exists {
				return ErrNotFound
			}
			return ErrVersionConflict
		}

		if comment != nil {
			if err := insertComment(ctx, tx, comment); err != nil {
				return err
			}
		}
		ticket.Version++
		return nil
	})
}

func (r *ticketRepository) SwapSortOrder(ctx context.Context, a, b int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, sort_order FROM tickets WHERE id IN ($1,$2) ORDER BY id FOR UPDATE`, a, b)
		if err != nil {
			return errors.Wrap(err, "lock tickets")
		}
		orders := make(map[int64]int64, 2)
		for rows.Next() {
			var id, order int64
			if err := rows.Scan(&id, &order); err != nil {
				rows.Close()
				return errors.Wrap(err, "scan sort order")
			}
			orders[id] = order
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "read sort order")
		}
		if len(orders) != 2 {
			return ErrNotFound
		}

		const update = `UPDATE tickets SET sort_order=$1 WHERE id=$2`
		if _, err := tx.Exec(ctx, update, orders[b], a); err != nil {
			return errors.Wrap(err, "update sort order")
		}
		if _, err := tx.Exec(ctx, update, orders[a], b); err != nil {
			return errors.Wrap(err, "update sort order")
		}
		return nil
	})
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"project_id=$1"}
	args := []any{filter.ProjectID}

	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SearchTerm))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY sort_order ASC, created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAssignedTo(ctx context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	args := []any{userID}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE assigned_to=$1`
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list assigned tickets")
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) MaxSortOrder(ctx context.Context, projectID string) (int64, error) {
	var highest int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(sort_order), -1) FROM tickets WHERE project_id=$1`, projectID).Scan(&highest)
	if err != nil {
		return 0, errors.Wrap(err, "max sort order")
	}
	return highest, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket       domain.Ticket
		pausedSecond int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ProjectID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.SortOrder,
		&ticket.DuplicateOf,
		&ticket.RejectionReason,
		&ticket.SLADeadline,
		&ticket.BlockedAt,
		&pausedSecond,
		&ticket.ReportLink,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.SLAPausedDuration = time.Duration(pausedSecond) * time.Second
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
