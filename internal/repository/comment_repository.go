package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// CommentRepository manages the append-only ticket thread.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketComment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertComment(ctx context.Context, q rowQuerier, comment *domain.TicketComment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, author_id, body, is_system_generated, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	err := q.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Body,
		comment.IsSystemGenerated,
		comment.CreatedAt,
	).Scan(&comment.ID)
	return errors.Wrap(err, "insert comment")
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	return insertComment(ctx, r.pool, comment)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	const query = `
        SELECT id, ticket_id, author_id, body, is_system_generated, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, errors.Wrap(err, "list comments")
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var comment domain.TicketComment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Body,
			&comment.IsSystemGenerated,
			&comment.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan comment")
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
