package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// NotificationRepository stores per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `
        INSERT INTO notifications (user_id, ticket_id, type, message, is_read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		n.UserID,
		n.TicketID,
		n.Type,
		n.Message,
		n.IsRead,
		n.CreatedAt,
	).Scan(&n.ID)
	return errors.Wrap(err, "insert notification")
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
        SELECT id, user_id, ticket_id, type, message, is_read, created_at
        FROM notifications WHERE id=$1`
	var n domain.Notification
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.TicketID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt,
	); err != nil {
		return nil, wrap(err, "select notification")
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `
        SELECT id, user_id, ticket_id, type, message, is_read, created_at
        FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TicketID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "mark notifications read")
	}
	return cmd.RowsAffected(), nil
}
