package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// UserFilter defines query params for profile listing.
type UserFilter struct {
	Role       *domain.Role
	ActiveOnly bool
	Limit      int
	Offset     int
}

// UserRepository defines persistence access for profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context, filter UserFilter) ([]domain.Profile, error)
	ListByRole(ctx context.Context, role domain.Role, activeOnly bool) ([]domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const profileColumns = `id, email, full_name, role, avatar_url, is_active, deactivated_at, created_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`

	var p domain.Profile
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.Role,
		&p.AvatarURL,
		&p.IsActive,
		&p.DeactivatedAt,
		&p.CreatedAt,
	); err != nil {
		return nil, wrap(err, "select profile")
	}
	return &p, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role, activeOnly bool) ([]domain.Profile, error) {
	return r.List(ctx, UserFilter{Role: &role, ActiveOnly: activeOnly, Limit: 1000})
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list profiles")
	}
	defer rows.Close()

	var result []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(
			&p.ID,
			&p.Email,
			&p.FullName,
			&p.Role,
			&p.AvatarURL,
			&p.IsActive,
			&p.DeactivatedAt,
			&p.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan profile")
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *userRepository) Update(ctx context.Context, p *domain.Profile) error {
	const query = `
        UPDATE profiles SET full_name=$1, role=$2, avatar_url=$3, is_active=$4, deactivated_at=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		p.FullName,
		p.Role,
		p.AvatarURL,
		p.IsActive,
		p.DeactivatedAt,
		p.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
