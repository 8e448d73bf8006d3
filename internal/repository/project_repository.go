package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// ProjectRepository stores projects and their memberships.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	// List returns projects newest first. A non-empty memberID keeps only the
	// projects that user belongs to.
	List(ctx context.Context, memberID string) ([]domain.Project, error)
	// Create inserts project together with its first member. A taken slug
	// yields ErrDuplicate.
	Create(ctx context.Context, project *domain.Project, owner *domain.ProjectMember) error
	// Update stores name, description and SLA overrides.
	Update(ctx context.Context, project *domain.Project) error
	// ListMembers returns the members of a project with their profiles.
	ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error)
	// AddMember yields ErrDuplicate when the user is already a member.
	AddMember(ctx context.Context, member *domain.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository instantiates the repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

const projectColumns = `id, name, slug, description, created_by, sla_p0_hours, sla_p1_hours, sla_p2_hours, sla_p3_hours, created_at`

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id=$1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrap(err, "select project")
	}
	return p, nil
}

func (r *projectRepository) List(ctx context.Context, memberID string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if memberID != "" {
		args = append(args, memberID)
		query += ` WHERE id IN (SELECT project_id FROM project_members WHERE user_id=$1)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	defer rows.Close()

	var result []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan project")
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project, owner *domain.ProjectMember) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		p0, p1, p2, p3 := slaColumns(project.SLAHours)
		const insertProject = `
            INSERT INTO projects (name, slug, description, created_by, sla_p0_hours, sla_p1_hours, sla_p2_hours, sla_p3_hours, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            RETURNING id`
		if err := tx.QueryRow(ctx, insertProject,
			project.Name,
			project.Slug,
			project.Description,
			project.CreatedBy,
			p0, p1, p2, p3,
			project.CreatedAt,
		).Scan(&project.ID); err != nil {
			return wrap(err, "insert project")
		}

		owner.ProjectID = project.ID
		return insertMember(ctx, tx, owner)
	})
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	p0, p1, p2, p3 := slaColumns(project.SLAHours)
	const query = `
        UPDATE projects SET name=$1, description=$2, sla_p0_hours=$3, sla_p1_hours=$4, sla_p2_hours=$5, sla_p3_hours=$6
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query, project.Name, project.Description, p0, p1, p2, p3, project.ID)
	if err != nil {
		return errors.Wrap(err, "update project")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *projectRepository) AddMember(ctx context.Context, member *domain.ProjectMember) error {
	return insertMember(ctx, r.pool, member)
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM project_members WHERE project_id=$1 AND user_id=$2`, projectID, userID)
	if err != nil {
		return errors.Wrap(err, "delete member")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertMember(ctx context.Context, q rowQuerier, member *domain.ProjectMember) error {
	const query = `
        INSERT INTO project_members (project_id, user_id, role, joined_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	err := q.QueryRow(ctx, query, member.ProjectID, member.UserID, member.Role, member.JoinedAt).Scan(&member.ID)
	return wrap(err, "insert member")
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var (
		p              domain.Project
		p0, p1, p2, p3 *int
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.CreatedBy,
		&p0, &p1, &p2, &p3,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.SLAHours = slaHours(p0, p1, p2, p3)
	return &p, nil
}

func (r *projectRepository) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	const query = `
        SELECT m.id, m.project_id, m.user_id, m.role, m.joined_at,
               p.id, p.email, p.full_name, p.role, p.avatar_url, p.is_active, p.deactivated_at, p.created_at
        FROM project_members m
        JOIN profiles p ON p.id = m.user_id
        WHERE m.project_id=$1
        ORDER BY m.joined_at ASC`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "list members")
	}
	defer rows.Close()

	var result []domain.ProjectMember
	for rows.Next() {
		var (
			m       domain.ProjectMember
			profile domain.Profile
		)
		if err := rows.Scan(
			&m.ID,
			&m.ProjectID,
			&m.UserID,
			&m.Role,
			&m.JoinedAt,
			&profile.ID,
			&profile.Email,
			&profile.FullName,
			&profile.Role,
			&profile.AvatarURL,
			&profile.IsActive,
			&profile.DeactivatedAt,
			&profile.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan member")
		}
		m.Profile = &profile
		result = append(result, m)
	}
	return result, rows.Err()
}

// slaColumns is the inverse of slaHours: missing priorities become NULL.
func slaColumns(hours map[domain.TicketPriority]int) (p0, p1, p2, p3 *int) {
	column := func(priority domain.TicketPriority) *int {
		if h, ok := hours[priority]; ok && h > 0 {
			return &h
		}
		return nil
	}
	return column(domain.TicketPriorityP0Critical),
		column(domain.TicketPriorityP1High),
		column(domain.TicketPriorityP2Medium),
		column(domain.TicketPriorityP3Low)
}

// slaHours keeps only the priorities that have an override.
func slaHours(p0, p1, p2, p3 *int) map[domain.TicketPriority]int {
	out := make(map[domain.TicketPriority]int, 4)
	for priority, hours := range map[domain.TicketPriority]*int{
		domain.TicketPriorityP0Critical: p0,
		domain.TicketPriorityP1High:     p1,
		domain.TicketPriorityP2Medium:   p2,
		domain.TicketPriorityP3Low:      p3,
	} {
		if hours != nil {
			out[priority] = *hours
		}
	}
	return out
}
