package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/alpi-dev/alpi/internal/domain"
)

// SettingsRepository stores the singleton global settings row.
type SettingsRepository interface {
	GetGlobal(ctx context.Context) (*domain.GlobalSettings, error)
	// SaveGlobal updates the row addressed by settings.ID, or inserts one
	// when ID is empty.
	SaveGlobal(ctx context.Context, settings *domain.GlobalSettings) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates the repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) GetGlobal(ctx context.Context) (*domain.GlobalSettings, error) {
	const query = `
        SELECT id, sla_p0_hours, sla_p1_hours, sla_p2_hours, sla_p3_hours, updated_at
        FROM global_settings ORDER BY updated_at DESC LIMIT 1`

	var (
		s              domain.GlobalSettings
		p0, p1, p2, p3 *int
	)
	if err := r.pool.QueryRow(ctx, query).Scan(&s.ID, &p0, &p1, &p2, &p3, &s.UpdatedAt); err != nil {
		return nil, wrap(err, "select global settings")
	}
	s.SLAHours = slaHours(p0, p1, p2, p3)
	return &s, nil
}

func (r *settingsRepository) SaveGlobal(ctx context.Context, settings *domain.GlobalSettings) error {
	p0, p1, p2, p3 := slaColumns(settings.SLAHours)
	if settings.ID == "" {
		const insert = `
            INSERT INTO global_settings (sla_p0_hours, sla_p1_hours, sla_p2_hours, sla_p3_hours, updated_at)
            VALUES ($1,$2,$3,$4,$5)
            RETURNING id`
		err := r.pool.QueryRow(ctx, insert, p0, p1, p2, p3, settings.UpdatedAt).Scan(&settings.ID)
		return wrap(err, "insert global settings")
	}

	const update = `
        UPDATE global_settings SET sla_p0_hours=$1, sla_p1_hours=$2, sla_p2_hours=$3, sla_p3_hours=$4, updated_at=$5
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, update, p0, p1, p2, p3, settings.UpdatedAt, settings.ID)
	if err != nil {
		return errors.Wrap(err, "update global settings")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
