package persistence

import (
	"context"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/repository"
	"github.com/alpi-dev/alpi/internal/repository/memstore"
)

// Store is the repository set of one backend. Exactly one of Postgres and
// Memory is set.
type Store struct {
	repository.Repositories

	Postgres *Postgres
	Memory   *memstore.Store
}

// OpenStore connects to Postgres, applying migrations when configured, or
// falls back to the in-memory store when no DSN is set.
func OpenStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Store, error) {
	pg, err := NewPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	pool := pg.PoolHandle()
	if pool == nil {
		mem := memstore.New()
		return &Store{Repositories: mem.Repositories(), Memory: mem}, nil
	}

	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pool, cfg.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, err
		}
	}
	return &Store{Repositories: repository.NewPostgresRepositories(pool), Postgres: pg}, nil
}

// Close releases the backend.
func (s *Store) Close() {
	if s != nil && s.Postgres != nil {
		s.Postgres.Close()
	}
}
