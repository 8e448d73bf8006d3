package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/clock"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// SettingsService administers the global settings row.
type SettingsService struct {
	settings repository.SettingsRepository
	sla      *SLAService
	clock    clock.Clock
	effects  sideEffects
}

// SettingsDependencies bundles collaborators for the settings service.
type SettingsDependencies struct {
	SettingsRepo repository.SettingsRepository
	SLA          *SLAService
	Clock        clock.Clock
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      observability.Recorder
}

// NewSettingsService constructs the service.
func NewSettingsService(deps SettingsDependencies) *SettingsService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &SettingsService{
		settings: deps.SettingsRepo,
		sla:      deps.SLA,
		clock:    clk,
		effects:  newSideEffects(deps.Dispatcher, deps.Logger, deps.Metrics),
	}
}

// GlobalSLA returns the default SLA hours in effect for projects without an
// override.
func (s *SettingsService) GlobalSLA(ctx context.Context, actor *domain.Profile) (map[domain.TicketPriority]int, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	policy, err := s.sla.Policy(ctx)
	if err != nil {
		return nil, err
	}
	hours := make(map[domain.TicketPriority]int, len(domain.TicketPriorities))
	for _, priority := range domain.TicketPriorities {
		hours[priority] = policy.Hours(priority, nil)
	}
	return hours, nil
}

// UpdateGlobalSLA replaces the stored global SLA hours. Priorities left out
// or set to zero fall back to the configured defaults. It returns the hours
// in effect afterwards.
func (s *SettingsService) UpdateGlobalSLA(ctx context.Context, actor *domain.Profile, input map[domain.TicketPriority]float64) (map[domain.TicketPriority]int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	hours, err := wholeSLAHours(input)
	if err != nil {
		return nil, err
	}

	current, err := s.settings.GetGlobal(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		current = &domain.GlobalSettings{}
	case err != nil:
		return nil, apperrors.MapError(err)
	}
	current.SLAHours = hours
	current.UpdatedAt = s.clock.Now()
	if err := s.settings.SaveGlobal(ctx, current); err != nil {
		return nil, apperrors.MapError(err)
	}

	effective, err := s.GlobalSLA(ctx, actor)
	if err != nil {
		return nil, err
	}
	s.effects.publishEvent(ctx, events.New(events.EventSettingsChanged, actor.ID, current.UpdatedAt, events.SettingsChangedPayload{
		SLAHours: effective,
	}))
	s.effects.logger.Info("global SLA hours updated", zap.String("actor_id", actor.ID), zap.Any("sla_hours", effective))
	return effective, nil
}
