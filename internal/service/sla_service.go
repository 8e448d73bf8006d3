package service

import (
	"context"
	"errors"

	"github.com/alpi-dev/alpi/internal/config"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// SLAService resolves SLA hours: project override, then the global settings
// row, then configured defaults.
type SLAService struct {
	settings repository.SettingsRepository
	defaults map[domain.TicketPriority]int
}

// NewSLAService creates the service. A nil settings repository means only
// configured defaults apply.
func NewSLAService(cfg config.SLAConfig, settings repository.SettingsRepository) *SLAService {
	defaults := lifecycle.DefaultSLAHours()
	for priority, hours := range cfg.Hours {
		if hours > 0 {
			defaults[priority] = hours
		}
	}
	return &SLAService{settings: settings, defaults: defaults}
}

// Policy returns the policy in effect now.
func (s *SLAService) Policy(ctx context.Context) (lifecycle.SLAPolicy, error) {
	hours := make(map[domain.TicketPriority]int, len(s.defaults))
	for priority, h := range s.defaults {
		hours[priority] = h
	}
	if s.settings == nil {
		return lifecycle.SLAPolicy{Defaults: hours}, nil
	}

	global, err := s.settings.GetGlobal(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return lifecycle.SLAPolicy{}, apperrors.MapError(err)
	default:
		for priority, h := range global.SLAHours {
			if h > 0 {
				hours[priority] = h
			}
		}
	}
	return lifecycle.SLAPolicy{Defaults: hours}, nil
}

// HoursFor is Policy(ctx).Hours(priority, project).
func (s *SLAService) HoursFor(ctx context.Context, priority domain.TicketPriority, project *domain.Project) (int, error) {
	policy, err := s.Policy(ctx)
	if err != nil {
		return 0, err
	}
	return policy.Hours(priority, project), nil
}
