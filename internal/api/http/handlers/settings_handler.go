package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/api/dto"
	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/service"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// SettingsHandler exposes the global SLA settings.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSLA GET /settings/sla.
func (h *SettingsHandler) GetSLA(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	hours, err := h.settings.GlobalSLA(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLASettingsResponse{SLAHours: hours}})
}

// UpdateSLA PUT /settings/sla.
func (h *SettingsHandler) UpdateSLA(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.SLASettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	hours, err := h.settings.UpdateGlobalSLA(c.UserContext(), actor, req.SLAHours)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLASettingsResponse{SLAHours: hours}})
}
