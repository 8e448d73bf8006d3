package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/api/dto"
	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/repository"
	"github.com/alpi-dev/alpi/internal/service"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// UsersHandler exposes profile and user administration endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(actor)})
}

// List GET /users?role=DEVELOPER&active=true.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	filter := repository.UserFilter{ActiveOnly: c.QueryBool("active", false)}
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(strings.ToUpper(raw))
		if !role.Valid() {
			return apperrors.NewValidationError("invalid role", map[string]any{"role": raw})
		}
		filter.Role = &role
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	users, err := h.users.ListUsers(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// Deactivate POST /users/:id/deactivate.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	result, err := h.users.DeactivateUser(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	affected := result.AffectedTickets
	if affected == nil {
		affected = []int64{}
	}
	return c.JSON(fiber.Map{"data": dto.DeactivationResponse{
		User:              userResponse(result.User),
		AffectedTickets:   affected,
		CommentsWritten:   result.CommentsWritten,
		TasksCreated:      result.TasksCreated,
		NotificationsSent: result.NotificationsSent,
	}})
}

// Reactivate POST /users/:id/reactivate.
func (h *UsersHandler) Reactivate(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ReactivateUserRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	profile, err := h.users.ReactivateUser(c.UserContext(), actor, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(profile)})
}

// ChangeRole PATCH /users/:id/role.
func (h *UsersHandler) ChangeRole(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	profile, err := h.users.ChangeRole(c.UserContext(), actor, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(profile)})
}

// ReassignmentTasks GET /reassignment-tasks lists the caller's open tasks.
func (h *UsersHandler) ReassignmentTasks(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	tasks, err := h.users.ListReassignmentTasks(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.ReassignmentTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, dto.ReassignmentTaskResponse{
			ID:                t.ID,
			TicketID:          t.TicketID,
			DeactivatedUserID: t.DeactivatedUserID,
			CreatedAt:         t.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}
