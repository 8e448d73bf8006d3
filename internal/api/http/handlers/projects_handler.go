package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/api/dto"
	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/service"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// ProjectsHandler exposes project and membership administration.
type ProjectsHandler struct {
	projects *service.ProjectService
}

// NewProjectsHandler constructs handler.
func NewProjectsHandler(projects *service.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// List GET /projects.
func (h *ProjectsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	projects, err := h.projects.ListProjects(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		resp = append(resp, projectResponse(&projects[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Create POST /projects.
func (h *ProjectsHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	project, err := h.projects.CreateProject(c.UserContext(), actor, service.ProjectCreateInput{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": projectResponse(project)})
}

// Get GET /projects/:projectID.
func (h *ProjectsHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	view, err := h.projects.GetProject(c.UserContext(), actor, c.Params("projectID"))
	if err != nil {
		return err
	}
	members := make([]dto.ProjectMemberResponse, 0, len(view.Members))
	for i := range view.Members {
		members = append(members, memberResponse(&view.Members[i]))
	}
	return c.JSON(fiber.Map{"data": dto.ProjectDetailResponse{
		ProjectResponse:   projectResponse(view.Project),
		Members:           members,
		EffectiveSLAHours: view.EffectiveSLA,
	}})
}

// Update PATCH /projects/:projectID.
func (h *ProjectsHandler) Update(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	project, err := h.projects.UpdateProject(c.UserContext(), actor, c.Params("projectID"), service.ProjectUpdateInput{
		Name:        req.Name,
		Description: req.Description,
		SLAHours:    req.SLAHours,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": projectResponse(project)})
}

// AddMember POST /projects/:projectID/members.
func (h *ProjectsHandler) AddMember(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	member, err := h.projects.AddMember(c.UserContext(), actor, c.Params("projectID"), req.UserID, req.Role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": memberResponse(member)})
}

// RemoveMember DELETE /projects/:projectID/members/:userID.
func (h *ProjectsHandler) RemoveMember(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	if err := h.projects.RemoveMember(c.UserContext(), actor, c.Params("projectID"), c.Params("userID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
