package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/api/dto"
	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/service"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// TicketsHandler handles ticket endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	lifecycle *service.LifecycleService
}

// NewTicketsHandler builds a handler.
func NewTicketsHandler(tickets *service.TicketService, lifecycleSvc *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, lifecycle: lifecycleSvc}
}

// CreateTicket POST /projects/:projectID/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		ProjectID:   c.Params("projectID"),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		ReportLink:  req.ReportLink,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /projects/:projectID/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	list, err := h.tickets.ListProjectTickets(c.UserContext(), actor, c.Params("projectID"), parseTicketQuery(c))
	if err != nil {
		return err
	}
	resp := make([]dto.TicketSummary, 0, len(list))
	for i := range list {
		summary := ticketSummary(&list[i].Ticket)
		summary.SLA = slaResponse(list[i].SLA)
		resp = append(resp, summary)
	}
	return c.JSON(fiber.Map{"data": resp})
}

// AssignableUsers GET /projects/:projectID/assignable-users.
func (h *TicketsHandler) AssignableUsers(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.lifecycle.AssignableUsers(c.UserContext(), actor, c.Params("projectID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// EditTicket PATCH /tickets/:id.
func (h *TicketsHandler) EditTicket(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.EditTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.EditDetails(c.UserContext(), actor, id, req.Title, req.Description, req.ReportLink)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.tickets.AddComment(c.UserContext(), actor, id, req.Body)
	if err != nil {
		return err
	}
	author := userResponse(actor)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CommentResponse{
		ID:                comment.ID,
		AuthorID:          comment.AuthorID,
		Author:            &author,
		Body:              comment.Body,
		IsSystemGenerated: comment.IsSystemGenerated,
		CreatedAt:         comment.CreatedAt,
	}})
}

// MoveTicket POST /tickets/:id/move.
func (h *TicketsHandler) MoveTicket(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.MoveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.tickets.MoveTicket(c.UserContext(), actor, id, req.Direction, req.VisibleIDs); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Transition returns the handler for POST /tickets/:id/<transition>.
func (h *TicketsHandler) Transition(tr lifecycle.Transition) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ProfileFromContext(c)
		if err != nil {
			return err
		}
		id, err := ticketIDParam(c)
		if err != nil {
			return err
		}
		var req dto.TransitionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return apperrors.NewValidationError("invalid payload", nil)
			}
		}
		ticket, err := h.lifecycle.Execute(c.UserContext(), actor, id, lifecycle.Request{
			Transition:      tr,
			Text:            req.Comment,
			AssigneeID:      req.AssigneeID,
			Priority:        req.Priority,
			RejectionReason: req.RejectionReason,
			DuplicateOf:     req.DuplicateOf,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
	}
}

// TransitionPath is the route segment for tr, e.g. mark-testing.
func TransitionPath(tr lifecycle.Transition) string {
	return strings.ReplaceAll(string(tr), "_", "-")
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(part)))
	}
	for _, part := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(part)))
	}
	if assignee := c.Query("assignee"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 100)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}
