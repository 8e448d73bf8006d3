package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/api/dto"
	"github.com/alpi-dev/alpi/internal/domain"
	"github.com/alpi-dev/alpi/internal/lifecycle"
	"github.com/alpi-dev/alpi/internal/service"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func slaResponse(s lifecycle.SLAStatus) *dto.SLAResponse {
	return &dto.SLAResponse{
		State:            string(s.State),
		Display:          s.Display(),
		Deadline:         s.Deadline,
		RemainingSeconds: int64(s.Remaining.Seconds()),
	}
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		ProjectID:       ticket.ProjectID,
		Title:           ticket.Title,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		AssignedTo:      ticket.AssignedTo,
		SortOrder:       ticket.SortOrder,
		DuplicateOf:     ticket.DuplicateOf,
		RejectionReason: ticket.RejectionReason,
		Version:         ticket.Version,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketDetail(view *service.TicketView) dto.TicketDetailResponse {
	summary := ticketSummary(&view.Ticket)
	summary.SLA = slaResponse(view.SLA)

	comments := make([]dto.CommentResponse, 0, len(view.Comments))
	for _, cv := range view.Comments {
		resp := dto.CommentResponse{
			ID:                cv.Comment.ID,
			AuthorID:          cv.Comment.AuthorID,
			Body:              cv.Comment.Body,
			IsSystemGenerated: cv.Comment.IsSystemGenerated,
			CreatedAt:         cv.Comment.CreatedAt,
		}
		if cv.Author != nil {
			author := userResponse(cv.Author)
			resp.Author = &author
		}
		comments = append(comments, resp)
	}

	available := make([]string, 0, len(view.Available))
	for _, tr := range view.Available {
		available = append(available, string(tr))
	}

	detail := dto.TicketDetailResponse{
		TicketSummary:        summary,
		Description:          view.Ticket.Description,
		CreatedBy:            view.Ticket.CreatedBy,
		ReportLink:           view.Ticket.ReportLink,
		Comments:             comments,
		AvailableTransitions: available,
	}
	if view.Assignee != nil {
		assignee := userResponse(view.Assignee)
		detail.Assignee = &assignee
	}
	return detail
}

func userResponse(p *domain.Profile) dto.UserResponse {
	return dto.UserResponse{
		ID:            p.ID,
		Email:         p.Email,
		FullName:      p.FullName,
		DisplayName:   p.DisplayName(),
		Role:          p.Role,
		AvatarURL:     p.AvatarURL,
		IsActive:      p.IsActive,
		DeactivatedAt: p.DeactivatedAt,
	}
}

func userResponses(profiles []domain.Profile) []dto.UserResponse {
	resp := make([]dto.UserResponse, 0, len(profiles))
	for i := range profiles {
		resp = append(resp, userResponse(&profiles[i]))
	}
	return resp
}

func notificationResponses(items []domain.Notification) []dto.NotificationResponse {
	resp := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, dto.NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			Type:      n.Type,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return resp
}

func projectResponse(p *domain.Project) dto.ProjectResponse {
	hours := p.SLAHours
	if hours == nil {
		hours = map[domain.TicketPriority]int{}
	}
	return dto.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		SLAHours:    hours,
		CreatedAt:   p.CreatedAt,
	}
}

func memberResponse(m *domain.ProjectMember) dto.ProjectMemberResponse {
	resp := dto.ProjectMemberResponse{ID: m.ID, UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
	if m.Profile != nil {
		user := userResponse(m.Profile)
		resp.User = &user
	}
	return resp
}
