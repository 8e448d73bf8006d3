package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alpi-dev/alpi/internal/auth"
	"github.com/alpi-dev/alpi/internal/service"
)

// NotificationsHandler serves the caller's inbox.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler builds a handler.
func NewNotificationsHandler(svc *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: svc}
}

// List GET /notifications?unread=true&limit=50.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForUser(c.UserContext(), actor, c.QueryBool("unread", false), parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponses(items)})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, err := auth.ProfileFromContext(c)
	if err != nil {
		return err
	}
	count, err := h.service.MarkAllRead(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": count}})
}
