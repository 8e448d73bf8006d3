package dto

import (
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
)

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  *int64                  `json:"ticket_id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}
