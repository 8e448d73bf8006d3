package domain

import "time"

// TicketComment is an append-only entry in a ticket thread. System comments
// record lifecycle transitions and are written together with the ticket row.
type TicketComment struct {
	ID                string
	TicketID          int64
	AuthorID          string
	Body              string
	IsSystemGenerated bool
	CreatedAt         time.Time
}
