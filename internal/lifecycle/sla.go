package lifecycle

import (
	"fmt"
	"time"

	"github.com/alpi-dev/alpi/internal/domain"
)

// DefaultSLAHours are used when neither the project nor the global settings
// define hours for a priority.
func DefaultSLAHours() map[domain.TicketPriority]int {
	return map[domain.TicketPriority]int{
		domain.TicketPriorityP0Critical: 4,
		domain.TicketPriorityP1High:     24,
		domain.TicketPriorityP2Medium:   168,
		domain.TicketPriorityP3Low:      720,
	}
}

// SLAPolicy resolves the SLA hours of a priority.
type SLAPolicy struct {
	Defaults map[domain.TicketPriority]int
}

// Hours returns the project override when positive, else the policy
// default, else the built-in default.
func (p SLAPolicy) Hours(priority domain.TicketPriority, project *domain.Project) int {
	if project != nil {
		if h, ok := project.SLAHours[priority]; ok && h > 0 {
			return h
		}
	}
	if h, ok := p.Defaults[priority]; ok && h > 0 {
		return h
	}
	return DefaultSLAHours()[priority]
}

// Deadline is createdAt plus hours.
func Deadline(createdAt time.Time, hours int) time.Time {
	return createdAt.Add(time.Duration(hours) * time.Hour)
}

// SLAState classifies a ticket's SLA at a point in time.
type SLAState string

const (
	SLAStateNone    SLAState = "none"
	SLAStateRunning SLAState = "running"
	SLAStatePaused  SLAState = "paused"
	SLAStateOverdue SLAState = "overdue"
	SLAStateStopped SLAState = "stopped"
)

// SLAStatus is the evaluated SLA of one ticket.
type SLAStatus struct {
	State SLAState
	// Deadline is the effective deadline: sla_deadline plus time spent blocked.
	Deadline  *time.Time
	Remaining time.Duration
}

// EvaluateSLA reports the SLA state at now. A blocked ticket is always
// paused, with Remaining frozen at the moment it was blocked.
func EvaluateSLA(t *domain.Ticket, now time.Time) SLAStatus {
	if t.SLADeadline == nil {
		return SLAStatus{State: SLAStateNone}
	}
	effective := t.SLADeadline.Add(t.SLAPausedDuration)
	status := SLAStatus{Deadline: &effective}

	switch {
	case t.BlockedAt != nil:
		status.State = SLAStatePaused
		status.Remaining = effective.Sub(*t.BlockedAt)
	case t.Status == domain.TicketStatusResolved,
		t.Status == domain.TicketStatusCancelled,
		t.Status == domain.TicketStatusDuplicate:
		status.State = SLAStateStopped
	case now.After(effective):
		status.State = SLAStateOverdue
	default:
		status.State = SLAStateRunning
		status.Remaining = effective.Sub(now)
	}
	return status
}

// Display renders the status the way the ticket list shows it.
func (s SLAStatus) Display() string {
	switch s.State {
	case SLAStateNone:
		return "-"
	case SLAStatePaused:
		return "Paused"
	case SLAStateOverdue:
		return "Overdue"
	case SLAStateStopped:
		return "Stopped"
	}
	return formatRemaining(s.Remaining)
}

func formatRemaining(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
