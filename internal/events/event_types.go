package events

import (
	"time"

	"github.com/alpharequest/requestmanager/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketSubmitted         EventType = "ticket_submitted"
	EventDepartmentStatusChanged EventType = "department_status_changed"
	EventTicketArchived          EventType = "ticket_archived"
	EventTicketRejected          EventType = "ticket_rejected"
	EventTicketReconciled        EventType = "ticket_reconciled"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	TicketID  int64               `json:"ticket_id"`
	Actor     domain.HistoryActor `json:"actor"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketType domain.TicketType     `json:"ticket_type"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketSubmittedPayload payload.
type TicketSubmittedPayload struct {
	Departments []string `json:"departments"`
}

// DepartmentStatusChangedPayload payload.
type DepartmentStatusChangedPayload struct {
	GroupID   string                  `json:"group_id"`
	GroupName string                  `json:"group_name"`
	OldStatus domain.DepartmentStatus `json:"old_status"`
	NewStatus domain.DepartmentStatus `json:"new_status"`
}

// TicketClosedPayload payload for archived/rejected events.
type TicketClosedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
	Comment   string               `json:"comment,omitempty"`
}

// TicketReconciledPayload payload for sync-driven status folds.
type TicketReconciledPayload struct {
	NinjaTicketID int64                `json:"ninja_ticket_id"`
	Outcome       domain.RequestStatus `json:"outcome"`
}
