package dto

import (
	"sort"
	"time"

	"github.com/alpharequest/requestmanager/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	TicketType  domain.TicketType     `json:"ticket_type"`
	Description string                `json:"description"`
	Assignee    domain.UserRef        `json:"assignee"`
	Supervisor  domain.UserRef        `json:"supervisor"`
	Accountable domain.UserRef        `json:"accountable"`
	Priority    domain.TicketPriority `json:"priority"`
	Comment     string                `json:"comment"`
	Tags        []string              `json:"tags"`
}

// UpdateTicketRequest payload; nil fields stay untouched.
type UpdateTicketRequest struct {
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	Assignee    *domain.UserRef        `json:"assignee"`
	Comment     *string                `json:"comment"`
	Tags        []string               `json:"tags"`
}

// DepartmentActionRequest records a department decision on a ticket.
type DepartmentActionRequest struct {
	GroupID string                  `json:"group_id"`
	Status  domain.DepartmentStatus `json:"status"`
}

// LinkNinjaRequest attaches an external ticket id.
type LinkNinjaRequest struct {
	NinjaTicketID int64 `json:"ninja_ticket_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         int64                 `json:"id"`
	Title      string                `json:"title"`
	TicketType domain.TicketType     `json:"ticket_type"`
	OwnerName  string                `json:"owner_name"`
	Status     domain.RequestStatus  `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	Assignee   domain.UserRef        `json:"assignee"`
	Tags       []string              `json:"tags"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                int64                      `json:"id"`
	Title             string                     `json:"title"`
	TicketType        domain.TicketType          `json:"ticket_type"`
	Description       string                     `json:"description"`
	OwnerID           string                     `json:"owner_id"`
	OwnerName         string                     `json:"owner_name"`
	Comment           string                     `json:"comment,omitempty"`
	Status            domain.RequestStatus       `json:"status"`
	Priority          domain.TicketPriority      `json:"priority"`
	Tags              []string                   `json:"tags"`
	Assignee          domain.UserRef             `json:"assignee"`
	Accountable       domain.UserRef             `json:"accountable"`
	Supervisor        domain.UserRef             `json:"supervisor"`
	AssignmentHistory []domain.AssignmentRecord  `json:"assignment_history"`
	Workflow          []WorkflowEntryResponse    `json:"workflow,omitempty"`
	History           []domain.HistoryEvent      `json:"history"`
	NinjaTicketID     int64                      `json:"ninja_ticket_id,omitempty"`
	SyncedAt          *time.Time                 `json:"synced_at,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// WorkflowEntryResponse is one department row of the sign-off state.
type WorkflowEntryResponse struct {
	GroupID  string                  `json:"group_id"`
	Name     string                  `json:"name"`
	Required bool                    `json:"required"`
	Status   domain.DepartmentStatus `json:"status"`
}

// NewTicketSummary maps a ticket to its list representation.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:         ticket.ID,
		Title:      ticket.Title,
		TicketType: ticket.TicketType,
		OwnerName:  ticket.OwnerName,
		Status:     ticket.Status,
		Priority:   ticket.Priority,
		Assignee:   ticket.Assignee,
		Tags:       ticket.Tags,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket to its full representation.
func NewTicketDetail(ticket *domain.Ticket) TicketDetailResponse {
	resp := TicketDetailResponse{
		ID:                ticket.ID,
		Title:             ticket.Title,
		TicketType:        ticket.TicketType,
		Description:       ticket.Description,
		OwnerID:           ticket.OwnerID,
		OwnerName:         ticket.OwnerName,
		Comment:           ticket.Comment,
		Status:            ticket.Status,
		Priority:          ticket.Priority,
		Tags:              ticket.Tags,
		Assignee:          ticket.Assignee,
		Accountable:       ticket.Accountable,
		Supervisor:        ticket.Supervisor,
		AssignmentHistory: ticket.AssignmentHistory,
		History:           ticket.History,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
	if ticket.WorkflowState != nil {
		for groupID, entry := range ticket.WorkflowState.Departments {
			resp.Workflow = append(resp.Workflow, WorkflowEntryResponse{
				GroupID:  groupID,
				Name:     entry.Name,
				Required: entry.Required,
				Status:   entry.Status,
			})
		}
		sort.Slice(resp.Workflow, func(i, j int) bool {
			return resp.Workflow[i].Name < resp.Workflow[j].Name
		})
	}
	if ticket.NinjaMetadata != nil {
		resp.NinjaTicketID = ticket.NinjaMetadata.NinjaTicketID
		resp.SyncedAt = ticket.NinjaMetadata.SyncedAt
	}
	return resp
}

// NewTicketSummaries maps a slice of tickets.
func NewTicketSummaries(tickets []domain.Ticket) []TicketSummary {
	summaries := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		summaries = append(summaries, NewTicketSummary(&tickets[i]))
	}
	return summaries
}
