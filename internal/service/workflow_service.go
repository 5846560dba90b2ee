package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/repository"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// WorkflowService owns the per-ticket department sign-off sub-document.
type WorkflowService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
}

// NewWorkflowService creates the service.
func NewWorkflowService(tickets repository.TicketRepository, departments repository.DepartmentRepository) *WorkflowService {
	return &WorkflowService{tickets: tickets, departments: departments}
}

// SetDepartmentStatus updates one department entry. Only done, rejected and
// skipped may be set from outside; open/in_progress are engine defaults.
// Setting the already-current status is a no-op.
func (s *WorkflowService) SetDepartmentStatus(ctx context.Context, ticketID int64, groupID string, status domain.DepartmentStatus) error {
	if !status.IsActorSettable() {
		return apperrors.NewValidationError("invalid department status",
			map[string]any{"status": string(status)})
	}
	_, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		entry, err := requireDepartment(ticket, groupID)
		if err != nil {
			return err
		}
		entry.Status = status
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

// GetDepartmentStatus returns the status of one department entry.
func (s *WorkflowService) GetDepartmentStatus(ctx context.Context, ticketID int64, groupID string) (domain.DepartmentStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", err
	}
	entry, err := requireDepartment(ticket, groupID)
	if err != nil {
		return "", err
	}
	return entry.Status, nil
}

// GetAllDepartmentStatuses returns the full department map of the ticket.
func (s *WorkflowService) GetAllDepartmentStatuses(ctx context.Context, ticketID int64) (map[string]*domain.DepartmentEntry, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.WorkflowState == nil {
		return map[string]*domain.DepartmentEntry{}, nil
	}
	return ticket.WorkflowState.Departments, nil
}

// CanArchive reports whether every required department is done.
func (s *WorkflowService) CanArchive(ctx context.Context, ticketID int64) (bool, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket.WorkflowState == nil {
		return false, apperrors.NewWorkflowNotInitialized(ticketID)
	}
	return ticket.WorkflowState.IsComplete(), nil
}

// ResetOnDescriptionChange reverts every done department back to open.
// Department approvals trust the description at approval time; an edit
// invalidates them. No-op when nothing was done or no workflow exists.
func (s *WorkflowService) ResetOnDescriptionChange(ctx context.Context, ticketID int64, actor domain.HistoryActor) error {
	_, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.WorkflowState == nil {
			return nil
		}
		if ticket.WorkflowState.ResetDone() {
			recordEvent(ticket, actor, domain.ActionWorkflowReset, nil)
		}
		return nil
	})
	return err
}

// UserCanCompleteDepartment reports whether the user belongs to the
// department and its entry is still actionable. Membership is re-read from
// the registry on every call.
func (s *WorkflowService) UserCanCompleteDepartment(ctx context.Context, ticketID int64, userID, groupID string) (bool, error) {
	dept, err := s.departments.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if !dept.HasMember(userID) {
		return false, nil
	}
	status, err := s.GetDepartmentStatus(ctx, ticketID, groupID)
	if err != nil {
		return false, err
	}
	return status == domain.DepartmentOpen || status == domain.DepartmentInProgress, nil
}

// TicketsForDepartment lists dispatched tickets the department still has to
// act on: status in_request, entry required and not done.
func (s *WorkflowService) TicketsForDepartment(ctx context.Context, groupID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByStatus(ctx, domain.StatusInRequest)
	if err != nil {
		return nil, err
	}
	var result []domain.Ticket
	for _, ticket := range tickets {
		entry := ticket.WorkflowState.Entry(groupID)
		if entry == nil {
			continue
		}
		if entry.Required && entry.Status != domain.DepartmentDone {
			result = append(result, ticket)
		}
	}
	return result, nil
}

// DepartmentQueue is the pending work of one department.
type DepartmentQueue struct {
	GroupID   string
	GroupName string
	Tickets   []domain.Ticket
}

// QueuesForUser groups pending department tickets by every department the
// user is a member of. Departments without pending work are omitted.
func (s *WorkflowService) QueuesForUser(ctx context.Context, userID string) ([]DepartmentQueue, error) {
	memberships, err := s.departments.ListForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	var queues []DepartmentQueue
	for _, dept := range memberships {
		tickets, err := s.TicketsForDepartment(ctx, dept.ID)
		if err != nil {
			return nil, err
		}
		if len(tickets) == 0 {
			continue
		}
		queues = append(queues, DepartmentQueue{
			GroupID:   dept.ID,
			GroupName: dept.Name,
			Tickets:   tickets,
		})
	}
	return queues, nil
}

func requireDepartment(ticket *domain.Ticket, groupID string) (*domain.DepartmentEntry, error) {
	if ticket.WorkflowState == nil {
		return nil, apperrors.NewWorkflowNotInitialized(ticket.ID)
	}
	entry := ticket.WorkflowState.Entry(groupID)
	if entry == nil {
		return nil, apperrors.NewUnknownDepartment(groupID)
	}
	return entry, nil
}
