package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/events"
	"github.com/alpharequest/requestmanager/internal/repository"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// TicketService orchestrates the request lifecycle: creation, assignment,
// submission to the departments, and archival.
type TicketService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	permissions *PermissionService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	DepartmentRepo repository.DepartmentRepository
	Permissions    *PermissionService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		departments: deps.DepartmentRepo,
		permissions: deps.Permissions,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// TicketCreateInput describes a creation request.
type TicketCreateInput struct {
	TicketType  domain.TicketType
	Description string
	Assignee    domain.UserRef
	Supervisor  domain.UserRef
	Accountable domain.UserRef
	Priority    domain.TicketPriority
	Comment     string
	Tags        []string
}

// TicketUpdateInput describes an edit of a ticket still in progress.
type TicketUpdateInput struct {
	Description *string
	Priority    *domain.TicketPriority
	Assignee    *domain.UserRef
	Comment     *string
	Tags        []string
}

// Create validates and persists a new ticket in in_progress. All-or-nothing:
// a failed gate leaves no ticket row and no history behind.
func (s *TicketService) Create(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	if !domain.IsValidTicketType(input.TicketType) {
		return nil, apperrors.NewInvalidTicketType(string(input.TicketType))
	}
	if !json.Valid(descriptionOrEmpty(input.Description)) {
		return nil, apperrors.NewInvalidPayload("ticket description is not valid JSON", nil)
	}
	if input.Assignee.IsZero() || input.Supervisor.IsZero() {
		return nil, apperrors.NewValidationError("assignee and supervisor are required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !domain.IsValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority",
			map[string]any{"priority": string(input.Priority)})
	}

	authorized, err := s.permissions.IsAuthorized(ctx, input.TicketType, identity.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !authorized {
		return nil, apperrors.NewForbidden(
			fmt.Sprintf("not permitted to create %q tickets", input.TicketType))
	}

	ownerInfo, err := json.Marshal(identity)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := time.Now()
	ticket := &domain.Ticket{
		Title:       fmt.Sprintf("%s – %s – %s", input.TicketType.Label(), identity.DisplayName, now.Format("2006-01-02 15:04")),
		TicketType:  input.TicketType,
		Description: input.Description,
		OwnerID:     identity.ID,
		OwnerName:   identity.DisplayName,
		OwnerInfo:   string(ownerInfo),
		Comment:     input.Comment,
		Status:      domain.StatusInProgress,
		Priority:    input.Priority,
		Tags:        input.Tags,
		Assignee:    input.Assignee,
		Supervisor:  input.Supervisor,
		Accountable: input.Accountable,
		AssignmentHistory: []domain.AssignmentRecord{{
			Assignee:  input.Assignee,
			ChangedBy: identity.Ref(),
			Timestamp: now.UTC(),
		}},
	}
	recordEvent(ticket, userActor(identity), domain.ActionTicketCreated, map[string]any{
		"ticket_type": string(input.TicketType),
		"priority":    string(input.Priority),
	})

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("ticket_type", string(ticket.TicketType)),
		zap.String("owner", ticket.OwnerID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(identity),
		Payload: events.TicketCreatedPayload{
			TicketType: ticket.TicketType,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// Update edits a non-terminal ticket. A description change after department
// approvals reopens every done department. Role reassignment is only
// possible while the ticket is still with individual actors.
func (s *TicketService) Update(ctx context.Context, identity domain.Identity, ticketID int64, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.Status.IsTerminal() {
			return apperrors.NewConflict("ticket is closed", map[string]any{"status": string(ticket.Status)})
		}
		if !identity.IsAdmin && ticket.OwnerID != identity.ID {
			return apperrors.NewForbidden("only the owner may edit this ticket")
		}

		details := map[string]any{}
		if input.Description != nil {
			if !json.Valid(descriptionOrEmpty(*input.Description)) {
				return apperrors.NewInvalidPayload("ticket description is not valid JSON", nil)
			}
			if *input.Description != ticket.Description {
				ticket.Description = *input.Description
				details["description_changed"] = true
				if ticket.WorkflowState != nil && ticket.WorkflowState.ResetDone() {
					details["workflow_reset"] = true
				}
			}
		}
		if input.Priority != nil {
			if !domain.IsValidPriority(*input.Priority) {
				return apperrors.NewValidationError("unknown priority",
					map[string]any{"priority": string(*input.Priority)})
			}
			ticket.Priority = *input.Priority
			details["priority"] = string(*input.Priority)
		}
		if input.Comment != nil {
			ticket.Comment = *input.Comment
		}
		if input.Tags != nil {
			ticket.Tags = input.Tags
			details["tags"] = len(input.Tags)
		}
		if input.Assignee != nil {
			if ticket.Status != domain.StatusInProgress {
				return apperrors.NewConflict("assignment is fixed once dispatched to departments", nil)
			}
			if input.Assignee.IsZero() {
				return apperrors.NewValidationError("assignee is required", nil)
			}
			if *input.Assignee != ticket.Assignee {
				ticket.Assignee = *input.Assignee
				ticket.AssignmentHistory = append(ticket.AssignmentHistory, domain.AssignmentRecord{
					Assignee:  *input.Assignee,
					ChangedBy: identity.Ref(),
					Timestamp: time.Now().UTC(),
				})
				details["assignee"] = input.Assignee.ID
			}
		}

		recordEvent(ticket, userActor(identity), domain.ActionTicketUpdated, details)
		return nil
	})
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	return ticket, nil
}

// Submit dispatches the ticket to its departments: builds the workflow from
// the current registry, freezes role bindings to the pending-department
// sentinel and moves the ticket to in_request. All-or-nothing: when the
// workflow resolves no departments the ticket keeps its previous state.
func (s *TicketService) Submit(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.Ticket, error) {
	// membership and names are read fresh on every submission
	registry, err := s.departments.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.Status != domain.StatusInProgress {
			return apperrors.NewConflict("only tickets in progress can be submitted",
				map[string]any{"status": string(ticket.Status)})
		}
		if !identity.IsAdmin && ticket.OwnerID != identity.ID && ticket.Assignee.ID != identity.ID {
			return apperrors.NewForbidden("not involved with this ticket")
		}
		if ticket.Priority == "" {
			return apperrors.NewValidationError("priority must be set before submission", nil)
		}

		workflow, err := BuildWorkflow(ticket.TicketType, ticket.Description, registry)
		if err != nil {
			return err
		}
		if len(workflow.Departments) == 0 {
			return apperrors.NewWorkflowBuildFailed("no departments resolved for this ticket", nil)
		}

		ticket.WorkflowState = workflow
		ticket.Status = domain.StatusInRequest
		ticket.Assignee = domain.PendingDepartments
		ticket.Accountable = domain.PendingDepartments
		ticket.Supervisor = domain.PendingDepartments
		ticket.AssignmentHistory = append(ticket.AssignmentHistory, domain.AssignmentRecord{
			Assignee:  domain.PendingDepartments,
			ChangedBy: identity.Ref(),
			Timestamp: time.Now().UTC(),
		})
		recordEvent(ticket, userActor(identity), domain.ActionTicketSubmitted, map[string]any{
			"departments": workflowDepartmentNames(workflow),
		})
		return nil
	})
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}

	s.logger.Info("ticket submitted to departments",
		zap.Int64("ticket_id", ticket.ID),
		zap.Strings("departments", workflowDepartmentNames(ticket.WorkflowState)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketSubmitted,
		TicketID: ticket.ID,
		Actor:    userActor(identity),
		Payload: events.TicketSubmittedPayload{
			Departments: workflowDepartmentNames(ticket.WorkflowState),
		},
	})
	return ticket, nil
}

// CompleteDepartment records a department's decision on a dispatched ticket.
// The acting identity must belong to the department. When the decision
// completes the last required department the ticket archives itself and a
// system event is appended.
func (s *TicketService) CompleteDepartment(ctx context.Context, identity domain.Identity, ticketID int64, groupID string, status domain.DepartmentStatus) (*domain.Ticket, error) {
	if !status.IsActorSettable() {
		return nil, apperrors.NewValidationError("invalid department status",
			map[string]any{"status": string(status)})
	}

	// membership re-read on every call; the registry is externally mutable
	dept, err := s.departments.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", map[string]any{"group_id": groupID})
		}
		return nil, apperrors.MapError(err)
	}
	if !dept.HasMember(identity.ID) {
		return nil, apperrors.NewForbidden("not a member of this department")
	}

	var archived, changed bool
	var oldStatus domain.DepartmentStatus
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		entry, err := requireDepartment(ticket, groupID)
		if err != nil {
			return err
		}
		if entry.Status == status {
			// repeated decision: nothing to change, nothing to record
			return nil
		}
		oldStatus = entry.Status
		entry.Status = status
		changed = true
		recordEvent(ticket, userActor(identity), departmentAction(status), map[string]any{
			"group_id":   groupID,
			"group_name": entry.Name,
		})

		if ticket.Status == domain.StatusInRequest && ticket.WorkflowState.IsComplete() {
			ticket.Status = domain.StatusArchived
			archived = true
			recordEvent(ticket, systemActor(), domain.ActionTicketArchived, map[string]any{
				"trigger": "all_departments_done",
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}

	if changed {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventDepartmentStatusChanged,
			TicketID: ticket.ID,
			Actor:    userActor(identity),
			Payload: events.DepartmentStatusChangedPayload{
				GroupID:   groupID,
				GroupName: dept.Name,
				OldStatus: oldStatus,
				NewStatus: status,
			},
		})
	}
	if archived {
		s.logger.Info("ticket archived after final department sign-off", zap.Int64("ticket_id", ticket.ID))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketArchived,
			TicketID: ticket.ID,
			Actor:    systemActor(),
			Payload: events.TicketClosedPayload{
				OldStatus: domain.StatusInRequest,
				NewStatus: domain.StatusArchived,
			},
		})
	}
	return ticket, nil
}

// Archive closes a ticket unconditionally. Admin-only: bypasses department
// completeness for exceptional closure.
func (s *TicketService) Archive(ctx context.Context, identity domain.Identity, ticketID int64, comment string) (*domain.Ticket, error) {
	return s.closeManually(ctx, identity, ticketID, domain.StatusArchived, comment)
}

// Reject terminally rejects a ticket. Admin-only.
func (s *TicketService) Reject(ctx context.Context, identity domain.Identity, ticketID int64, comment string) (*domain.Ticket, error) {
	return s.closeManually(ctx, identity, ticketID, domain.StatusRejected, comment)
}

func (s *TicketService) closeManually(ctx context.Context, identity domain.Identity, ticketID int64, target domain.RequestStatus, comment string) (*domain.Ticket, error) {
	if !identity.IsAdmin {
		return nil, apperrors.NewForbidden("admin required")
	}
	var oldStatus domain.RequestStatus
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		if !domain.CanTransition(ticket.Status, target) {
			return apperrors.NewConflict("invalid status transition", map[string]any{
				"from": string(ticket.Status),
				"to":   string(target),
			})
		}
		oldStatus = ticket.Status
		ticket.Status = target
		if comment != "" {
			ticket.Comment = comment
		}
		action := domain.ActionTicketArchived
		if target == domain.StatusRejected {
			action = domain.ActionTicketRejected
		}
		recordEvent(ticket, userActor(identity), action, map[string]any{"manual": true})
		return nil
	})
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}

	eventType := events.EventTicketArchived
	if target == domain.StatusRejected {
		eventType = events.EventTicketRejected
	}
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Actor:    userActor(identity),
		Payload: events.TicketClosedPayload{
			OldStatus: oldStatus,
			NewStatus: target,
			Comment:   comment,
		},
	})
	return ticket, nil
}

// ApplyExternalOutcome folds a terminal state reported by the external
// system into the local ticket. Idempotent: a ticket already terminal is
// left untouched and no history is appended.
func (s *TicketService) ApplyExternalOutcome(ctx context.Context, ticketID int64, outcome domain.RequestStatus, comment string) (bool, error) {
	if outcome != domain.StatusArchived && outcome != domain.StatusRejected {
		return false, apperrors.NewValidationError("external outcome must be terminal",
			map[string]any{"outcome": string(outcome)})
	}
	applied := false
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.Status.IsTerminal() {
			return nil
		}
		ticket.Status = outcome
		if comment != "" {
			ticket.Comment = comment
		}
		now := time.Now().UTC()
		if ticket.NinjaMetadata != nil {
			ticket.NinjaMetadata.SyncedAt = &now
		}
		applied = true
		recordEvent(ticket, systemActor(), domain.ActionExternalSynced, map[string]any{
			"outcome":         string(outcome),
			"ninja_ticket_id": ticket.NinjaTicketID(),
		})
		return nil
	})
	if err != nil {
		return false, mapTicketError(err, ticketID)
	}

	if applied {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketReconciled,
			TicketID: ticket.ID,
			Actor:    systemActor(),
			Payload: events.TicketReconciledPayload{
				NinjaTicketID: ticket.NinjaTicketID(),
				Outcome:       outcome,
			},
		})
	}
	return applied, nil
}

// LinkNinjaTicket attaches the external ticket id to a local ticket so the
// reconciliation loop picks it up.
func (s *TicketService) LinkNinjaTicket(ctx context.Context, ticketID, ninjaTicketID int64) error {
	_, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		ticket.NinjaMetadata = &domain.NinjaMetadata{NinjaTicketID: ninjaTicketID}
		return nil
	})
	if err != nil {
		return mapTicketError(err, ticketID)
	}
	s.logger.Info("linked local ticket to ninja",
		zap.Int64("ticket_id", ticketID), zap.Int64("ninja_ticket_id", ninjaTicketID))
	return nil
}

// Get fetches a ticket; owners see their own, admins see all, department
// members see tickets containing their department.
func (s *TicketService) Get(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketError(err, ticketID)
	}
	if identity.IsAdmin || ticket.OwnerID == identity.ID || ticket.Assignee.ID == identity.ID {
		return ticket, nil
	}
	if ticket.WorkflowState != nil {
		memberships, err := s.departments.ListForMember(ctx, identity.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for _, dept := range memberships {
			if ticket.WorkflowState.Entry(dept.ID) != nil {
				return ticket, nil
			}
		}
	}
	return nil, apperrors.NewForbidden("access denied")
}

// ListAll returns every ticket. Admin-only surface.
func (s *TicketService) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListAll(ctx)
}

// ListOwn returns the caller's tickets.
func (s *TicketService) ListOwn(ctx context.Context, identity domain.Identity) ([]domain.Ticket, error) {
	return s.tickets.ListByOwner(ctx, identity.ID)
}

// ListAssigned returns tickets where the caller is the dispatching assignee.
func (s *TicketService) ListAssigned(ctx context.Context, identity domain.Identity) ([]domain.Ticket, error) {
	return s.tickets.ListByAssignee(ctx, identity.ID)
}

// Delete removes a ticket. Owners may delete their own, admins any.
func (s *TicketService) Delete(ctx context.Context, identity domain.Identity, ticketID int64) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return mapTicketError(err, ticketID)
	}
	if !identity.IsAdmin && ticket.OwnerID != identity.ID {
		return apperrors.NewForbidden("only the owner may delete this ticket")
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return mapTicketError(err, ticketID)
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func departmentAction(status domain.DepartmentStatus) string {
	switch status {
	case domain.DepartmentRejected:
		return domain.ActionDepartmentRejected
	case domain.DepartmentSkipped:
		return domain.ActionDepartmentSkipped
	default:
		return domain.ActionDepartmentDone
	}
}

func workflowDepartmentNames(workflow *domain.WorkflowState) []string {
	if workflow == nil {
		return nil
	}
	names := make([]string, 0, len(workflow.Departments))
	for _, entry := range workflow.Departments {
		names = append(names, entry.Name)
	}
	return names
}

func descriptionOrEmpty(description string) []byte {
	if description == "" {
		return []byte("{}")
	}
	return []byte(description)
}

func mapTicketError(err error, ticketID int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}
