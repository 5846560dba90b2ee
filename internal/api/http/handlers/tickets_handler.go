package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/alpharequest/requestmanager/internal/api/dto"
	"github.com/alpharequest/requestmanager/internal/auth"
	"github.com/alpharequest/requestmanager/internal/service"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets  *service.TicketService
	workflow *service.WorkflowService
	history  *service.HistoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, workflow *service.WorkflowService, history *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, workflow: workflow, history: history}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.Create(c.UserContext(), identity, service.TicketCreateInput{
		TicketType:  req.TicketType,
		Description: req.Description,
		Assignee:    req.Assignee,
		Supervisor:  req.Supervisor,
		Accountable: req.Accountable,
		Priority:    req.Priority,
		Comment:     req.Comment,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// ListTickets GET /tickets. Admins may request everything with ?all=true,
// ?assigned=true scopes to tickets the caller dispatches, default is own.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if identity.IsAdmin && c.QueryBool("all", false) {
		list, listErr := h.tickets.ListAll(c.UserContext())
		if listErr != nil {
			return listErr
		}
		return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(list)})
	}
	if c.QueryBool("assigned", false) {
		list, listErr := h.tickets.ListAssigned(c.UserContext(), identity)
		if listErr != nil {
			return listErr
		}
		return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(list)})
	}
	list, err := h.tickets.ListOwn(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummaries(list)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), identity, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.Update(c.UserContext(), identity, ticketID, service.TicketUpdateInput{
		Description: req.Description,
		Priority:    req.Priority,
		Assignee:    req.Assignee,
		Comment:     req.Comment,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// SubmitTicket POST /tickets/:id/submit.
func (h *TicketsHandler) SubmitTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Submit(c.UserContext(), identity, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// DepartmentAction POST /tickets/:id/department-action.
func (h *TicketsHandler) DepartmentAction(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.GroupID == "" {
		return apperrors.NewValidationError("group_id required", nil)
	}

	ticket, err := h.tickets.CompleteDepartment(c.UserContext(), identity, ticketID, req.GroupID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// ArchiveTicket POST /tickets/:id/archive. Admin only.
func (h *TicketsHandler) ArchiveTicket(c *fiber.Ctx) error {
	return h.closeTicket(c, true)
}

// RejectTicket POST /tickets/:id/reject. Admin only.
func (h *TicketsHandler) RejectTicket(c *fiber.Ctx) error {
	return h.closeTicket(c, false)
}

func (h *TicketsHandler) closeTicket(c *fiber.Ctx, archive bool) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req struct {
		Comment string `json:"comment"`
	}
	_ = c.BodyParser(&req)

	if archive {
		t, err := h.tickets.Archive(c.UserContext(), identity, ticketID, req.Comment)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewTicketDetail(t)})
	}
	t, err := h.tickets.Reject(c.UserContext(), identity, ticketID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(t)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), identity, ticketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	// access check rides on the detail fetch
	if _, err := h.tickets.Get(c.UserContext(), identity, ticketID); err != nil {
		return err
	}
	events, err := h.history.List(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": events})
}

// LinkNinja POST /tickets/:id/ninja-link. Admin only.
func (h *TicketsHandler) LinkNinja(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.LinkNinjaRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.NinjaTicketID <= 0 {
		return apperrors.NewValidationError("ninja_ticket_id required", nil)
	}
	if err := h.tickets.LinkNinjaTicket(c.UserContext(), ticketID, req.NinjaTicketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetQueues GET /tickets/queues. Pending department work for the caller.
func (h *TicketsHandler) GetQueues(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	queues, err := h.workflow.QueuesForUser(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}
	resp := make([]dto.QueueResponse, 0, len(queues))
	for _, queue := range queues {
		resp = append(resp, dto.QueueResponse{
			GroupID:   queue.GroupID,
			GroupName: queue.GroupName,
			Tickets:   dto.NewTicketSummaries(queue.Tickets),
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}
