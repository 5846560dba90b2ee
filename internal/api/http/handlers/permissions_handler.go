package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alpharequest/requestmanager/internal/api/dto"
	"github.com/alpharequest/requestmanager/internal/auth"
	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/service"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// PermissionsHandler manages per-type creation rights. Admin only, except
// for the caller's own allowed types.
type PermissionsHandler struct {
	permissions *service.PermissionService
}

// NewPermissionsHandler constructs handler.
func NewPermissionsHandler(permissions *service.PermissionService) *PermissionsHandler {
	return &PermissionsHandler{permissions: permissions}
}

// GetAll GET /permissions. Admin only.
func (h *PermissionsHandler) GetAll(c *fiber.Ctx) error {
	all, err := h.permissions.GetAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PermissionsResponse{Permissions: all}})
}

// SetForType PUT /permissions/:type. Admin only; replaces the user set.
func (h *PermissionsHandler) SetForType(c *fiber.Ctx) error {
	var req dto.SetPermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticketType := domain.TicketType(c.Params("type"))
	if err := h.permissions.SetPermissions(c.UserContext(), ticketType, req.Users); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ticket_type": ticketType, "users": req.Users}})
}

// AddUser POST /permissions/:type/users. Admin only; idempotent.
func (h *PermissionsHandler) AddUser(c *fiber.Ctx) error {
	var req dto.PermissionUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	ticketType := domain.TicketType(c.Params("type"))
	if err := h.permissions.AddUser(c.UserContext(), ticketType, req.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveUser DELETE /permissions/:type/users/:userId. Admin only; idempotent.
func (h *PermissionsHandler) RemoveUser(c *fiber.Ctx) error {
	ticketType := domain.TicketType(c.Params("type"))
	userID := c.Params("userId")
	if userID == "" {
		return apperrors.NewValidationError("user id required", nil)
	}
	if err := h.permissions.RemoveUser(c.UserContext(), ticketType, userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MyTypes GET /permissions/my-types. Ticket types the caller may create.
func (h *PermissionsHandler) MyTypes(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	types, err := h.permissions.AllowedTypesForUser(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": types})
}
