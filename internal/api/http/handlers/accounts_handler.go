package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/alpharequest/requestmanager/internal/api/dto"
	"github.com/alpharequest/requestmanager/internal/auth"
	"github.com/alpharequest/requestmanager/internal/service"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// AccountsHandler manages console account authentication.
type AccountsHandler struct {
	authService *service.AuthService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(authService *service.AuthService) *AccountsHandler {
	return &AccountsHandler{authService: authService}
}

// Login POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	account, token, expiresAt, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		AccountID:   account.ID,
		DisplayName: account.DisplayName,
		IsAdmin:     account.IsAdmin,
	}})
}

// Register POST /auth/register. Admin only.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("email and password (min 8 chars) required", nil)
	}

	account, err := h.authService.Register(c.UserContext(), req.Email, req.DisplayName, req.Password, req.IsAdmin)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"account_id":   account.ID,
		"email":        account.Email,
		"display_name": account.DisplayName,
		"is_admin":     account.IsAdmin,
	}})
}

// ChangePassword POST /auth/password/change.
func (h *AccountsHandler) ChangePassword(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.NewPassword) < 8 {
		return apperrors.NewValidationError("new password too short", nil)
	}
	if err := h.authService.ChangePassword(c.UserContext(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me GET /auth/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":           identity.ID,
		"display_name": identity.DisplayName,
		"email":        identity.Email,
		"is_admin":     identity.IsAdmin,
	}})
}
