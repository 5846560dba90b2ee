package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alpharequest/requestmanager/internal/api/dto"
	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/repository"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// DepartmentsHandler manages the department registry. Mutations are
// admin-only; reads are open to any authenticated caller.
type DepartmentsHandler struct {
	departments repository.DepartmentRepository
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departments repository.DepartmentRepository) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments}
}

// ListDepartments GET /departments.
func (h *DepartmentsHandler) ListDepartments(c *fiber.Ctx) error {
	departments, err := h.departments.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.DepartmentResponse, 0, len(departments))
	for i := range departments {
		items = append(items, dto.NewDepartmentResponse(&departments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDepartment GET /departments/:id.
func (h *DepartmentsHandler) GetDepartment(c *fiber.Ctx) error {
	dept, err := h.departments.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("department", nil)
		}
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// CreateDepartment POST /departments. Admin only.
func (h *DepartmentsHandler) CreateDepartment(c *fiber.Ctx) error {
	var req dto.CreateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}

	dept := &domain.Department{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(req.Name),
		Members: dedupeMembers(req.Members),
	}
	if err := h.departments.Create(c.UserContext(), dept); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// UpdateDepartment PATCH /departments/:id. Admin only.
func (h *DepartmentsHandler) UpdateDepartment(c *fiber.Ctx) error {
	dept, err := h.departments.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("department", nil)
		}
		return apperrors.MapError(err)
	}

	var req dto.UpdateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return apperrors.NewValidationError("name required", nil)
		}
		dept.Name = strings.TrimSpace(*req.Name)
	}
	if req.Members != nil {
		dept.Members = dedupeMembers(*req.Members)
	}
	if err := h.departments.Update(c.UserContext(), dept); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

func dedupeMembers(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, member := range members {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		if _, ok := seen[member]; ok {
			continue
		}
		seen[member] = struct{}{}
		out = append(out, member)
	}
	return out
}
