package dto

import (
	"time"

	"github.com/alpharequest/requestmanager/internal/domain"
)

// CreateDepartmentRequest payload.
type CreateDepartmentRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// UpdateDepartmentRequest payload; nil fields stay untouched.
type UpdateDepartmentRequest struct {
	Name    *string   `json:"name"`
	Members *[]string `json:"members"`
}

// DepartmentResponse payload.
type DepartmentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDepartmentResponse maps a department.
func NewDepartmentResponse(dept *domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:        dept.ID,
		Name:      dept.Name,
		Members:   dept.Members,
		CreatedAt: dept.CreatedAt,
		UpdatedAt: dept.UpdatedAt,
	}
}

// QueueResponse is one department's pending ticket list for the caller.
type QueueResponse struct {
	GroupID   string          `json:"group_id"`
	GroupName string          `json:"group_name"`
	Tickets   []TicketSummary `json:"tickets"`
}
