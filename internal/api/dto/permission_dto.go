package dto

import "github.com/alpharequest/requestmanager/internal/domain"

// SetPermissionsRequest replaces the allowed users of a ticket type.
type SetPermissionsRequest struct {
	Users []string `json:"users"`
}

// PermissionUserRequest adds or removes a single user.
type PermissionUserRequest struct {
	UserID string `json:"user_id"`
}

// PermissionsResponse maps ticket types to their allowed user ids.
type PermissionsResponse struct {
	Permissions map[domain.TicketType][]string `json:"permissions"`
}
