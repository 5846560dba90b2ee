package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/repository"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// PermissionService gates ticket creation per ticket type.
//
// Policy: an empty or absent authorized-user set means NOBODY may create
// that type. Admins get no implicit bypass; they must be listed like anyone
// else. Access is opened explicitly through the admin API.
type PermissionService struct {
	permissions repository.PermissionRepository
	logger      *zap.Logger
}

// NewPermissionService creates the service.
func NewPermissionService(permissions repository.PermissionRepository, logger *zap.Logger) *PermissionService {
	return &PermissionService{permissions: permissions, logger: logger}
}

// EnsureDefaults creates a permission entry for every known ticket type that
// is missing one, never overwriting existing sets. Run once at startup.
func (s *PermissionService) EnsureDefaults(ctx context.Context) error {
	created := 0
	for _, ticketType := range domain.AllTicketTypes() {
		added, err := s.permissions.EnsureType(ctx, ticketType)
		if err != nil {
			return err
		}
		if added {
			created++
		}
	}
	if created > 0 {
		s.logger.Info("initialized ticket permission entries", zap.Int("created", created))
	}
	return nil
}

// IsAuthorized reports whether the user may create tickets of the type.
func (s *PermissionService) IsAuthorized(ctx context.Context, ticketType domain.TicketType, userID string) (bool, error) {
	if userID == "" || !domain.IsValidTicketType(ticketType) {
		return false, nil
	}
	users, _, err := s.permissions.Get(ctx, ticketType)
	if err != nil {
		return false, err
	}
	for _, id := range users {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// AllowedTypes returns the full closed type enumeration.
func (s *PermissionService) AllowedTypes() []domain.TicketType {
	return domain.AllTicketTypes()
}

// AllowedTypesForUser lists the ticket types the user may create.
func (s *PermissionService) AllowedTypesForUser(ctx context.Context, userID string) ([]domain.TicketType, error) {
	if userID == "" {
		return []domain.TicketType{}, nil
	}
	all, err := s.permissions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	allowed := []domain.TicketType{}
	for _, ticketType := range domain.AllTicketTypes() {
		for _, id := range all[ticketType] {
			if id == userID {
				allowed = append(allowed, ticketType)
				break
			}
		}
	}
	return allowed, nil
}

// GetAll returns every type's authorized user set. Types without an entry
// appear with an empty set.
func (s *PermissionService) GetAll(ctx context.Context) (map[domain.TicketType][]string, error) {
	stored, err := s.permissions.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[domain.TicketType][]string, len(domain.AllTicketTypes()))
	for _, ticketType := range domain.AllTicketTypes() {
		users := stored[ticketType]
		if users == nil {
			users = []string{}
		}
		result[ticketType] = users
	}
	return result, nil
}

// SetPermissions replaces the authorized user set for one ticket type,
// leaving every other type untouched.
func (s *PermissionService) SetPermissions(ctx context.Context, ticketType domain.TicketType, users []string) error {
	if !domain.IsValidTicketType(ticketType) {
		return apperrors.NewInvalidTicketType(string(ticketType))
	}
	if users == nil {
		return apperrors.NewInvalidPayload("authorized users must be a list", nil)
	}
	cleaned := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, id := range users {
		if id == "" {
			return apperrors.NewInvalidPayload("authorized user ids must be non-empty", nil)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	return s.permissions.Set(ctx, ticketType, cleaned)
}

// AddUser grants a user creation rights for a type. Adding an already
// present user is a no-op success.
func (s *PermissionService) AddUser(ctx context.Context, ticketType domain.TicketType, userID string) error {
	if !domain.IsValidTicketType(ticketType) {
		return apperrors.NewInvalidTicketType(string(ticketType))
	}
	if userID == "" {
		return apperrors.NewInvalidPayload("user id required", nil)
	}
	users, _, err := s.permissions.Get(ctx, ticketType)
	if err != nil {
		return err
	}
	for _, id := range users {
		if id == userID {
			return nil
		}
	}
	return s.permissions.Set(ctx, ticketType, append(users, userID))
}

// RemoveUser revokes a user's creation rights for a type. Removing an
// absent user is a no-op success.
func (s *PermissionService) RemoveUser(ctx context.Context, ticketType domain.TicketType, userID string) error {
	if !domain.IsValidTicketType(ticketType) {
		return apperrors.NewInvalidTicketType(string(ticketType))
	}
	users, _, err := s.permissions.Get(ctx, ticketType)
	if err != nil {
		return err
	}
	filtered := users[:0]
	removed := false
	for _, id := range users {
		if id == userID {
			removed = true
			continue
		}
		filtered = append(filtered, id)
	}
	if !removed {
		return nil
	}
	return s.permissions.Set(ctx, ticketType, filtered)
}
