package service

import (
	"context"
	"time"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/repository"
)

// HistoryService maintains the append-only per-ticket audit trail. Events
// written as part of a lifecycle transition are appended inside the same
// ticket mutation; Append exists for standalone entries.
type HistoryService struct {
	tickets repository.TicketRepository
}

// NewHistoryService creates the service.
func NewHistoryService(tickets repository.TicketRepository) *HistoryService {
	return &HistoryService{tickets: tickets}
}

// Append adds one event to the ticket's history under the ticket row lock.
func (s *HistoryService) Append(ctx context.Context, ticketID int64, actor domain.HistoryActor, action string, details map[string]any) error {
	_, err := s.tickets.Mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		recordEvent(ticket, actor, action, details)
		return nil
	})
	return err
}

// List returns the ticket's events ordered by timestamp; events with equal
// timestamps keep their append order.
func (s *HistoryService) List(ctx context.Context, ticketID int64) ([]domain.HistoryEvent, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return domain.SortHistory(ticket.History), nil
}

// recordEvent appends one event to the in-memory ticket. Callers inside a
// Mutate closure use this so transition and audit entry commit atomically.
func recordEvent(ticket *domain.Ticket, actor domain.HistoryActor, action string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	ticket.History = append(ticket.History, domain.HistoryEvent{
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Details:   details,
	})
}

// systemActor is the engine identity used for automated transitions.
func systemActor() domain.HistoryActor {
	return domain.HistoryActor{ID: "system", Name: "System", Type: domain.ActorSystem}
}

func userActor(identity domain.Identity) domain.HistoryActor {
	return domain.HistoryActor{ID: identity.ID, Name: identity.DisplayName, Type: domain.ActorUser}
}
