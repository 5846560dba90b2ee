package domain

import (
	"sort"
	"time"
)

// ActorType distinguishes user-triggered from engine-triggered events.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// HistoryActor identifies who caused a history event.
type HistoryActor struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Type ActorType `json:"type"`
}

// History actions recorded by the lifecycle and the sync loop.
const (
	ActionTicketCreated      = "ticket_created"
	ActionTicketUpdated      = "ticket_updated"
	ActionTicketSubmitted    = "ticket_submitted"
	ActionTicketArchived     = "ticket_archived"
	ActionTicketRejected     = "ticket_rejected"
	ActionAssigneeChanged    = "assignee_changed"
	ActionDepartmentDone     = "department_done"
	ActionDepartmentRejected = "department_rejected"
	ActionDepartmentSkipped  = "department_skipped"
	ActionWorkflowReset      = "workflow_reset"
	ActionExternalSynced     = "external_synced"
)

// HistoryEvent is one immutable entry of a ticket's audit trail.
type HistoryEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Actor     HistoryActor   `json:"actor"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
}

// SortHistory orders events by timestamp for display. The sort is stable:
// events with equal timestamps keep their append order.
func SortHistory(events []HistoryEvent) []HistoryEvent {
	sorted := make([]HistoryEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
