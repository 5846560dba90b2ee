package domain

import (
	"encoding/json"
	"time"
)

// RequestStatus enumerates lifecycle states for request tickets.
type RequestStatus string

const (
	StatusInProgress RequestStatus = "in_progress"
	StatusInRequest  RequestStatus = "in_request"
	StatusRejected   RequestStatus = "rejected"
	StatusArchived   RequestStatus = "archived"
)

// IsTerminal reports whether the status permits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusArchived || s == StatusRejected
}

// TicketType enumerates the closed set of request forms.
type TicketType string

const (
	TypeHardware                TicketType = "hardware"
	TypeZugangBeantragen        TicketType = "zugang-beantragen"
	TypeZugangSperren           TicketType = "zugang-sperren"
	TypeNiederlassungAnmelden   TicketType = "niederlassung-anmelden"
	TypeNiederlassungUmzug      TicketType = "niederlassung-umzug"
	TypeNiederlassungSchliessen TicketType = "niederlassung-schliessen"
)

// AllTicketTypes lists every known ticket type.
func AllTicketTypes() []TicketType {
	return []TicketType{
		TypeHardware,
		TypeZugangBeantragen,
		TypeZugangSperren,
		TypeNiederlassungAnmelden,
		TypeNiederlassungUmzug,
		TypeNiederlassungSchliessen,
	}
}

// IsValidTicketType reports whether t is part of the closed enumeration.
func IsValidTicketType(t TicketType) bool {
	for _, known := range AllTicketTypes() {
		if known == t {
			return true
		}
	}
	return false
}

// TicketLabels maps ticket types to human-readable titles.
var TicketLabels = map[TicketType]string{
	TypeHardware:                "Hardware bestellen",
	TypeZugangBeantragen:        "Zugang beantragen",
	TypeZugangSperren:           "Zugang sperren",
	TypeNiederlassungAnmelden:   "Niederlassung anmelden",
	TypeNiederlassungUmzug:      "Niederlassung umziehen",
	TypeNiederlassungSchliessen: "Niederlassung schließen",
}

// Label returns the display label for a ticket type.
func (t TicketType) Label() string {
	if label, ok := TicketLabels[t]; ok {
		return label
	}
	return string(t)
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p TicketPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// UserRef binds a directory identity (id plus denormalized display name).
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether the reference is unset.
func (u UserRef) IsZero() bool {
	return u.ID == ""
}

// PendingDepartments is the sentinel role binding applied once a ticket is
// dispatched to the departments; individual assignment no longer applies.
var PendingDepartments = UserRef{ID: "system", Name: "Fachabteilungen"}

// AssignmentRecord is one append-only snapshot in the assignment history.
type AssignmentRecord struct {
	Assignee  UserRef   `json:"assignee"`
	ChangedBy UserRef   `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

// NinjaMetadata links a local ticket to its NinjaOne mirror.
type NinjaMetadata struct {
	NinjaTicketID int64      `json:"ninja_ticket_id"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
}

// Ticket is the central aggregate: a structured employee request routed
// through per-department sign-off.
type Ticket struct {
	ID          int64
	Title       string
	TicketType  TicketType
	Description string
	OwnerID     string
	OwnerName   string
	OwnerInfo   string
	Comment     string
	Status      RequestStatus
	Priority    TicketPriority
	Tags        []string

	Assignee    UserRef
	Accountable UserRef
	Supervisor  UserRef

	AssignmentHistory []AssignmentRecord
	WorkflowState     *WorkflowState
	History           []HistoryEvent
	NinjaMetadata     *NinjaMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DescriptionDocument parses the submitted form payload. Returns an error
// when the stored description is not valid JSON.
func (t *Ticket) DescriptionDocument() (map[string]any, error) {
	raw := t.Description
	if raw == "" {
		raw = "{}"
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// NinjaTicketID returns the linked external ticket id, zero when unlinked.
func (t *Ticket) NinjaTicketID() int64 {
	if t.NinjaMetadata == nil {
		return 0
	}
	return t.NinjaMetadata.NinjaTicketID
}

var allowedStatusTransitions = map[RequestStatus][]RequestStatus{
	StatusInProgress: {StatusInRequest, StatusRejected, StatusArchived},
	StatusInRequest:  {StatusArchived, StatusRejected},
	StatusRejected:   {},
	StatusArchived:   {},
}

// CanTransition reports whether the lifecycle permits moving from current
// to next. Terminal states allow nothing.
func CanTransition(current, next RequestStatus) bool {
	for _, candidate := range allowedStatusTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
