package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers. Authorization failures are reported
// distinctly from validation failures so clients can message them apart.
const (
	CodeInvalidTicketType      = "INVALID_TICKET_TYPE"
	CodeInvalidPayload         = "INVALID_PAYLOAD"
	CodeForbidden              = "FORBIDDEN"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeWorkflowNotInitialized = "WORKFLOW_NOT_INITIALIZED"
	CodeUnknownDepartment      = "UNKNOWN_DEPARTMENT"
	CodeWorkflowBuildFailed    = "WORKFLOW_BUILD_FAILED"
	CodeExternalSyncTransient  = "EXTERNAL_SYNC_TRANSIENT"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeInternalError          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewInvalidTicketType flags an unknown ticket type.
func NewInvalidTicketType(ticketType string) error {
	return NewDomainError(CodeInvalidTicketType, fmt.Sprintf("unknown ticket type %q", ticketType),
		http.StatusBadRequest, map[string]any{"ticket_type": ticketType})
}

// NewInvalidPayload flags a malformed description or permission payload.
func NewInvalidPayload(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidPayload, message, http.StatusBadRequest, details)
}

// NewWorkflowNotInitialized flags department calls before submission.
func NewWorkflowNotInitialized(ticketID int64) error {
	return NewDomainError(CodeWorkflowNotInitialized, "workflow not initialized for this ticket",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

// NewUnknownDepartment flags a department id outside the ticket's workflow.
func NewUnknownDepartment(groupID string) error {
	return NewDomainError(CodeUnknownDepartment, "department not part of workflow",
		http.StatusBadRequest, map[string]any{"group_id": groupID})
}

// NewWorkflowBuildFailed flags a submission that resolved no workflow.
func NewWorkflowBuildFailed(message string, details map[string]any) error {
	return NewDomainError(CodeWorkflowBuildFailed, message, http.StatusUnprocessableEntity, details)
}

// NewSyncTransient marks a reconciliation failure as retryable.
func NewSyncTransient(err error) error {
	return &DomainError{
		Code:       CodeExternalSyncTransient,
		Message:    "external system temporarily unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
