package booking

import (
	"fmt"

	"github.com/yordan-p/slotledger/internal/storage"
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a slot that cannot be taken, carrying the check's
// reason verbatim for the client.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// CapacityExhaustedError reports a group session with no seats left.
type CapacityExhaustedError struct {
	SessionID string
}

func (e *CapacityExhaustedError) Error() string {
	return fmt.Sprintf("group session %s has no remaining capacity", e.SessionID)
}

// NotFoundError reports a missing reservation, session, provider or service.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PermissionError reports an actor acting on a resource it does not own.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

func mapNotFound(err error, kind, id string) error {
	if storage.IsNotFound(err) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}
