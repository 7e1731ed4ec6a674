// Package apperr defines the typed errors surfaced by the planning engine.
// Callers match them with errors.As for detail or errors.Is against the sentinels.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("resource conflict")
	ErrBlocked      = errors.New("blocked")
	ErrStructural   = errors.New("structural error")
	ErrValidation   = errors.New("validation error")
)

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound creates a NotFoundError for an entity identifier
func NotFound(entity string, id fmt.Stringer) *NotFoundError {
	if id == nil {
		return &NotFoundError{Entity: entity}
	}
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// InvalidStateError reports an illegal lifecycle transition
type InvalidStateError struct {
	Entity  string
	ID      uuid.UUID
	Current string
	Target  string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.Current, e.Target)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// InvalidState creates an InvalidStateError
func InvalidState(entity string, id uuid.UUID, current, target, reason string) *InvalidStateError {
	return &InvalidStateError{Entity: entity, ID: id, Current: current, Target: target, Reason: reason}
}

// ConflictDetail describes one assignment colliding with a proposed window
type ConflictDetail struct {
	OperationID   uuid.UUID                `json:"operation_id"`
	RunID         uuid.UUID                `json:"run_id"`
	Sequence      int                      `json:"sequence"`
	OperationCode string                   `json:"operation_code"`
	Status        entities.OperationStatus `json:"status"`
	Start         time.Time                `json:"start"`
	End           time.Time                `json:"end"`
}

// ConflictFromOperation builds a ConflictDetail from a scheduled operation
func ConflictFromOperation(op *entities.Operation) ConflictDetail {
	detail := ConflictDetail{
		OperationID:   op.ID,
		RunID:         op.RunID,
		Sequence:      op.Sequence,
		OperationCode: op.OperationCode,
		Status:        op.Status,
	}
	if window, ok := op.Interval(); ok {
		detail.Start = window.Start
		detail.End = window.End
	}
	return detail
}

// ConflictError reports a resource double-booking
type ConflictError struct {
	ResourceID uuid.UUID
	Conflicts  []ConflictDetail
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s#%d [%s, %s)", c.OperationCode, c.Sequence,
			c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339)))
	}
	return fmt.Sprintf("resource %s has %d conflicting assignment(s): %s",
		e.ResourceID, len(e.Conflicts), strings.Join(parts, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NewConflictError creates a ConflictError from the colliding operations
func NewConflictError(resourceID uuid.UUID, conflicts []*entities.Operation) *ConflictError {
	details := make([]ConflictDetail, 0, len(conflicts))
	for _, op := range conflicts {
		details = append(details, ConflictFromOperation(op))
	}
	return &ConflictError{ResourceID: resourceID, Conflicts: details}
}

// BlockedError reports a start refused for material or resource reasons
type BlockedError struct {
	OperationID         uuid.UUID
	Reason              string
	Issues              []entities.ShortageDetail
	BlockingOperationID *uuid.UUID
}

func (e *BlockedError) Error() string {
	if len(e.Issues) > 0 {
		skus := make([]string, 0, len(e.Issues))
		for _, issue := range e.Issues {
			skus = append(skus, fmt.Sprintf("%s short %s %s", issue.SKU, issue.Short, issue.Unit))
		}
		return fmt.Sprintf("operation %s blocked: %s (%s)", e.OperationID, e.Reason, strings.Join(skus, "; "))
	}
	return fmt.Sprintf("operation %s blocked: %s", e.OperationID, e.Reason)
}

func (e *BlockedError) Is(target error) bool { return target == ErrBlocked }

// StructuralError reports a cyclic or malformed BOM
type StructuralError struct {
	ProductID uuid.UUID
	Path      []uuid.UUID
	Reason    string
}

func (e *StructuralError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("malformed BOM for product %s: %s", e.ProductID, e.Reason)
	}
	path := make([]string, 0, len(e.Path))
	for _, id := range e.Path {
		path = append(path, id.String())
	}
	return fmt.Sprintf("malformed BOM for product %s: %s (path %s)", e.ProductID, e.Reason, strings.Join(path, " -> "))
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// ValidationError reports malformed caller input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid creates a ValidationError
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
