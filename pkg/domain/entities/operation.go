package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationStatus represents the lifecycle state of an operation instance
type OperationStatus string

const (
	OperationPending  OperationStatus = "pending"
	OperationQueued   OperationStatus = "queued"
	OperationRunning  OperationStatus = "running"
	OperationComplete OperationStatus = "complete"
	OperationSkipped  OperationStatus = "skipped"
)

var operationTransitions = map[OperationStatus][]OperationStatus{
	OperationPending: {OperationQueued, OperationRunning, OperationSkipped},
	OperationQueued:  {OperationRunning, OperationSkipped},
	OperationRunning: {OperationComplete},
}

// ParseOperationStatus converts a string to an OperationStatus
func ParseOperationStatus(s string) (OperationStatus, error) {
	switch status := OperationStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case OperationPending, OperationQueued, OperationRunning, OperationComplete, OperationSkipped:
		return status, nil
	default:
		return "", fmt.Errorf("invalid operation status: %s", s)
	}
}

// IsTerminal reports whether no further transition is possible
func (s OperationStatus) IsTerminal() bool {
	return s == OperationComplete || s == OperationSkipped
}

// CanTransitionTo reports whether next is a legal successor of s
func (s OperationStatus) CanTransitionTo(next OperationStatus) bool {
	for _, allowed := range operationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ScheduledStatus returns the status an operation takes when it is given a
// resource window. Running and terminal operations cannot be scheduled.
func (s OperationStatus) ScheduledStatus() (OperationStatus, bool) {
	switch s {
	case OperationPending, OperationQueued:
		return OperationQueued, true
	default:
		return s, false
	}
}

// String method for OperationStatus
func (s OperationStatus) String() string {
	return string(s)
}

// Interval is a half-open time window [Start, End)
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval creates a validated Interval
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching boundaries do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns the interval length
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Operation is one concrete step of a production run
type Operation struct {
	ID                  uuid.UUID
	RunID               uuid.UUID
	RoutingOperationID  *uuid.UUID
	Sequence            int
	OperationCode       string
	Name                string
	WorkCenterID        *uuid.UUID
	ResourceID          *uuid.UUID
	Status              OperationStatus
	ScheduledStart      *time.Time
	ScheduledEnd        *time.Time
	ActualStart         *time.Time
	ActualEnd           *time.Time
	PlannedSetupMinutes decimal.Decimal
	PlannedRunMinutes   decimal.Decimal
	QuantityCompleted   decimal.Decimal
	QuantityScrapped    decimal.Decimal
	Notes               string
}

// NewOperationFromTemplate instantiates a pending operation for a run from a routing step
func NewOperationFromTemplate(runID uuid.UUID, step *RoutingOperation, runQuantity decimal.Decimal) *Operation {
	stepID := step.ID
	return &Operation{
		ID:                  uuid.New(),
		RunID:               runID,
		RoutingOperationID:  &stepID,
		Sequence:            step.Sequence,
		OperationCode:       step.OperationCode,
		Name:                step.Name,
		WorkCenterID:        step.WorkCenterID,
		Status:              OperationPending,
		PlannedSetupMinutes: step.SetupMinutes,
		PlannedRunMinutes:   step.PlannedRunMinutes(runQuantity),
		QuantityCompleted:   decimal.Zero,
		QuantityScrapped:    decimal.Zero,
	}
}

// Interval returns the scheduled window, if both bounds are set
func (o *Operation) Interval() (Interval, bool) {
	if o.ScheduledStart == nil || o.ScheduledEnd == nil {
		return Interval{}, false
	}
	return Interval{Start: *o.ScheduledStart, End: *o.ScheduledEnd}, true
}

// IsScheduledOn reports whether the operation holds a window on the given resource
func (o *Operation) IsScheduledOn(resourceID uuid.UUID) bool {
	if o.ResourceID == nil || *o.ResourceID != resourceID {
		return false
	}
	_, ok := o.Interval()
	return ok
}

// Transition moves the operation to next if the transition table allows it
func (o *Operation) Transition(next OperationStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("operation %s cannot transition from %s to %s", o.ID, o.Status, next)
	}
	o.Status = next
	return nil
}

// AppendNote appends a line to the operation notes
func (o *Operation) AppendNote(note string) {
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes = o.Notes + "\n" + note
}

// Clone returns a copy safe to mutate independently of the original
func (o *Operation) Clone() *Operation {
	c := *o
	return &c
}
