package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// RunRepository persists production runs. Writes touching a run and its
// operations commit atomically or not at all.
type RunRepository interface {
	GetRun(ctx context.Context, id uuid.UUID) (*entities.ProductionRun, error)
	GetRunByNumber(ctx context.Context, runNumber string) (*entities.ProductionRun, error)
	SaveRun(ctx context.Context, run *entities.ProductionRun) error

	// SaveRelease updates the run and inserts ops. When replace is set, every
	// existing operation of the run is deleted first.
	SaveRelease(ctx context.Context, run *entities.ProductionRun, ops []*entities.Operation, replace bool) error

	// SaveTransition updates an operation and its run together. The stored
	// resource and scheduled window are kept; only AssignIfFree changes them.
	SaveTransition(ctx context.Context, run *entities.ProductionRun, op *entities.Operation) error
}

// Assignment is a proposed resource window for an operation
type Assignment struct {
	OperationID uuid.UUID
	RunID       uuid.UUID
	ResourceID  uuid.UUID
	Start       time.Time
	End         time.Time
}

// OperationRepository persists operation instances
type OperationRepository interface {
	GetOperation(ctx context.Context, runID, opID uuid.UUID) (*entities.Operation, error)
	ListOperations(ctx context.Context, runID uuid.UUID) ([]*entities.Operation, error)
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*entities.Operation, error)

	// AssignIfFree re-checks the operation and the resource timeline and writes
	// the assignment in one atomic step. A running or terminal operation is
	// rejected with an InvalidStateError; a pending one becomes queued. When
	// non-terminal operations overlap the window, nothing is written and the
	// colliding operations are returned.
	AssignIfFree(ctx context.Context, a Assignment) ([]*entities.Operation, error)
}

// ResourceRepository provides access to schedulable resources
type ResourceRepository interface {
	GetResource(ctx context.Context, id uuid.UUID) (*entities.Resource, error)
	GetResourceByCode(ctx context.Context, code string) (*entities.Resource, error)
	ListResources(ctx context.Context) ([]*entities.Resource, error)
}
