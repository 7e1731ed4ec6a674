package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

// ProductionRepository keeps runs, operations and resources in memory.
// A single lock makes every multi-record write atomic.
type ProductionRepository struct {
	mu         sync.RWMutex
	runs       map[uuid.UUID]*entities.ProductionRun
	runsByNum  map[string]uuid.UUID
	operations map[uuid.UUID]*entities.Operation
	runOps     map[uuid.UUID][]uuid.UUID
	resources  map[uuid.UUID]*entities.Resource
	resByCode  map[string]uuid.UUID
}

// NewProductionRepository creates an empty production repository
func NewProductionRepository() *ProductionRepository {
	return &ProductionRepository{
		runs:       make(map[uuid.UUID]*entities.ProductionRun),
		runsByNum:  make(map[string]uuid.UUID),
		operations: make(map[uuid.UUID]*entities.Operation),
		runOps:     make(map[uuid.UUID][]uuid.UUID),
		resources:  make(map[uuid.UUID]*entities.Resource),
		resByCode:  make(map[string]uuid.UUID),
	}
}

// Verify interface compliance
var _ repositories.RunRepository = (*ProductionRepository)(nil)
var _ repositories.OperationRepository = (*ProductionRepository)(nil)
var _ repositories.ResourceRepository = (*ProductionRepository)(nil)

// AddResource stores or replaces a resource
func (r *ProductionRepository) AddResource(resource *entities.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyRes := *resource
	r.resources[resource.ID] = &copyRes
	r.resByCode[strings.ToUpper(resource.Code)] = resource.ID
}

// AddOperations stores operations for an existing run as-is (fixtures and imports)
func (r *ProductionRepository) AddOperations(ops ...*entities.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range ops {
		r.putOperation(op)
	}
}

// GetResource returns a resource by ID
func (r *ProductionRepository) GetResource(ctx context.Context, id uuid.UUID) (*entities.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, exists := r.resources[id]
	if !exists {
		return nil, apperr.NotFound("resource", id)
	}
	copyRes := *res
	return &copyRes, nil
}

// GetResourceByCode returns a resource by code, case-insensitively
func (r *ProductionRepository) GetResourceByCode(ctx context.Context, code string) (*entities.Resource, error) {
	r.mu.RLock()
	id, exists := r.resByCode[strings.ToUpper(strings.TrimSpace(code))]
	r.mu.RUnlock()
	if !exists {
		return nil, &apperr.NotFoundError{Entity: "resource", ID: code}
	}
	return r.GetResource(ctx, id)
}

// ListResources returns all resources ordered by code
func (r *ProductionRepository) ListResources(ctx context.Context) ([]*entities.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Resource, 0, len(r.resources))
	for _, res := range r.resources {
		copyRes := *res
		out = append(out, &copyRes)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// GetRun returns a copy of a run
func (r *ProductionRepository) GetRun(ctx context.Context, id uuid.UUID) (*entities.ProductionRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, exists := r.runs[id]
	if !exists {
		return nil, apperr.NotFound("production run", id)
	}
	return run.Clone(), nil
}

// GetRunByNumber returns a copy of a run by its run number
func (r *ProductionRepository) GetRunByNumber(ctx context.Context, runNumber string) (*entities.ProductionRun, error) {
	r.mu.RLock()
	id, exists := r.runsByNum[strings.ToUpper(strings.TrimSpace(runNumber))]
	r.mu.RUnlock()
	if !exists {
		return nil, &apperr.NotFoundError{Entity: "production run", ID: runNumber}
	}
	return r.GetRun(ctx, id)
}

// SaveRun creates or updates a run
func (r *ProductionRepository) SaveRun(ctx context.Context, run *entities.ProductionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putRun(run)
	return nil
}

// SaveRelease updates the run and inserts its operations in one step
func (r *ProductionRepository) SaveRelease(
	ctx context.Context,
	run *entities.ProductionRun,
	ops []*entities.Operation,
	replace bool,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; !exists {
		return apperr.NotFound("production run", run.ID)
	}
	for _, op := range ops {
		if op.RunID != run.ID {
			return fmt.Errorf("operation %s belongs to run %s, not %s", op.ID, op.RunID, run.ID)
		}
	}

	if replace {
		for _, opID := range r.runOps[run.ID] {
			delete(r.operations, opID)
		}
		delete(r.runOps, run.ID)
	}
	for _, op := range ops {
		r.putOperation(op)
	}
	r.putRun(run)
	return nil
}

// SaveTransition updates an operation and its run together
func (r *ProductionRepository) SaveTransition(ctx context.Context, run *entities.ProductionRun, op *entities.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.operations[op.ID]
	if !exists || existing.RunID != run.ID {
		return apperr.NotFound("operation", op.ID)
	}
	stored := op.Clone()
	stored.ResourceID = existing.ResourceID
	stored.ScheduledStart = existing.ScheduledStart
	stored.ScheduledEnd = existing.ScheduledEnd
	r.putOperation(stored)
	r.putRun(run)
	return nil
}

// GetOperation returns a copy of an operation belonging to runID
func (r *ProductionRepository) GetOperation(ctx context.Context, runID, opID uuid.UUID) (*entities.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, exists := r.operations[opID]
	if !exists || op.RunID != runID {
		return nil, apperr.NotFound("operation", opID)
	}
	return op.Clone(), nil
}

// ListOperations returns the run's operations ordered by sequence
func (r *ProductionRepository) ListOperations(ctx context.Context, runID uuid.UUID) ([]*entities.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]*entities.Operation, 0, len(r.runOps[runID]))
	for _, opID := range r.runOps[runID] {
		ops = append(ops, r.operations[opID].Clone())
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Sequence < ops[j].Sequence })
	return ops, nil
}

// ListByResource returns every operation assigned to a resource, ordered by scheduled start
func (r *ProductionRepository) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*entities.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listByResource(resourceID), nil
}

// AssignIfFree checks the operation's current status and the resource for
// overlapping non-terminal assignments, then writes the new window under the same lock
func (r *ProductionRepository) AssignIfFree(ctx context.Context, a repositories.Assignment) ([]*entities.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, exists := r.operations[a.OperationID]
	if !exists || op.RunID != a.RunID {
		return nil, apperr.NotFound("operation", a.OperationID)
	}
	status, ok := op.Status.ScheduledStatus()
	if !ok {
		return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationQueued),
			fmt.Sprintf("cannot schedule a %s operation", op.Status))
	}
	if _, exists := r.resources[a.ResourceID]; !exists {
		return nil, apperr.NotFound("resource", a.ResourceID)
	}

	proposed := entities.Interval{Start: a.Start, End: a.End}
	var conflicts []*entities.Operation
	for _, other := range r.listByResource(a.ResourceID) {
		if other.ID == a.OperationID || other.Status.IsTerminal() {
			continue
		}
		if window, ok := other.Interval(); ok && window.Overlaps(proposed) {
			conflicts = append(conflicts, other)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	updated := op.Clone()
	resourceID := a.ResourceID
	start, end := a.Start, a.End
	updated.ResourceID = &resourceID
	updated.ScheduledStart = &start
	updated.ScheduledEnd = &end
	updated.Status = status
	r.operations[updated.ID] = updated
	return nil, nil
}

func (r *ProductionRepository) listByResource(resourceID uuid.UUID) []*entities.Operation {
	var ops []*entities.Operation
	for _, op := range r.operations {
		if op.ResourceID != nil && *op.ResourceID == resourceID {
			ops = append(ops, op.Clone())
		}
	}
	sort.SliceStable(ops, func(i, j int) bool {
		a, b := ops[i].ScheduledStart, ops[j].ScheduledStart
		switch {
		case a == nil && b == nil:
			return ops[i].Sequence < ops[j].Sequence
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return ops
}

func (r *ProductionRepository) putRun(run *entities.ProductionRun) {
	r.runs[run.ID] = run.Clone()
	r.runsByNum[strings.ToUpper(run.RunNumber)] = run.ID
}

func (r *ProductionRepository) putOperation(op *entities.Operation) {
	if _, exists := r.operations[op.ID]; !exists {
		r.runOps[op.RunID] = append(r.runOps[op.RunID], op.ID)
	}
	r.operations[op.ID] = op.Clone()
}
