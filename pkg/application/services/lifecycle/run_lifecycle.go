package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/application/services/gate"
	"github.com/vsinha/prodplan/pkg/application/services/scheduling"
	"github.com/vsinha/prodplan/pkg/application/services/shared"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/domain/services"
	"github.com/vsinha/prodplan/pkg/infrastructure/events"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// Repositories groups what the lifecycle service reads and writes
type Repositories struct {
	Runs       repositories.RunRepository
	Operations repositories.OperationRepository
	BOMs       repositories.BOMRepository
	Routings   repositories.RoutingRepository
}

// Config holds lifecycle policy switches
type Config struct {
	// AllowDestructiveRegenerate lets forced regeneration discard running or complete operations
	AllowDestructiveRegenerate bool
}

// Service drives a production run from release through operation completion.
// Every operation transition is followed by the run status rollup.
type Service struct {
	repos      Repositories
	gate       *gate.MaterialGate
	scheduler  *scheduling.Scheduler
	locker     shared.Locker
	eventStore events.EventStore
	config     Config
	logger     *logging.Logger
	now        func() time.Time
}

func NewService(
	repos Repositories,
	materialGate *gate.MaterialGate,
	scheduler *scheduling.Scheduler,
	locker shared.Locker,
	eventStore events.EventStore,
	config Config,
	logger *logging.Logger,
) *Service {
	return &Service{
		repos:      repos,
		gate:       materialGate,
		scheduler:  scheduler,
		locker:     locker,
		eventStore: eventStore,
		config:     config,
		logger:     logging.OrNop(logger).With("service", "RunLifecycle"),
		now:        time.Now,
	}
}

// Release freezes the run's routing and BOM, creates its operations and moves it
// to released. A run that is not a draft is left untouched.
func (s *Service) Release(ctx context.Context, runID uuid.UUID) (*dto.ReleaseResult, error) {
	release, err := s.lockRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	run, err := s.repos.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &dto.ReleaseResult{RunID: run.ID}
	if run.Status != entities.RunDraft {
		result.RoutingID = run.RoutingID
		result.BOMID = run.BOMID
		result.Message = "already released"
		return result, apperr.InvalidState("production run", run.ID, string(run.Status),
			string(entities.RunReleased), "already released")
	}

	existing, err := s.repos.Operations.ListOperations(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations for run %s: %w", run.ID, err)
	}

	var ops []*entities.Operation
	if len(existing) == 0 {
		routing, err := s.resolveRouting(ctx, run)
		if err != nil {
			return nil, err
		}
		if routing != nil {
			run.RoutingID = &routing.ID
			ops = instantiate(run, routing)
		} else {
			result.Message = "no routing; released without operations"
		}
	} else {
		result.Message = fmt.Sprintf("kept %d existing operations", len(existing))
	}

	if run.BOMID == nil {
		bom, err := s.repos.BOMs.GetBOM(ctx, run.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to get BOM for product %s: %w", run.ProductID, err)
		}
		if bom != nil {
			run.BOMID = &bom.ID
		}
	}

	now := s.now()
	run.Status = entities.RunReleased
	run.ReleasedAt = &now
	run.CurrentOperationID = currentPointer(append(existing, ops...))

	if err := s.repos.Runs.SaveRelease(ctx, run, ops, false); err != nil {
		return nil, fmt.Errorf("failed to save release of run %s: %w", run.ID, err)
	}

	result.Released = true
	result.OperationsCreated = len(ops)
	result.RoutingID = run.RoutingID
	result.BOMID = run.BOMID

	s.logger.Info("run released",
		"run_id", run.ID,
		"run_number", run.RunNumber,
		"operations_created", len(ops),
	)
	s.publish(events.NewRunReleasedEvent(run, len(ops)))

	return result, nil
}

// GenerateOperations (re)creates the run's operations from its routing. Without
// Force an existing operation list is left alone.
func (s *Service) GenerateOperations(ctx context.Context, runID uuid.UUID, opts dto.GenerateOptions) (*dto.GenerateResult, error) {
	release, err := s.lockRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	run, err := s.repos.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == entities.RunCancelled {
		return nil, apperr.InvalidState("production run", run.ID, string(run.Status), string(run.Status),
			"cannot generate operations for a cancelled run")
	}

	routing, err := s.resolveRouting(ctx, run)
	if err != nil {
		return nil, err
	}
	if routing == nil {
		return nil, &apperr.NotFoundError{Entity: "routing", ID: "product " + run.ProductID.String()}
	}

	existing, err := s.repos.Operations.ListOperations(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations for run %s: %w", run.ID, err)
	}

	result := &dto.GenerateResult{RunID: run.ID}
	if len(existing) > 0 && !opts.Force {
		result.Message = fmt.Sprintf("run already has %d operations; use force to regenerate", len(existing))
		return result, nil
	}

	if len(existing) > 0 && !(opts.AllowDestructive || s.config.AllowDestructiveRegenerate) {
		for _, op := range existing {
			if op.Status == entities.OperationRunning || op.Status == entities.OperationComplete {
				return nil, apperr.InvalidState("production run", run.ID, string(run.Status), string(run.Status),
					fmt.Sprintf("operation %s#%d is %s; regeneration would discard recorded progress",
						op.OperationCode, op.Sequence, op.Status))
			}
		}
	}

	ops := instantiate(run, routing)
	run.RoutingID = &routing.ID
	run.CurrentOperationID = currentPointer(ops)
	run.Status = services.RollupRunStatus(run.Status, services.OperationStatuses(ops))

	if err := s.repos.Runs.SaveRelease(ctx, run, ops, true); err != nil {
		return nil, fmt.Errorf("failed to replace operations of run %s: %w", run.ID, err)
	}

	result.OperationsDeleted = len(existing)
	result.OperationsCreated = len(ops)
	result.Message = fmt.Sprintf("generated %d operations", len(ops))

	s.logger.Info("operations generated",
		"run_id", run.ID,
		"routing_id", routing.ID,
		"deleted", len(existing),
		"created", len(ops),
	)
	s.publish(events.NewOperationsGeneratedEvent(run.ID, routing.ID, len(existing), len(ops)))

	return result, nil
}

// StartOperation moves a pending or queued operation to running once every
// earlier operation is finished, its material is on hand and its resource is idle.
// The run lock is taken before the resource lock.
func (s *Service) StartOperation(ctx context.Context, runID, opID uuid.UUID) (*dto.TransitionResult, error) {
	release, err := s.lockRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	run, op, ops, err := s.load(ctx, runID, opID)
	if err != nil {
		return nil, err
	}
	if op.ResourceID != nil {
		resourceID := *op.ResourceID
		releaseResource, err := s.lockResource(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		defer releaseResource()

		if run, op, ops, err = s.load(ctx, runID, opID); err != nil {
			return nil, err
		}
		if op.ResourceID == nil || *op.ResourceID != resourceID {
			return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationRunning),
				"operation was moved to another resource, retry")
		}
	}
	if err := requireActiveRun(run); err != nil {
		return nil, err
	}

	if op.Status != entities.OperationPending && op.Status != entities.OperationQueued {
		return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationRunning),
			"operation must be pending or queued")
	}

	for _, other := range ops {
		if other.Sequence < op.Sequence && !other.Status.IsTerminal() {
			return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationRunning),
				fmt.Sprintf("previous operation %s#%d is %s", other.OperationCode, other.Sequence, other.Status))
		}
	}

	gateResult, err := s.gate.Check(ctx, run, op)
	if err != nil {
		return nil, err
	}
	if !gateResult.OK {
		return nil, &apperr.BlockedError{
			OperationID: op.ID,
			Reason:      "insufficient material",
			Issues:      gateResult.Issues,
		}
	}

	if op.ResourceID != nil {
		free, blocking, err := s.scheduler.CheckResourceAvailableNow(ctx, *op.ResourceID)
		if err != nil {
			return nil, err
		}
		if !free && blocking.ID != op.ID {
			blockingID := blocking.ID
			return nil, &apperr.BlockedError{
				OperationID:         op.ID,
				Reason:              fmt.Sprintf("resource busy with %s#%d", blocking.OperationCode, blocking.Sequence),
				BlockingOperationID: &blockingID,
			}
		}
	}

	from := op.Status
	if err := op.Transition(entities.OperationRunning); err != nil {
		return nil, apperr.InvalidState("operation", op.ID, string(from), string(entities.OperationRunning), err.Error())
	}
	now := s.now()
	op.ActualStart = &now

	return s.commit(ctx, run, op, ops, from, events.OperationStartedEvent, "")
}

// CompleteOperation records output of a running operation. Good plus scrapped
// output may not exceed what the previous non-skipped operation delivered,
// or the ordered quantity for the first operation.
func (s *Service) CompleteOperation(
	ctx context.Context,
	runID, opID uuid.UUID,
	in dto.CompleteInput,
) (*dto.TransitionResult, error) {
	if in.QuantityCompleted.IsNegative() {
		return nil, apperr.Invalid("quantity_completed", "cannot be negative")
	}
	if in.QuantityScrapped.IsNegative() {
		return nil, apperr.Invalid("quantity_scrapped", "cannot be negative")
	}

	release, err := s.lockRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	run, op, ops, err := s.load(ctx, runID, opID)
	if err != nil {
		return nil, err
	}

	if op.Status != entities.OperationRunning {
		return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationComplete),
			"operation is not running")
	}

	maxQty := run.QuantityOrdered
	for _, other := range ops {
		if other.Sequence < op.Sequence && other.Status != entities.OperationSkipped {
			maxQty = other.QuantityCompleted
		}
	}

	completed := in.QuantityCompleted
	if completed.IsZero() {
		completed = decimal.Max(maxQty.Sub(in.QuantityScrapped), decimal.Zero)
	}
	if total := completed.Add(in.QuantityScrapped); total.GreaterThan(maxQty) {
		return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationComplete),
			fmt.Sprintf("quantity %s exceeds maximum %s", total, maxQty))
	}

	from := op.Status
	if err := op.Transition(entities.OperationComplete); err != nil {
		return nil, apperr.InvalidState("operation", op.ID, string(from), string(entities.OperationComplete), err.Error())
	}
	now := s.now()
	op.ActualEnd = &now
	op.QuantityCompleted = completed
	op.QuantityScrapped = in.QuantityScrapped
	if strings.TrimSpace(in.Notes) != "" {
		op.AppendNote(strings.TrimSpace(in.Notes))
	}
	run.QuantityScrapped = run.QuantityScrapped.Add(in.QuantityScrapped)

	return s.commit(ctx, run, op, ops, from, events.OperationCompletedEvent, "")
}

// SkipOperation marks a pending or queued operation as skipped, recording why
func (s *Service) SkipOperation(ctx context.Context, runID, opID uuid.UUID, reason string) (*dto.TransitionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalid("reason", "a skip reason is required")
	}

	release, err := s.lockRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	run, op, ops, err := s.load(ctx, runID, opID)
	if err != nil {
		return nil, err
	}
	if err := requireActiveRun(run); err != nil {
		return nil, err
	}

	from := op.Status
	if err := op.Transition(entities.OperationSkipped); err != nil {
		return nil, apperr.InvalidState("operation", op.ID, string(from), string(entities.OperationSkipped), err.Error())
	}
	op.AppendNote("Skipped: " + reason)

	return s.commit(ctx, run, op, ops, from, events.OperationSkippedEvent, reason)
}

// commit rolls the run status up from the updated operation set, persists the
// operation and run together and publishes the transition
func (s *Service) commit(
	ctx context.Context,
	run *entities.ProductionRun,
	op *entities.Operation,
	ops []*entities.Operation,
	from entities.OperationStatus,
	eventType string,
	reason string,
) (*dto.TransitionResult, error) {
	for i, other := range ops {
		if other.ID == op.ID {
			ops[i] = op
		}
	}

	now := s.now()
	next := services.RollupRunStatus(run.Status, services.OperationStatuses(ops))
	if (next == entities.RunInProgress || next == entities.RunComplete) && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if next == entities.RunComplete {
		run.CompletedAt = &now
		if last := lastCompleted(ops); last != nil {
			run.QuantityCompleted = last.QuantityCompleted
		}
	}
	run.Status = next
	run.CurrentOperationID = currentPointer(ops)

	if err := s.repos.Runs.SaveTransition(ctx, run, op); err != nil {
		return nil, fmt.Errorf("failed to save operation %s: %w", op.ID, err)
	}

	s.logger.Info("operation transitioned",
		"run_id", run.ID,
		"operation_id", op.ID,
		"operation_code", op.OperationCode,
		"from", from,
		"to", op.Status,
		"run_status", run.Status,
	)
	s.publish(events.NewOperationTransitionEvent(eventType, run, op, from, reason))

	return &dto.TransitionResult{Run: run, Operation: op}, nil
}

func (s *Service) load(ctx context.Context, runID, opID uuid.UUID) (*entities.ProductionRun, *entities.Operation, []*entities.Operation, error) {
	run, err := s.repos.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, nil, err
	}
	op, err := s.repos.Operations.GetOperation(ctx, runID, opID)
	if err != nil {
		return nil, nil, nil, err
	}
	ops, err := s.repos.Operations.ListOperations(ctx, runID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list operations for run %s: %w", runID, err)
	}
	return run, op, ops, nil
}

func (s *Service) resolveRouting(ctx context.Context, run *entities.ProductionRun) (*entities.Routing, error) {
	if run.RoutingID != nil {
		routing, err := s.repos.Routings.GetRoutingByID(ctx, *run.RoutingID)
		if err != nil {
			return nil, fmt.Errorf("failed to get routing %s: %w", *run.RoutingID, err)
		}
		return routing, nil
	}
	routing, err := s.repos.Routings.GetRouting(ctx, run.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get routing for product %s: %w", run.ProductID, err)
	}
	return routing, nil
}

func (s *Service) lockRun(ctx context.Context, runID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.RunLockKey(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock run %s: %w", runID, err)
	}
	return release, nil
}

func (s *Service) lockResource(ctx context.Context, resourceID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.ResourceLockKey(resourceID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock resource %s: %w", resourceID, err)
	}
	return release, nil
}

func (s *Service) publish(event events.Event) {
	if s.eventStore == nil {
		return
	}
	if err := s.eventStore.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.Type(), "error", err)
	}
}

func requireActiveRun(run *entities.ProductionRun) error {
	switch run.Status {
	case entities.RunReleased, entities.RunInProgress:
		return nil
	default:
		return apperr.InvalidState("production run", run.ID, string(run.Status), string(entities.RunInProgress),
			fmt.Sprintf("run is %s", run.Status))
	}
}

func instantiate(run *entities.ProductionRun, routing *entities.Routing) []*entities.Operation {
	steps := routing.Ordered()
	ops := make([]*entities.Operation, 0, len(steps))
	for _, step := range steps {
		ops = append(ops, entities.NewOperationFromTemplate(run.ID, step, run.QuantityOrdered))
	}
	return ops
}

// currentPointer is the running operation, else the first one not yet started.
// ops must be ordered by sequence.
func currentPointer(ops []*entities.Operation) *uuid.UUID {
	var next *uuid.UUID
	for _, op := range ops {
		switch op.Status {
		case entities.OperationRunning:
			id := op.ID
			return &id
		case entities.OperationPending, entities.OperationQueued:
			if next == nil {
				id := op.ID
				next = &id
			}
		}
	}
	return next
}

func lastCompleted(ops []*entities.Operation) *entities.Operation {
	var last *entities.Operation
	for _, op := range ops {
		if op.Status == entities.OperationComplete && (last == nil || op.Sequence > last.Sequence) {
			last = op
		}
	}
	return last
}
