package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/application/services/shared"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/infrastructure/events"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// Repositories groups what the scheduler reads and writes
type Repositories struct {
	Runs       repositories.RunRepository
	Operations repositories.OperationRepository
	Resources  repositories.ResourceRepository
}

// ScheduleRequest proposes the window [Start, End) on a resource for an operation
type ScheduleRequest struct {
	RunID       uuid.UUID
	OperationID uuid.UUID
	ResourceID  uuid.UUID
	Start       time.Time
	End         time.Time
}

// Scheduler assigns operations to resource time windows without double-booking.
// Commits are serialised per resource by the locker and re-checked by the
// repository inside the same write.
type Scheduler struct {
	repos      Repositories
	locker     shared.Locker
	eventStore events.EventStore
	logger     *logging.Logger
}

func NewScheduler(
	repos Repositories,
	locker shared.Locker,
	eventStore events.EventStore,
	logger *logging.Logger,
) *Scheduler {
	return &Scheduler{
		repos:      repos,
		locker:     locker,
		eventStore: eventStore,
		logger:     logging.OrNop(logger).With("service", "Scheduler"),
	}
}

// FindConflicts returns the non-terminal operations on resourceID whose scheduled
// window overlaps [start, end), ordered by start
func (s *Scheduler) FindConflicts(
	ctx context.Context,
	resourceID uuid.UUID,
	start, end time.Time,
	excludeOpID *uuid.UUID,
) ([]*entities.Operation, error) {
	proposed, err := entities.NewInterval(start, end)
	if err != nil {
		return nil, apperr.Invalid("interval", err.Error())
	}
	if _, err := s.repos.Resources.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	ops, err := s.repos.Operations.ListByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations on resource %s: %w", resourceID, err)
	}

	var conflicts []*entities.Operation
	for _, op := range ops {
		if op.Status.IsTerminal() {
			continue
		}
		if excludeOpID != nil && op.ID == *excludeOpID {
			continue
		}
		window, ok := op.Interval()
		if ok && window.Overlaps(proposed) {
			conflicts = append(conflicts, op)
		}
	}
	return conflicts, nil
}

// Schedule assigns the operation to the resource window. A pending operation
// becomes queued; a queued one keeps its status. Running or terminal
// operations and operations of complete or cancelled runs are refused.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (*dto.ScheduleResult, error) {
	if _, err := entities.NewInterval(req.Start, req.End); err != nil {
		return nil, apperr.Invalid("interval", err.Error())
	}
	run, err := s.repos.Runs.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status == entities.RunComplete || run.Status == entities.RunCancelled {
		return nil, apperr.InvalidState("production run", run.ID, string(run.Status), string(entities.RunInProgress),
			fmt.Sprintf("cannot schedule operations of a %s run", run.Status))
	}
	op, err := s.repos.Operations.GetOperation(ctx, req.RunID, req.OperationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Resources.GetResource(ctx, req.ResourceID); err != nil {
		return nil, err
	}

	// re-checked by AssignIfFree against the status at commit time
	if _, ok := op.Status.ScheduledStatus(); !ok {
		return nil, apperr.InvalidState("operation", op.ID, string(op.Status), string(entities.OperationQueued),
			fmt.Sprintf("cannot schedule a %s operation", op.Status))
	}

	// fast path for the common rejection, re-checked under the lock
	conflicts, err := s.FindConflicts(ctx, req.ResourceID, req.Start, req.End, &op.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, apperr.NewConflictError(req.ResourceID, conflicts)
	}

	release, err := s.locker.Acquire(ctx, shared.ResourceLockKey(req.ResourceID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock resource %s: %w", req.ResourceID, err)
	}
	defer release()

	conflicts, err = s.repos.Operations.AssignIfFree(ctx, repositories.Assignment{
		OperationID: op.ID,
		RunID:       req.RunID,
		ResourceID:  req.ResourceID,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign operation %s: %w", op.ID, err)
	}
	if len(conflicts) > 0 {
		return nil, apperr.NewConflictError(req.ResourceID, conflicts)
	}

	updated, err := s.repos.Operations.GetOperation(ctx, req.RunID, op.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operation scheduled",
		"run_id", req.RunID,
		"operation_id", op.ID,
		"resource_id", req.ResourceID,
		"start", req.Start,
		"end", req.End,
	)
	s.publish(events.NewOperationScheduledEvent(updated, req.ResourceID, req.Start, req.End))

	return &dto.ScheduleResult{
		Operation:  updated,
		ResourceID: req.ResourceID,
		Start:      req.Start,
		End:        req.End,
	}, nil
}

// CheckResourceAvailableNow reports whether no operation is running on the
// resource, returning the blocking operation otherwise
func (s *Scheduler) CheckResourceAvailableNow(ctx context.Context, resourceID uuid.UUID) (bool, *entities.Operation, error) {
	if _, err := s.repos.Resources.GetResource(ctx, resourceID); err != nil {
		return false, nil, err
	}
	ops, err := s.repos.Operations.ListByResource(ctx, resourceID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to list operations on resource %s: %w", resourceID, err)
	}
	for _, op := range ops {
		if op.Status == entities.OperationRunning {
			return false, op, nil
		}
	}
	return true, nil, nil
}

// GetResourceSchedule returns the resource's scheduled non-terminal operations
// ordered by start, limited to those overlapping [from, to) when bounds are given
func (s *Scheduler) GetResourceSchedule(
	ctx context.Context,
	resourceID uuid.UUID,
	from, to *time.Time,
) (*dto.ResourceSchedule, error) {
	resource, err := s.repos.Resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, apperr.Invalid("window", "to must be after from")
	}

	ops, err := s.repos.Operations.ListByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations on resource %s: %w", resourceID, err)
	}

	schedule := &dto.ResourceSchedule{Resource: resource, Operations: make([]*entities.Operation, 0, len(ops))}
	for _, op := range ops {
		if op.Status.IsTerminal() {
			continue
		}
		window, ok := op.Interval()
		if !ok {
			continue
		}
		if from != nil && !window.End.After(*from) {
			continue
		}
		if to != nil && !window.Start.Before(*to) {
			continue
		}
		schedule.Operations = append(schedule.Operations, op)
	}
	sortByStart(schedule.Operations)
	return schedule, nil
}

// FindNextAvailableSlot returns the earliest start at or after after where the
// resource is free for duration
func (s *Scheduler) FindNextAvailableSlot(
	ctx context.Context,
	resourceID uuid.UUID,
	duration time.Duration,
	after time.Time,
) (time.Time, error) {
	if duration <= 0 {
		return time.Time{}, apperr.Invalid("duration", "must be positive")
	}
	schedule, err := s.GetResourceSchedule(ctx, resourceID, &after, nil)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after
	for _, op := range schedule.Operations {
		window, _ := op.Interval()
		if !candidate.Add(duration).After(window.Start) {
			break
		}
		if window.End.After(candidate) {
			candidate = window.End
		}
	}
	return candidate, nil
}

func (s *Scheduler) publish(event events.Event) {
	if s.eventStore == nil {
		return
	}
	if err := s.eventStore.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.Type(), "error", err)
	}
}

func sortByStart(ops []*entities.Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].ScheduledStart.Before(*ops[j].ScheduledStart)
	})
}
