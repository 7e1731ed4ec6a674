package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	testhelpers "github.com/vsinha/prodplan/pkg/application/services/testing"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/infrastructure/events"
	"github.com/vsinha/prodplan/pkg/infrastructure/locking"
)

type fixture struct {
	*testhelpers.Scenario
	scheduler *Scheduler
	store     *events.InMemoryEventStore
	run       *entities.ProductionRun
}

func newFixture(t *testing.T, opCount int) *fixture {
	t.Helper()
	s := testhelpers.BuildFilamentBoxScenario()
	store := events.NewInMemoryEventStore(nil)
	scheduler := NewScheduler(Repositories{
		Runs:       s.Production,
		Operations: s.Production,
		Resources:  s.Production,
	}, locking.NewKeyedMutex(), store, nil)

	run := s.MustRun("RUN-1", s.Widget, "10")
	var ops []*entities.Operation
	for i := 0; i < opCount; i++ {
		ops = append(ops, &entities.Operation{
			ID:            uuid.New(),
			RunID:         run.ID,
			Sequence:      (i + 1) * 10,
			OperationCode: "PRINT",
			Status:        entities.OperationPending,
		})
	}
	run.Status = entities.RunReleased
	if err := s.Production.SaveRelease(context.Background(), run, ops, false); err != nil {
		t.Fatalf("Failed to save operations: %v", err)
	}
	return &fixture{Scenario: s, scheduler: scheduler, store: store, run: run}
}

func (f *fixture) ops(t *testing.T) []*entities.Operation {
	t.Helper()
	ops, err := f.Production.ListOperations(context.Background(), f.run.ID)
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	return ops
}

func (f *fixture) schedule(op *entities.Operation, start, end time.Time) error {
	_, err := f.scheduler.Schedule(context.Background(), ScheduleRequest{
		RunID:       f.run.ID,
		OperationID: op.ID,
		ResourceID:  f.Printer.ID,
		Start:       start,
		End:         end,
	})
	return err
}

func TestScheduler_ScheduleQueuesAndRejectsOverlap(t *testing.T) {
	f := newFixture(t, 2)
	ops := f.ops(t)

	if err := f.schedule(ops[0], testhelpers.At(8, 0), testhelpers.At(10, 0)); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	scheduled, _ := f.Production.GetOperation(context.Background(), f.run.ID, ops[0].ID)
	if scheduled.Status != entities.OperationQueued {
		t.Errorf("Expected queued, got %s", scheduled.Status)
	}
	if scheduled.ResourceID == nil || *scheduled.ResourceID != f.Printer.ID {
		t.Error("Expected resource to be assigned")
	}

	err := f.schedule(ops[1], testhelpers.At(9, 0), testhelpers.At(11, 0))
	var conflict *apperr.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected ConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].OperationID != ops[0].ID {
		t.Errorf("Expected conflict naming the first operation, got %+v", conflict.Conflicts)
	}

	// adjacency is not a conflict
	if err := f.schedule(ops[1], testhelpers.At(10, 0), testhelpers.At(11, 0)); err != nil {
		t.Errorf("Expected adjacent window to be accepted, got %v", err)
	}

	// rescheduling a queued operation keeps it queued and ignores its own window
	if err := f.schedule(ops[0], testhelpers.At(7, 0), testhelpers.At(9, 30)); err != nil {
		t.Errorf("Expected reschedule to succeed, got %v", err)
	}
	if got := len(f.store.EventsOfType(events.OperationScheduledEvent)); got != 3 {
		t.Errorf("Expected 3 scheduled events, got %d", got)
	}
}

func TestScheduler_FindConflicts(t *testing.T) {
	f := newFixture(t, 3)
	ops := f.ops(t)
	ctx := context.Background()

	if err := f.schedule(ops[0], testhelpers.At(8, 0), testhelpers.At(10, 0)); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := f.schedule(ops[1], testhelpers.At(12, 0), testhelpers.At(14, 0)); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	// a completed assignment never conflicts
	done, _ := f.Production.GetOperation(ctx, f.run.ID, ops[1].ID)
	done.Status = entities.OperationComplete
	if err := f.Production.SaveTransition(ctx, f.run, done); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		exclude  *uuid.UUID
		expected int
	}{
		{"overlap", testhelpers.At(9, 0), testhelpers.At(11, 0), nil, 1},
		{"contained", testhelpers.At(8, 30), testhelpers.At(9, 0), nil, 1},
		{"touching end", testhelpers.At(10, 0), testhelpers.At(11, 0), nil, 0},
		{"touching start", testhelpers.At(7, 0), testhelpers.At(8, 0), nil, 0},
		{"terminal ignored", testhelpers.At(12, 0), testhelpers.At(13, 0), nil, 0},
		{"excluded self", testhelpers.At(9, 0), testhelpers.At(11, 0), &ops[0].ID, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts, err := f.scheduler.FindConflicts(ctx, f.Printer.ID, tt.start, tt.end, tt.exclude)
			if err != nil {
				t.Fatalf("FindConflicts failed: %v", err)
			}
			if len(conflicts) != tt.expected {
				t.Errorf("Expected %d conflicts, got %d", tt.expected, len(conflicts))
			}
		})
	}

	if _, err := f.scheduler.FindConflicts(ctx, f.Printer.ID, testhelpers.At(10, 0), testhelpers.At(10, 0), nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error for empty interval, got %v", err)
	}
	if _, err := f.scheduler.FindConflicts(ctx, uuid.New(), testhelpers.At(8, 0), testhelpers.At(9, 0), nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for unknown resource, got %v", err)
	}
}

func TestScheduler_OverlapSymmetry(t *testing.T) {
	windows := [][2]time.Time{
		{testhelpers.At(8, 0), testhelpers.At(10, 0)},
		{testhelpers.At(9, 0), testhelpers.At(9, 30)},
		{testhelpers.At(10, 0), testhelpers.At(12, 0)},
		{testhelpers.At(6, 0), testhelpers.At(8, 0)},
	}
	for i, a := range windows {
		for j, b := range windows {
			ia := entities.Interval{Start: a[0], End: a[1]}
			ib := entities.Interval{Start: b[0], End: b[1]}
			if ia.Overlaps(ib) != ib.Overlaps(ia) {
				t.Errorf("Expected symmetric overlap for windows %d and %d", i, j)
			}
		}
	}
}

func TestScheduler_ScheduleValidation(t *testing.T) {
	f := newFixture(t, 2)
	ops := f.ops(t)
	ctx := context.Background()

	running, _ := f.Production.GetOperation(ctx, f.run.ID, ops[1].ID)
	running.Status = entities.OperationRunning
	if err := f.Production.SaveTransition(ctx, f.run, running); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}

	if err := f.schedule(ops[1], testhelpers.At(8, 0), testhelpers.At(9, 0)); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("Expected invalid state for running operation, got %v", err)
	}
	if err := f.schedule(ops[0], testhelpers.At(9, 0), testhelpers.At(8, 0)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error for reversed window, got %v", err)
	}

	other := f.MustRun("RUN-2", f.Widget, "1")
	_, err := f.scheduler.Schedule(ctx, ScheduleRequest{
		RunID: other.ID, OperationID: ops[0].ID, ResourceID: f.Printer.ID,
		Start: testhelpers.At(8, 0), End: testhelpers.At(9, 0),
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for operation of another run, got %v", err)
	}
}

func TestScheduler_ConcurrentScheduleCommitsOnce(t *testing.T) {
	f := newFixture(t, 10)
	ops := f.ops(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicted := 0, 0
	for _, op := range ops {
		wg.Add(1)
		go func(op *entities.Operation) {
			defer wg.Done()
			err := f.schedule(op, testhelpers.At(8, 0), testhelpers.At(12, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrConflict):
				conflicted++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(op)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("Expected exactly 1 commit, got %d", succeeded)
	}
	if conflicted != len(ops)-1 {
		t.Errorf("Expected %d conflicts, got %d", len(ops)-1, conflicted)
	}
}

func TestScheduler_ResourceAvailability(t *testing.T) {
	f := newFixture(t, 3)
	ops := f.ops(t)
	ctx := context.Background()

	if err := f.schedule(ops[0], testhelpers.At(8, 0), testhelpers.At(9, 0)); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := f.schedule(ops[1], testhelpers.At(10, 0), testhelpers.At(11, 0)); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	free, blocking, err := f.scheduler.CheckResourceAvailableNow(ctx, f.Printer.ID)
	if err != nil || !free || blocking != nil {
		t.Fatalf("Expected free resource, got %v, %v, %v", free, blocking, err)
	}

	running, _ := f.Production.GetOperation(ctx, f.run.ID, ops[0].ID)
	running.Status = entities.OperationRunning
	_ = f.Production.SaveTransition(ctx, f.run, running)

	free, blocking, err = f.scheduler.CheckResourceAvailableNow(ctx, f.Printer.ID)
	if err != nil {
		t.Fatalf("CheckResourceAvailableNow failed: %v", err)
	}
	if free || blocking == nil || blocking.ID != ops[0].ID {
		t.Errorf("Expected resource blocked by first operation, got %v, %v", free, blocking)
	}

	from, to := testhelpers.At(9, 30), testhelpers.At(12, 0)
	schedule, err := f.scheduler.GetResourceSchedule(ctx, f.Printer.ID, &from, &to)
	if err != nil {
		t.Fatalf("GetResourceSchedule failed: %v", err)
	}
	if len(schedule.Operations) != 1 || schedule.Operations[0].ID != ops[1].ID {
		t.Errorf("Expected only the second operation in window, got %d", len(schedule.Operations))
	}

	full, _ := f.scheduler.GetResourceSchedule(ctx, f.Printer.ID, nil, nil)
	if len(full.Operations) != 2 || full.Operations[0].ID != ops[0].ID {
		t.Errorf("Expected 2 operations ordered by start, got %d", len(full.Operations))
	}
}

func TestScheduler_FindNextAvailableSlot(t *testing.T) {
	f := newFixture(t, 2)
	ops := f.ops(t)
	ctx := context.Background()

	_ = f.schedule(ops[0], testhelpers.At(8, 0), testhelpers.At(10, 0))
	_ = f.schedule(ops[1], testhelpers.At(11, 0), testhelpers.At(12, 0))

	tests := []struct {
		name     string
		duration time.Duration
		after    time.Time
		expected time.Time
	}{
		{"before first", 30 * time.Minute, testhelpers.At(7, 0), testhelpers.At(7, 0)},
		{"gap fits", time.Hour, testhelpers.At(9, 0), testhelpers.At(10, 0)},
		{"gap too small", 2 * time.Hour, testhelpers.At(9, 0), testhelpers.At(12, 0)},
		{"after everything", time.Hour, testhelpers.At(13, 0), testhelpers.At(13, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := f.scheduler.FindNextAvailableSlot(ctx, f.Printer.ID, tt.duration, tt.after)
			if err != nil {
				t.Fatalf("FindNextAvailableSlot failed: %v", err)
			}
			if !slot.Equal(tt.expected) {
				t.Errorf("Expected %s, got %s", tt.expected, slot)
			}
		})
	}
}

// steppingResources runs step once, on the first resource lookup
type steppingResources struct {
	repositories.ResourceRepository
	step func()
}

func (r *steppingResources) GetResource(ctx context.Context, id uuid.UUID) (*entities.Resource, error) {
	if step := r.step; step != nil {
		r.step = nil
		step()
	}
	return r.ResourceRepository.GetResource(ctx, id)
}

func TestScheduler_ScheduleKeepsTransitionCommittedMeanwhile(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	op := f.ops(t)[0]

	resources := &steppingResources{ResourceRepository: f.Production}
	scheduler := NewScheduler(Repositories{
		Runs:       f.Production,
		Operations: f.Production,
		Resources:  resources,
	}, locking.NewKeyedMutex(), f.store, nil)

	// the operation starts after Schedule has read it as pending
	resources.step = func() {
		running, _ := f.Production.GetOperation(ctx, f.run.ID, op.ID)
		running.Status = entities.OperationRunning
		now := testhelpers.At(7, 55)
		running.ActualStart = &now
		f.run.Status = entities.RunInProgress
		if err := f.Production.SaveTransition(ctx, f.run, running); err != nil {
			t.Errorf("SaveTransition failed: %v", err)
		}
	}

	_, err := scheduler.Schedule(ctx, ScheduleRequest{
		RunID: f.run.ID, OperationID: op.ID, ResourceID: f.Printer.ID,
		Start: testhelpers.At(8, 0), End: testhelpers.At(9, 0),
	})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("Expected invalid state once the operation is running, got %v", err)
	}

	stored, _ := f.Production.GetOperation(ctx, f.run.ID, op.ID)
	if stored.Status != entities.OperationRunning || stored.ActualStart == nil {
		t.Errorf("Expected operation to stay running, got %s", stored.Status)
	}
	if stored.ResourceID != nil {
		t.Error("Expected no window to be written")
	}
}

func TestScheduler_ScheduleRefusesFinishedRuns(t *testing.T) {
	ctx := context.Background()

	for _, status := range []entities.RunStatus{entities.RunComplete, entities.RunCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, 1)
			op := f.ops(t)[0]
			f.run.Status = status
			if err := f.Production.SaveRun(ctx, f.run); err != nil {
				t.Fatalf("SaveRun failed: %v", err)
			}

			if err := f.schedule(op, testhelpers.At(8, 0), testhelpers.At(9, 0)); !errors.Is(err, apperr.ErrInvalidState) {
				t.Errorf("Expected invalid state for a %s run, got %v", status, err)
			}
			stored, _ := f.Production.GetOperation(ctx, f.run.ID, op.ID)
			if stored.Status != entities.OperationPending || stored.ResourceID != nil {
				t.Errorf("Expected operation untouched, got %s", stored.Status)
			}
		})
	}
}
