package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

func seedRun(t *testing.T, repo *ProductionRepository, number string, opCount int) (*entities.ProductionRun, []*entities.Operation) {
	t.Helper()
	run, err := entities.NewProductionRun(number, entities.NaturalID("product", "WIDGET"), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if err := repo.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
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
	return run, ops
}

func TestProductionRepository_SaveReleaseReplace(t *testing.T) {
	ctx := context.Background()
	repo := NewProductionRepository()
	run, stale := seedRun(t, repo, "RUN-1", 3)

	run.Status = entities.RunReleased
	if err := repo.SaveRelease(ctx, run, stale, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	_, fresh := seedRun(t, repo, "RUN-1", 2)
	if err := repo.SaveRelease(ctx, run, fresh, true); err != nil {
		t.Fatalf("SaveRelease replace failed: %v", err)
	}

	ops, err := repo.ListOperations(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Expected 2 operations after replace, got %d", len(ops))
	}
	for _, op := range ops {
		for _, old := range stale {
			if op.ID == old.ID {
				t.Errorf("Expected stale operation %s to be removed", old.ID)
			}
		}
	}

	stored, _ := repo.GetRun(ctx, run.ID)
	if stored.Status != entities.RunReleased {
		t.Errorf("Expected released run, got %s", stored.Status)
	}
}

func TestProductionRepository_GetOperationChecksParent(t *testing.T) {
	ctx := context.Background()
	repo := NewProductionRepository()
	run, ops := seedRun(t, repo, "RUN-1", 1)
	other, _ := seedRun(t, repo, "RUN-2", 0)
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	if _, err := repo.GetOperation(ctx, run.ID, ops[0].ID); err != nil {
		t.Fatalf("Expected operation to be found: %v", err)
	}
	if _, err := repo.GetOperation(ctx, other.ID, ops[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for mismatched run, got %v", err)
	}
}

func TestProductionRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewProductionRepository()
	run, ops := seedRun(t, repo, "RUN-1", 1)
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	op, _ := repo.GetOperation(ctx, run.ID, ops[0].ID)
	op.Status = entities.OperationComplete

	again, _ := repo.GetOperation(ctx, run.ID, ops[0].ID)
	if again.Status != entities.OperationPending {
		t.Errorf("Expected stored operation to be unaffected, got %s", again.Status)
	}
}

func TestProductionRepository_AssignIfFreeConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewProductionRepository()
	resource, _ := entities.NewResource("PRINTER-1", "", nil)
	repo.AddResource(resource)

	run, ops := seedRun(t, repo, "RUN-1", 8)
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	start := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for _, op := range ops {
		wg.Add(1)
		go func(op *entities.Operation) {
			defer wg.Done()
			conflicts, err := repo.AssignIfFree(ctx, repositories.Assignment{
				OperationID: op.ID,
				RunID:       run.ID,
				ResourceID:  resource.ID,
				Start:       start,
				End:         start.Add(2 * time.Hour),
			})
			if err != nil {
				t.Errorf("AssignIfFree failed: %v", err)
				return
			}
			if len(conflicts) == 0 {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}(op)
	}
	wg.Wait()

	if committed != 1 {
		t.Fatalf("Expected exactly one assignment to commit, got %d", committed)
	}
	scheduled, _ := repo.ListByResource(ctx, resource.ID)
	if len(scheduled) != 1 {
		t.Errorf("Expected one operation on the resource, got %d", len(scheduled))
	}
	if scheduled[0].Status != entities.OperationQueued {
		t.Errorf("Expected queued status, got %s", scheduled[0].Status)
	}
}

func TestProductionRepository_AssignIfFreeSkipsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewProductionRepository()
	resource, _ := entities.NewResource("PRINTER-1", "", nil)
	repo.AddResource(resource)

	run, ops := seedRun(t, repo, "RUN-1", 2)
	start := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	resID := resource.ID
	ops[0].Status = entities.OperationComplete
	ops[0].ResourceID = &resID
	ops[0].ScheduledStart = &start
	ops[0].ScheduledEnd = &end
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	conflicts, err := repo.AssignIfFree(ctx, repositories.Assignment{
		OperationID: ops[1].ID,
		RunID:       run.ID,
		ResourceID:  resource.ID,
		Start:       start.Add(time.Hour),
		End:         end,
	})
	if err != nil {
		t.Fatalf("AssignIfFree failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("Expected completed operation to be ignored, got %d conflicts", len(conflicts))
	}

	if _, err := repo.AssignIfFree(ctx, repositories.Assignment{OperationID: ops[1].ID, RunID: run.ID, ResourceID: uuid.New()}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for unknown resource, got %v", err)
	}
}

func TestProductionRepository_AssignIfFreeChecksStatusAtCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewProductionRepository()
	resource, _ := entities.NewResource("PRINTER-1", "", nil)
	repo.AddResource(resource)

	run, ops := seedRun(t, repo, "RUN-1", 2)
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}
	start := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	assign := func(op *entities.Operation, from time.Time) error {
		_, err := repo.AssignIfFree(ctx, repositories.Assignment{
			OperationID: op.ID, RunID: run.ID, ResourceID: resource.ID, Start: from, End: from.Add(time.Hour),
		})
		return err
	}

	if err := assign(ops[0], start); err != nil {
		t.Fatalf("AssignIfFree failed: %v", err)
	}
	queued, _ := repo.GetOperation(ctx, run.ID, ops[0].ID)
	if queued.Status != entities.OperationQueued {
		t.Errorf("Expected pending to become queued, got %s", queued.Status)
	}

	// ops[0] still carries no window; the transition must not erase the stored one
	ops[0].Status = entities.OperationRunning
	if err := repo.SaveTransition(ctx, run, ops[0]); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}
	running, _ := repo.GetOperation(ctx, run.ID, ops[0].ID)
	if running.ResourceID == nil || running.ScheduledStart == nil || !running.ScheduledStart.Equal(start) {
		t.Errorf("Expected transition to keep the assigned window, got %v", running.ScheduledStart)
	}

	if err := assign(ops[0], start.Add(4*time.Hour)); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("Expected invalid state for a running operation, got %v", err)
	}
	running, _ = repo.GetOperation(ctx, run.ID, ops[0].ID)
	if running.Status != entities.OperationRunning || !running.ScheduledStart.Equal(start) {
		t.Errorf("Expected running operation untouched, got %s at %v", running.Status, running.ScheduledStart)
	}

	ops[1].Status = entities.OperationSkipped
	if err := repo.SaveTransition(ctx, run, ops[1]); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}
	if err := assign(ops[1], start.Add(2*time.Hour)); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("Expected invalid state for a skipped operation, got %v", err)
	}
}
