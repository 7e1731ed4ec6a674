package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/infrastructure/config"
	scenario "github.com/vsinha/prodplan/pkg/infrastructure/repositories/csv"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedScenario(t *testing.T, db *gorm.DB) *scenario.Dataset {
	t.Helper()
	ds, err := scenario.NewLoader().LoadDir(filepath.Join("..", "csv", "testdata", "filament-box"))
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if err := Seed(context.Background(), db, ds); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return ds
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestCatalogRepository_SeededScenario(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedScenario(t, db)
	repo := NewCatalogRepository(db)

	widget, err := repo.GetProductBySKU(ctx, "widget")
	if err != nil {
		t.Fatalf("GetProductBySKU failed: %v", err)
	}
	if !widget.HasBOM || widget.LeadTimeDays != 2 {
		t.Errorf("Expected make product with lead time 2, got %+v", widget)
	}

	bom, err := repo.GetBOM(ctx, widget.ID)
	if err != nil || bom == nil {
		t.Fatalf("GetBOM failed: %v", err)
	}
	if len(bom.Lines) != 3 {
		t.Fatalf("Expected 3 BOM lines, got %d", len(bom.Lines))
	}
	if !bom.Lines[0].Quantity.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected filament quantity 0.5, got %s", bom.Lines[0].Quantity)
	}
	if bom.Lines[1].ConsumeStage != entities.StageShipping || !bom.Lines[2].IsCostOnly {
		t.Error("Expected stage and cost-only flags to round-trip")
	}

	routing, err := repo.GetRouting(ctx, widget.ID)
	if err != nil || routing == nil {
		t.Fatalf("GetRouting failed: %v", err)
	}
	if len(routing.Operations) != 2 || routing.Operations[0].OperationCode != "PRINT" {
		t.Errorf("Expected PRINT then PACK, got %d steps", len(routing.Operations))
	}

	box, _ := repo.GetProductBySKU(ctx, "BOX-SMALL")
	if b, err := repo.GetBOM(ctx, box.ID); err != nil || b != nil {
		t.Errorf("Expected nil BOM for a purchased part, got %v, %v", b, err)
	}
	if _, err := repo.GetProduct(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestCatalogRepository_ActiveVersionSwitch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ds := seedScenario(t, db)
	repo := NewCatalogRepository(db)

	original := ds.Routings[0]
	next := &entities.Routing{ID: uuid.New(), ProductID: original.ProductID, Version: "2", IsActive: true}
	step, _ := entities.NewRoutingOperation(next.ID, 10, "MOLD", "", decimal.Zero, decimal.NewFromInt(1))
	next.Operations = []*entities.RoutingOperation{step}
	if err := repo.SaveRouting(ctx, next); err != nil {
		t.Fatalf("SaveRouting failed: %v", err)
	}

	active, err := repo.GetRouting(ctx, original.ProductID)
	if err != nil {
		t.Fatalf("GetRouting failed: %v", err)
	}
	if active.ID != next.ID {
		t.Errorf("Expected version 2 to be active, got %s", active.Version)
	}
	old, err := repo.GetRoutingByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetRoutingByID failed: %v", err)
	}
	if old.IsActive {
		t.Error("Expected version 1 to be deactivated")
	}
}

func TestProductionRepository_ReleaseAndTransition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedScenario(t, db)
	repo := NewProductionRepository(db)

	run, err := repo.GetRunByNumber(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRunByNumber failed: %v", err)
	}
	if run.Status != entities.RunDraft || run.DueDate == nil {
		t.Errorf("Expected draft run with due date, got %s", run.Status)
	}

	ops := []*entities.Operation{
		{ID: uuid.New(), RunID: run.ID, Sequence: 20, OperationCode: "PACK", Status: entities.OperationPending},
		{ID: uuid.New(), RunID: run.ID, Sequence: 10, OperationCode: "PRINT", Status: entities.OperationPending,
			PlannedRunMinutes: decimal.NewFromInt(200)},
	}
	run.Status = entities.RunReleased
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	listed, err := repo.ListOperations(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(listed) != 2 || listed[0].OperationCode != "PRINT" {
		t.Fatalf("Expected operations ordered by sequence, got %d", len(listed))
	}
	if !listed[0].PlannedRunMinutes.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected planned run 200, got %s", listed[0].PlannedRunMinutes)
	}

	printOp := listed[0]
	printOp.Status = entities.OperationRunning
	now := time.Now().UTC()
	printOp.ActualStart = &now
	run.Status = entities.RunInProgress
	if err := repo.SaveTransition(ctx, run, printOp); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}
	stored, _ := repo.GetRun(ctx, run.ID)
	if stored.Status != entities.RunInProgress {
		t.Errorf("Expected in_progress, got %s", stored.Status)
	}

	foreign := &entities.Operation{ID: uuid.New(), RunID: run.ID}
	if err := repo.SaveTransition(ctx, run, foreign); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for unknown operation, got %v", err)
	}

	replacement := []*entities.Operation{{ID: uuid.New(), RunID: run.ID, Sequence: 10, OperationCode: "MOLD", Status: entities.OperationPending}}
	if err := repo.SaveRelease(ctx, run, replacement, true); err != nil {
		t.Fatalf("SaveRelease(replace) failed: %v", err)
	}
	listed, _ = repo.ListOperations(ctx, run.ID)
	if len(listed) != 1 || listed[0].ID != replacement[0].ID {
		t.Errorf("Expected only the replacement operation, got %d", len(listed))
	}
}

func TestProductionRepository_AssignIfFree(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedScenario(t, db)
	repo := NewProductionRepository(db)

	run, _ := repo.GetRunByNumber(ctx, "RUN-1")
	printer, err := repo.GetResourceByCode(ctx, "printer-1")
	if err != nil {
		t.Fatalf("GetResourceByCode failed: %v", err)
	}

	var ops []*entities.Operation
	for i := 1; i <= 6; i++ {
		ops = append(ops, &entities.Operation{ID: uuid.New(), RunID: run.ID, Sequence: i * 10, OperationCode: "PRINT", Status: entities.OperationPending})
	}
	if err := repo.SaveRelease(ctx, run, ops, false); err != nil {
		t.Fatalf("SaveRelease failed: %v", err)
	}

	start := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	var wg sync.WaitGroup
	results := make([][]*entities.Operation, len(ops))
	errs := make([]error, len(ops))
	for i, op := range ops {
		i, op := i, op
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = repo.AssignIfFree(ctx, repositories.Assignment{
				OperationID: op.ID, RunID: run.ID, ResourceID: printer.ID,
				Start: start, End: end,
			})
		}()
	}
	wg.Wait()

	committed := 0
	for i := range ops {
		if errs[i] != nil {
			t.Fatalf("AssignIfFree failed: %v", errs[i])
		}
		if len(results[i]) == 0 {
			committed++
		}
	}
	if committed != 1 {
		t.Errorf("Expected exactly 1 committed assignment, got %d", committed)
	}

	timeline, _ := repo.ListByResource(ctx, printer.ID)
	if len(timeline) != 1 || timeline[0].Status != entities.OperationQueued {
		t.Fatalf("Expected one queued operation on the printer, got %d", len(timeline))
	}

	other := ops[0]
	if other.ID == timeline[0].ID {
		other = ops[1]
	}
	adjacent, err := repo.AssignIfFree(ctx, repositories.Assignment{
		OperationID: other.ID, RunID: run.ID, ResourceID: printer.ID, Start: end, End: end.Add(time.Hour),
	})
	if err != nil || len(adjacent) != 0 {
		t.Errorf("Expected adjacent window to be free, got %d conflicts, %v", len(adjacent), err)
	}

	if _, err := repo.AssignIfFree(ctx, repositories.Assignment{
		OperationID: ops[0].ID, RunID: run.ID, ResourceID: uuid.New(), Start: start, End: end,
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for unknown resource, got %v", err)
	}

	// a transition written from a copy read before the assignment keeps the window
	stale := ops[0]
	if stale.ID != timeline[0].ID {
		stale = ops[1]
	}
	stale.ResourceID, stale.ScheduledStart, stale.ScheduledEnd = nil, nil, nil
	stale.Status = entities.OperationRunning
	run.Status = entities.RunInProgress
	if err := repo.SaveTransition(ctx, run, stale); err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}
	running, _ := repo.GetOperation(ctx, run.ID, stale.ID)
	if running.ResourceID == nil || *running.ResourceID != printer.ID || running.ScheduledStart == nil {
		t.Errorf("Expected transition to keep the printer window, got %v", running.ResourceID)
	}

	_, err = repo.AssignIfFree(ctx, repositories.Assignment{
		OperationID: stale.ID, RunID: run.ID, ResourceID: printer.ID, Start: end.Add(2 * time.Hour), End: end.Add(3 * time.Hour),
	})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("Expected invalid state for a running operation, got %v", err)
	}
	running, _ = repo.GetOperation(ctx, run.ID, stale.ID)
	if running.Status != entities.OperationRunning || !running.ScheduledStart.Equal(start) {
		t.Errorf("Expected running operation untouched, got %s at %v", running.Status, running.ScheduledStart)
	}
}

func TestSeed_KeepsRunProgress(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ds := seedScenario(t, db)
	repo := NewProductionRepository(db)

	run, _ := repo.GetRunByNumber(ctx, "RUN-1")
	run.Status = entities.RunReleased
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	if err := Seed(ctx, db, ds); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	again, _ := repo.GetRunByNumber(ctx, "RUN-1")
	if again.Status != entities.RunReleased {
		t.Errorf("Expected reseed to keep run status released, got %s", again.Status)
	}

	var stockRows int64
	db.Model(&InventoryModel{}).Count(&stockRows)
	if stockRows != int64(len(ds.Stock)) {
		t.Errorf("Expected %d stock rows after reseed, got %d", len(ds.Stock), stockRows)
	}
}
