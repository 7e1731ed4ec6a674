package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

var terminalStatuses = []string{string(entities.OperationComplete), string(entities.OperationSkipped)}

// ProductionRepository stores runs, operations and resources. Multi-row writes
// run in one transaction.
type ProductionRepository struct {
	db *gorm.DB
}

func NewProductionRepository(db *gorm.DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

var _ repositories.RunRepository = (*ProductionRepository)(nil)
var _ repositories.OperationRepository = (*ProductionRepository)(nil)
var _ repositories.ResourceRepository = (*ProductionRepository)(nil)

func (r *ProductionRepository) GetRun(ctx context.Context, id uuid.UUID) (*entities.ProductionRun, error) {
	var m RunModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("production run", id)
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return runFromModel(&m), nil
}

func (r *ProductionRepository) GetRunByNumber(ctx context.Context, runNumber string) (*entities.ProductionRun, error) {
	var m RunModel
	err := r.db.WithContext(ctx).
		Where("UPPER(run_number) = ?", strings.ToUpper(strings.TrimSpace(runNumber))).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "production run", ID: runNumber}
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runNumber, err)
	}
	return runFromModel(&m), nil
}

// ListRuns returns every run ordered by run number
func (r *ProductionRepository) ListRuns(ctx context.Context) ([]*entities.ProductionRun, error) {
	var models []RunModel
	if err := r.db.WithContext(ctx).Order("run_number").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]*entities.ProductionRun, 0, len(models))
	for i := range models {
		out = append(out, runFromModel(&models[i]))
	}
	return out, nil
}

func (r *ProductionRepository) SaveRun(ctx context.Context, run *entities.ProductionRun) error {
	m := runToModel(run)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RunModel
		err := tx.Select("created_at").First(&existing, "id = ?", run.ID).Error
		switch {
		case err == nil:
			m.CreatedAt = existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Save(&m).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveRelease updates the run and inserts ops in one transaction
func (r *ProductionRepository) SaveRelease(
	ctx context.Context,
	run *entities.ProductionRun,
	ops []*entities.Operation,
	replace bool,
) error {
	for _, op := range ops {
		if op.RunID != run.ID {
			return fmt.Errorf("operation %s belongs to run %s, not %s", op.ID, op.RunID, run.ID)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RunModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&existing, "id = ?", run.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("production run", run.ID)
		}
		if err != nil {
			return err
		}

		if replace {
			if err := tx.Where("run_id = ?", run.ID).Delete(&OperationModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete operations of run %s: %w", run.ID, err)
			}
		}
		if len(ops) > 0 {
			models := make([]OperationModel, 0, len(ops))
			for _, op := range ops {
				models = append(models, operationToModel(op))
			}
			if err := tx.Create(&models).Error; err != nil {
				return fmt.Errorf("failed to create operations of run %s: %w", run.ID, err)
			}
		}

		m := runToModel(run)
		m.CreatedAt = existing.CreatedAt
		return tx.Save(&m).Error
	})
}

// SaveTransition updates an operation and its run in one transaction
func (r *ProductionRepository) SaveTransition(ctx context.Context, run *entities.ProductionRun, op *entities.Operation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing OperationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&existing, "id = ? AND run_id = ?", op.ID, run.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("operation", op.ID)
		}
		if err != nil {
			return err
		}

		opModel := operationToModel(op)
		opModel.CreatedAt = existing.CreatedAt
		opModel.ResourceID = existing.ResourceID
		opModel.ScheduledStart = existing.ScheduledStart
		opModel.ScheduledEnd = existing.ScheduledEnd
		if err := tx.Save(&opModel).Error; err != nil {
			return fmt.Errorf("failed to save operation %s: %w", op.ID, err)
		}
		runModel := runToModel(run)
		if err := tx.Omit("created_at").Save(&runModel).Error; err != nil {
			return fmt.Errorf("failed to save run %s: %w", run.ID, err)
		}
		return nil
	})
}

func (r *ProductionRepository) GetOperation(ctx context.Context, runID, opID uuid.UUID) (*entities.Operation, error) {
	var m OperationModel
	if err := r.db.WithContext(ctx).First(&m, "id = ? AND run_id = ?", opID, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("operation", opID)
		}
		return nil, fmt.Errorf("failed to get operation %s: %w", opID, err)
	}
	return operationFromModel(&m), nil
}

func (r *ProductionRepository) ListOperations(ctx context.Context, runID uuid.UUID) ([]*entities.Operation, error) {
	var models []OperationModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("sequence").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list operations of run %s: %w", runID, err)
	}
	return operationsFromModels(models), nil
}

func (r *ProductionRepository) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*entities.Operation, error) {
	var models []OperationModel
	err := r.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("scheduled_start IS NULL, scheduled_start, sequence").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list operations on resource %s: %w", resourceID, err)
	}
	return operationsFromModels(models), nil
}

// AssignIfFree locks the resource and operation rows, re-checks the
// operation's status and the resource's non-terminal timeline, and writes the
// assignment only when the operation is schedulable and nothing overlaps
func (r *ProductionRepository) AssignIfFree(ctx context.Context, a repositories.Assignment) ([]*entities.Operation, error) {
	var conflicts []*entities.Operation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var resource ResourceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&resource, "id = ?", a.ResourceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("resource", a.ResourceID)
		}
		if err != nil {
			return err
		}

		var op OperationModel
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&op, "id = ? AND run_id = ?", a.OperationID, a.RunID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("operation", a.OperationID)
		}
		if err != nil {
			return err
		}
		current := entities.OperationStatus(op.Status)
		status, ok := current.ScheduledStatus()
		if !ok {
			return apperr.InvalidState("operation", op.ID, op.Status, string(entities.OperationQueued),
				fmt.Sprintf("cannot schedule a %s operation", current))
		}

		var timeline []OperationModel
		err = tx.Where("resource_id = ? AND id <> ? AND status NOT IN ?", a.ResourceID, a.OperationID, terminalStatuses).
			Order("scheduled_start").
			Find(&timeline).Error
		if err != nil {
			return err
		}

		proposed := entities.Interval{Start: a.Start, End: a.End}
		for _, other := range operationsFromModels(timeline) {
			if window, ok := other.Interval(); ok && window.Overlaps(proposed) {
				conflicts = append(conflicts, other)
			}
		}
		if len(conflicts) > 0 {
			return nil
		}

		updates := map[string]interface{}{
			"resource_id":     a.ResourceID,
			"scheduled_start": a.Start,
			"scheduled_end":   a.End,
			"status":          string(status),
		}
		return tx.Model(&OperationModel{}).Where("id = ?", a.OperationID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *ProductionRepository) GetResource(ctx context.Context, id uuid.UUID) (*entities.Resource, error) {
	var m ResourceModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("resource", id)
		}
		return nil, fmt.Errorf("failed to get resource %s: %w", id, err)
	}
	return resourceFromModel(&m), nil
}

func (r *ProductionRepository) GetResourceByCode(ctx context.Context, code string) (*entities.Resource, error) {
	var m ResourceModel
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "resource", ID: code}
		}
		return nil, fmt.Errorf("failed to get resource %s: %w", code, err)
	}
	return resourceFromModel(&m), nil
}

func (r *ProductionRepository) ListResources(ctx context.Context) ([]*entities.Resource, error) {
	var models []ResourceModel
	if err := r.db.WithContext(ctx).Order("code").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	out := make([]*entities.Resource, 0, len(models))
	for i := range models {
		out = append(out, resourceFromModel(&models[i]))
	}
	return out, nil
}

// SaveResource creates or replaces a resource
func (r *ProductionRepository) SaveResource(ctx context.Context, res *entities.Resource) error {
	m := resourceToModel(res)
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("failed to save resource %s: %w", res.Code, err)
	}
	return nil
}
