package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/domain/services"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// Repositories groups what the gate reads
type Repositories struct {
	Runs       repositories.RunRepository
	Operations repositories.OperationRepository
	Products   repositories.ProductRepository
	BOMs       repositories.BOMRepository
	Inventory  repositories.InventoryRepository
	Supply     repositories.SupplyRepository
}

// MaterialGate decides whether an operation has the material consumed at its stages.
// Only on-hand minus allocated counts; incoming supply is attached to each line for
// information but never covers a shortage.
type MaterialGate struct {
	classifier *services.StageClassifier
	repos      Repositories
	logger     *logging.Logger
}

// NewMaterialGate creates a gate over an injected stage classifier
func NewMaterialGate(classifier *services.StageClassifier, repos Repositories, logger *logging.Logger) *MaterialGate {
	if classifier == nil {
		classifier = services.NewDefaultStageClassifier()
	}
	return &MaterialGate{
		classifier: classifier,
		repos:      repos,
		logger:     logging.OrNop(logger),
	}
}

// CanStart loads the run and operation and checks material for the operation
func (g *MaterialGate) CanStart(ctx context.Context, runID, opID uuid.UUID) (*dto.GateResult, error) {
	run, err := g.repos.Runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	op, err := g.repos.Operations.GetOperation(ctx, runID, opID)
	if err != nil {
		return nil, err
	}
	return g.Check(ctx, run, op)
}

// Check evaluates an already loaded operation of run
func (g *MaterialGate) Check(ctx context.Context, run *entities.ProductionRun, op *entities.Operation) (*dto.GateResult, error) {
	if op.RunID != run.ID {
		return nil, apperr.NotFound("operation", op.ID)
	}

	stages := g.classifier.StagesFor(op.OperationCode)
	result := &dto.GateResult{
		OperationID: op.ID,
		OK:          true,
		Stages:      stages,
	}

	bom, err := g.resolveBOM(ctx, run)
	if err != nil {
		return nil, err
	}
	lines := bom.LinesForStages(stages)
	if len(lines) == 0 {
		return result, nil
	}

	remaining := run.RemainingQuantity()
	if !remaining.IsPositive() {
		return result, nil
	}

	for _, line := range lines {
		detail, err := g.checkLine(ctx, line, remaining)
		if err != nil {
			return nil, err
		}
		result.Materials = append(result.Materials, *detail)
		if detail.Short.IsPositive() {
			result.Issues = append(result.Issues, *detail)
		}
	}
	result.OK = len(result.Issues) == 0

	if !result.OK {
		g.logger.Debug("operation blocked on material",
			"run_id", run.ID,
			"operation_id", op.ID,
			"operation_code", op.OperationCode,
			"short_count", len(result.Issues),
		)
	}

	return result, nil
}

func (g *MaterialGate) resolveBOM(ctx context.Context, run *entities.ProductionRun) (*entities.BOM, error) {
	if run.BOMID != nil {
		bom, err := g.repos.BOMs.GetBOMByID(ctx, *run.BOMID)
		if err != nil {
			return nil, fmt.Errorf("failed to get BOM %s: %w", *run.BOMID, err)
		}
		return bom, nil
	}
	bom, err := g.repos.BOMs.GetBOM(ctx, run.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get BOM for product %s: %w", run.ProductID, err)
	}
	return bom, nil
}

func (g *MaterialGate) checkLine(
	ctx context.Context,
	line *entities.BOMLine,
	remaining decimal.Decimal,
) (*entities.ShortageDetail, error) {
	required := line.EffectiveQuantity(remaining)

	pos, err := g.repos.Inventory.GetInventoryPosition(ctx, line.ComponentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory for %s: %w", line.ComponentID, err)
	}
	available, short := entities.Net(required, pos.Available())

	detail := &entities.ShortageDetail{
		ProductID:    line.ComponentID,
		SKU:          line.ComponentID.String(),
		Required:     required,
		Available:    available,
		Short:        short,
		Unit:         line.Unit,
		ConsumeStage: line.ConsumeStage,
	}

	product, err := g.repos.Products.GetProduct(ctx, line.ComponentID)
	switch {
	case err == nil:
		detail.SKU = product.SKU
		detail.Name = product.Name
		if detail.Unit == "" {
			detail.Unit = product.StorageUnit
		}
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("failed to get component %s: %w", line.ComponentID, err)
	}

	supply, err := g.repos.Supply.GetIncomingSupply(ctx, line.ComponentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get incoming supply for %s: %w", detail.SKU, err)
	}
	detail.IncomingSupply = entities.NearestIncoming(supply)

	return detail, nil
}
