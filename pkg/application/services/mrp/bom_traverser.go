package mrp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

// DefaultMaxDepth bounds BOM nesting when no limit is configured
const DefaultMaxDepth = 64

// BOMNodeContext provides context information during BOM traversal
type BOMNodeContext struct {
	Product        *entities.Product
	Line           *entities.BOMLine // nil for the root
	Quantity       decimal.Decimal
	Level          int
	ParentID       uuid.UUID
	Path           []uuid.UUID // root first, ending with Product
	LeadOffsetDays int         // summed lead time of every ancestor
}

// BOMNodeVisitor defines the interface for processing nodes during BOM traversal
type BOMNodeVisitor interface {
	// VisitNode is called for each node in the BOM structure
	// Returns data to be passed to children and whether to continue traversal
	VisitNode(ctx context.Context, nodeCtx BOMNodeContext) (interface{}, bool, error)

	// ProcessChildren is called after visiting all children
	// Receives the node context, data from VisitNode, and results from children
	ProcessChildren(
		ctx context.Context,
		nodeCtx BOMNodeContext,
		nodeData interface{},
		childResults []interface{},
	) (interface{}, error)
}

// BOMTraverser walks active BOMs depth first, tracking the products currently
// being expanded so a revisit surfaces as a structural error
type BOMTraverser struct {
	productRepo repositories.ProductRepository
	bomRepo     repositories.BOMRepository
	maxDepth    int
}

// NewBOMTraverser creates a new BOM traverser
func NewBOMTraverser(
	productRepo repositories.ProductRepository,
	bomRepo repositories.BOMRepository,
	maxDepth int,
) *BOMTraverser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &BOMTraverser{
		productRepo: productRepo,
		bomRepo:     bomRepo,
		maxDepth:    maxDepth,
	}
}

// TraverseBOM visits root and every component reachable through active BOMs
func (bt *BOMTraverser) TraverseBOM(
	ctx context.Context,
	root *entities.Product,
	quantity decimal.Decimal,
	visitor BOMNodeVisitor,
) (interface{}, error) {
	nodeCtx := BOMNodeContext{
		Product:  root,
		Quantity: quantity,
		Path:     []uuid.UUID{root.ID},
	}
	expanding := map[uuid.UUID]bool{root.ID: true}
	return bt.traverse(ctx, nodeCtx, expanding, visitor)
}

func (bt *BOMTraverser) traverse(
	ctx context.Context,
	nodeCtx BOMNodeContext,
	expanding map[uuid.UUID]bool,
	visitor BOMNodeVisitor,
) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if nodeCtx.Level > bt.maxDepth {
		return nil, &apperr.StructuralError{
			ProductID: nodeCtx.Path[0],
			Path:      copyPath(nodeCtx.Path),
			Reason:    fmt.Sprintf("BOM depth exceeds %d levels", bt.maxDepth),
		}
	}

	nodeData, shouldContinue, err := visitor.VisitNode(ctx, nodeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to visit node %s: %w", nodeCtx.Product.SKU, err)
	}

	if !shouldContinue {
		return visitor.ProcessChildren(ctx, nodeCtx, nodeData, nil)
	}

	bom, err := bt.bomRepo.GetBOM(ctx, nodeCtx.Product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get BOM for %s: %w", nodeCtx.Product.SKU, err)
	}
	if bom == nil {
		return visitor.ProcessChildren(ctx, nodeCtx, nodeData, nil)
	}

	lines := bom.PhysicalLines()
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Sequence < lines[j].Sequence })

	var childResults []interface{}
	for _, line := range lines {
		childPath := append(copyPath(nodeCtx.Path), line.ComponentID)

		if expanding[line.ComponentID] {
			return nil, &apperr.StructuralError{
				ProductID: line.ComponentID,
				Path:      childPath,
				Reason:    "cycle detected",
			}
		}

		child, err := bt.productRepo.GetProduct(ctx, line.ComponentID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, &apperr.StructuralError{
					ProductID: nodeCtx.Product.ID,
					Path:      childPath,
					Reason:    fmt.Sprintf("BOM line references unknown component %s", line.ComponentID),
				}
			}
			return nil, fmt.Errorf("failed to get component %s: %w", line.ComponentID, err)
		}

		childCtx := BOMNodeContext{
			Product:        child,
			Line:           line,
			Quantity:       line.EffectiveQuantity(nodeCtx.Quantity),
			Level:          nodeCtx.Level + 1,
			ParentID:       nodeCtx.Product.ID,
			Path:           childPath,
			LeadOffsetDays: nodeCtx.LeadOffsetDays + nodeCtx.Product.LeadTimeDays,
		}

		expanding[child.ID] = true
		childResult, err := bt.traverse(ctx, childCtx, expanding, visitor)
		delete(expanding, child.ID)
		if err != nil {
			return nil, err
		}

		childResults = append(childResults, childResult)
	}

	return visitor.ProcessChildren(ctx, nodeCtx, nodeData, childResults)
}

func copyPath(path []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(path), len(path)+1)
	copy(out, path)
	return out
}
