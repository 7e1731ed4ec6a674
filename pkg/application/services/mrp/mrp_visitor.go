package mrp

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// ExplosionVisitor implements BOMNodeVisitor, aggregating gross quantities
// per component across every path below the root
type ExplosionVisitor struct {
	components map[uuid.UUID]*componentTotal
	order      []uuid.UUID
}

type componentTotal struct {
	product        *entities.Product
	gross          decimal.Decimal
	level          int
	leadOffsetDays int
	parentID       uuid.UUID
}

// NewExplosionVisitor creates a new explosion visitor
func NewExplosionVisitor() *ExplosionVisitor {
	return &ExplosionVisitor{
		components: make(map[uuid.UUID]*componentTotal),
	}
}

// VisitNode adds this node's quantity to its component total. The root is not counted.
func (v *ExplosionVisitor) VisitNode(
	ctx context.Context,
	nodeCtx BOMNodeContext,
) (interface{}, bool, error) {
	if nodeCtx.Level == 0 {
		return nil, true, nil
	}

	total, exists := v.components[nodeCtx.Product.ID]
	if !exists {
		total = &componentTotal{
			product:        nodeCtx.Product,
			gross:          decimal.Zero,
			level:          nodeCtx.Level,
			leadOffsetDays: nodeCtx.LeadOffsetDays,
			parentID:       nodeCtx.ParentID,
		}
		v.components[nodeCtx.Product.ID] = total
		v.order = append(v.order, nodeCtx.Product.ID)
	}

	total.gross = total.gross.Add(nodeCtx.Quantity)
	if nodeCtx.Level > total.level {
		total.level = nodeCtx.Level
	}
	// the longest lead chain sets the earliest need date
	if nodeCtx.LeadOffsetDays > total.leadOffsetDays {
		total.leadOffsetDays = nodeCtx.LeadOffsetDays
		total.parentID = nodeCtx.ParentID
	}

	return nil, true, nil
}

// ProcessChildren has nothing to combine; totals live on the visitor
func (v *ExplosionVisitor) ProcessChildren(
	ctx context.Context,
	nodeCtx BOMNodeContext,
	nodeData interface{},
	childResults []interface{},
) (interface{}, error) {
	return nil, nil
}

// Components returns the aggregated totals in first-visit order
func (v *ExplosionVisitor) Components() []dto.UnitComponent {
	out := make([]dto.UnitComponent, 0, len(v.order))
	for _, id := range v.order {
		total := v.components[id]
		out = append(out, dto.UnitComponent{
			Product:        total.product,
			PerUnit:        total.gross,
			Level:          total.level,
			LeadOffsetDays: total.leadOffsetDays,
			ParentID:       total.parentID,
		})
	}
	return out
}
