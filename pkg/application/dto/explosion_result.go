package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// ExplodeRequest asks for the netted requirements of a quantity of a product
type ExplodeRequest struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	NeedDate  time.Time
	Cascade   bool
}

// ExplosionResult contains the netted requirements of one explosion, sorted by level then SKU
type ExplosionResult struct {
	ProductID       uuid.UUID                 `json:"product_id"`
	SKU             string                    `json:"sku"`
	Quantity        decimal.Decimal           `json:"quantity"`
	Requirements    []entities.NetRequirement `json:"requirements"`
	SuggestedOrders []entities.SuggestedOrder `json:"suggested_orders,omitempty"`
	ComputedAt      time.Time                 `json:"computed_at"`
}

// Shortages returns the requirements not covered by supply
func (r *ExplosionResult) Shortages() []entities.NetRequirement {
	var out []entities.NetRequirement
	for _, req := range r.Requirements {
		if req.IsShort() {
			out = append(out, req)
		}
	}
	return out
}

// Requirement returns the requirement for a product, if present
func (r *ExplosionResult) Requirement(productID uuid.UUID) (entities.NetRequirement, bool) {
	for _, req := range r.Requirements {
		if req.ProductID == productID {
			return req, true
		}
	}
	return entities.NetRequirement{}, false
}

// UnitExplosion is the cached gross quantity per unit of the root product
type UnitExplosion struct {
	Components []UnitComponent
	ComputedAt time.Time
}

// UnitComponent is one component's gross quantity per unit of the root
type UnitComponent struct {
	Product        *entities.Product
	PerUnit        decimal.Decimal
	Level          int
	LeadOffsetDays int
	ParentID       uuid.UUID
}
