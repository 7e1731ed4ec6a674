package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NetRequirement is the netted demand for one component of an exploded product
type NetRequirement struct {
	ProductID    uuid.UUID       `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	GrossQty     decimal.Decimal `json:"gross_qty"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	ShortQty     decimal.Decimal `json:"short_qty"`
	IsMake       bool            `json:"is_make"`
	Level        int             `json:"level"`
}

// IsShort reports whether supply does not cover the gross requirement
func (r NetRequirement) IsShort() bool {
	return r.ShortQty.IsPositive()
}

// ShortageDetail itemises one material shortage blocking an operation
type ShortageDetail struct {
	ProductID      uuid.UUID       `json:"product_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Required       decimal.Decimal `json:"required"`
	Available      decimal.Decimal `json:"available"`
	Short          decimal.Decimal `json:"short"`
	Unit           string          `json:"unit"`
	ConsumeStage   ConsumeStage    `json:"consume_stage"`
	IncomingSupply *IncomingSupply `json:"incoming_supply,omitempty"`
}

// Net computes available (clamped at zero for reporting) and short quantities
func Net(required, available decimal.Decimal) (reported, short decimal.Decimal) {
	short = required.Sub(available)
	if short.IsNegative() {
		short = decimal.Zero
	}
	reported = available
	if reported.IsNegative() {
		reported = decimal.Zero
	}
	return reported, short
}
