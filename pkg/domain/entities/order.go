package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType represents the type of suggested order
type OrderType int

const (
	Make OrderType = iota
	Buy
)

// String method for OrderType enum
func (o OrderType) String() string {
	switch o {
	case Make:
		return "Make"
	case Buy:
		return "Buy"
	default:
		return "Unknown"
	}
}

// MarshalText renders the order type by name
func (o OrderType) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// SuggestedOrder is a make or buy suggestion produced for a shortage
type SuggestedOrder struct {
	ProductID       uuid.UUID       `json:"product_id"`
	SKU             string          `json:"sku"`
	Quantity        decimal.Decimal `json:"quantity"`
	OrderType       OrderType       `json:"order_type"`
	NeedDate        time.Time       `json:"need_date"`
	ParentProductID uuid.UUID       `json:"parent_product_id"`
}

// NewSuggestedOrder creates a validated SuggestedOrder
func NewSuggestedOrder(
	productID uuid.UUID,
	sku string,
	quantity decimal.Decimal,
	orderType OrderType,
	needDate time.Time,
	parentID uuid.UUID,
) (*SuggestedOrder, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}

	return &SuggestedOrder{
		ProductID:       productID,
		SKU:             sku,
		Quantity:        quantity,
		OrderType:       orderType,
		NeedDate:        needDate,
		ParentProductID: parentID,
	}, nil
}
