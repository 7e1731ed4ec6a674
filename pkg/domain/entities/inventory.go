package entities

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryPosition aggregates on-hand and allocated stock for a product across locations
type InventoryPosition struct {
	ProductID uuid.UUID
	OnHand    decimal.Decimal
	Allocated decimal.Decimal
}

// NewInventoryPosition creates a validated InventoryPosition
func NewInventoryPosition(productID uuid.UUID, onHand, allocated decimal.Decimal) (*InventoryPosition, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product cannot be empty")
	}
	if allocated.IsNegative() {
		return nil, fmt.Errorf("allocated quantity cannot be negative, got %s", allocated)
	}

	return &InventoryPosition{
		ProductID: productID,
		OnHand:    onHand,
		Allocated: allocated,
	}, nil
}

// EmptyPosition returns a zero position for products with no inventory record
func EmptyPosition(productID uuid.UUID) *InventoryPosition {
	return &InventoryPosition{ProductID: productID, OnHand: decimal.Zero, Allocated: decimal.Zero}
}

// Available returns on-hand minus allocated. The result may be negative.
func (p *InventoryPosition) Available() decimal.Decimal {
	return p.OnHand.Sub(p.Allocated)
}

// Add merges another position for the same product (e.g. a second location)
func (p *InventoryPosition) Add(other *InventoryPosition) {
	p.OnHand = p.OnHand.Add(other.OnHand)
	p.Allocated = p.Allocated.Add(other.Allocated)
}

// IncomingSupply is a pending purchase commitment for a product
type IncomingSupply struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	SourceRef    string          `json:"source_ref"`
	SourceID     uuid.UUID       `json:"source_id"`
}

// NewIncomingSupply creates a validated IncomingSupply from ordered and received quantities
func NewIncomingSupply(productID uuid.UUID, ordered, received decimal.Decimal, expected *time.Time, sourceRef string) (*IncomingSupply, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product cannot be empty")
	}
	if ordered.IsNegative() || received.IsNegative() {
		return nil, fmt.Errorf("supply quantities cannot be negative")
	}

	return &IncomingSupply{
		ProductID:    productID,
		Quantity:     ordered.Sub(received),
		ExpectedDate: expected,
		SourceRef:    sourceRef,
		SourceID:     NaturalID("supply", sourceRef+"/"+productID.String()),
	}, nil
}

// IsPending reports whether some quantity is still to be received
func (s *IncomingSupply) IsPending() bool {
	return s.Quantity.IsPositive()
}

// TotalIncoming sums the remaining quantity of pending supply records
func TotalIncoming(supply []*IncomingSupply) decimal.Decimal {
	total := decimal.Zero
	for _, s := range supply {
		if s.IsPending() {
			total = total.Add(s.Quantity)
		}
	}
	return total
}

// NearestIncoming returns the pending record with the earliest expected date.
// Records without a date sort last.
func NearestIncoming(supply []*IncomingSupply) *IncomingSupply {
	pending := make([]*IncomingSupply, 0, len(supply))
	for _, s := range supply {
		if s.IsPending() {
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i].ExpectedDate, pending[j].ExpectedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return pending[0]
}
