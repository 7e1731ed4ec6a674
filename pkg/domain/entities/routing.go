package entities

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoutingOperation is one template step of a routing
type RoutingOperation struct {
	ID                uuid.UUID
	RoutingID         uuid.UUID
	Sequence          int
	OperationCode     string
	Name              string
	WorkCenterID      *uuid.UUID
	SetupMinutes      decimal.Decimal
	RunMinutesPerUnit decimal.Decimal
}

// NewRoutingOperation creates a validated RoutingOperation
func NewRoutingOperation(
	routingID uuid.UUID,
	sequence int,
	code, name string,
	setupMinutes, runMinutesPerUnit decimal.Decimal,
) (*RoutingOperation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if sequence <= 0 {
		return nil, fmt.Errorf("sequence must be positive, got %d", sequence)
	}
	if code == "" {
		return nil, fmt.Errorf("operation code cannot be empty")
	}
	if setupMinutes.IsNegative() {
		return nil, fmt.Errorf("setup minutes cannot be negative, got %s", setupMinutes)
	}
	if runMinutesPerUnit.IsNegative() {
		return nil, fmt.Errorf("run minutes cannot be negative, got %s", runMinutesPerUnit)
	}
	if name == "" {
		name = code
	}

	return &RoutingOperation{
		ID:                uuid.New(),
		RoutingID:         routingID,
		Sequence:          sequence,
		OperationCode:     code,
		Name:              name,
		SetupMinutes:      setupMinutes,
		RunMinutesPerUnit: runMinutesPerUnit,
	}, nil
}

// PlannedRunMinutes scales the per-unit run time linearly by quantity
func (o *RoutingOperation) PlannedRunMinutes(quantity decimal.Decimal) decimal.Decimal {
	return o.RunMinutesPerUnit.Mul(quantity)
}

// Routing is a versioned, product-scoped ordered list of operation templates
type Routing struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Version    string
	IsActive   bool
	Operations []*RoutingOperation
}

// Validate checks that step sequence numbers are unique
func (r *Routing) Validate() error {
	seen := make(map[int]bool, len(r.Operations))
	for _, op := range r.Operations {
		if seen[op.Sequence] {
			return fmt.Errorf("routing %s has duplicate sequence %d", r.ID, op.Sequence)
		}
		seen[op.Sequence] = true
	}
	return nil
}

// Ordered returns the routing steps sorted by sequence
func (r *Routing) Ordered() []*RoutingOperation {
	ops := make([]*RoutingOperation, len(r.Operations))
	copy(ops, r.Operations)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Sequence < ops[j].Sequence
	})
	return ops
}
