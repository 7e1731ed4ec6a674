package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunStatus represents the lifecycle state of a production run
type RunStatus string

const (
	RunDraft      RunStatus = "draft"
	RunReleased   RunStatus = "released"
	RunInProgress RunStatus = "in_progress"
	RunComplete   RunStatus = "complete"
	RunCancelled  RunStatus = "cancelled"
)

// ParseRunStatus converts a string to a RunStatus
func ParseRunStatus(s string) (RunStatus, error) {
	switch status := RunStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case RunDraft, RunReleased, RunInProgress, RunComplete, RunCancelled:
		return status, nil
	case "":
		return RunDraft, nil
	default:
		return "", fmt.Errorf("invalid run status: %s", s)
	}
}

// String method for RunStatus
func (s RunStatus) String() string {
	return string(s)
}

// ProductionRun is one manufacturing job for a quantity of a product
type ProductionRun struct {
	ID                 uuid.UUID
	RunNumber          string
	ProductID          uuid.UUID
	QuantityOrdered    decimal.Decimal
	QuantityCompleted  decimal.Decimal
	QuantityScrapped   decimal.Decimal
	Status             RunStatus
	BOMID              *uuid.UUID
	RoutingID          *uuid.UUID
	CurrentOperationID *uuid.UUID
	DueDate            *time.Time
	ReleasedAt         *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

// NewProductionRun creates a validated draft run
func NewProductionRun(runNumber string, productID uuid.UUID, quantity decimal.Decimal) (*ProductionRun, error) {
	runNumber = strings.TrimSpace(runNumber)
	if runNumber == "" {
		return nil, fmt.Errorf("run number cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity ordered must be positive, got %s", quantity)
	}

	return &ProductionRun{
		ID:                NaturalID("run", runNumber),
		RunNumber:         runNumber,
		ProductID:         productID,
		QuantityOrdered:   quantity,
		QuantityCompleted: decimal.Zero,
		QuantityScrapped:  decimal.Zero,
		Status:            RunDraft,
	}, nil
}

// RemainingQuantity returns the not-yet-produced portion of the run, never negative
func (r *ProductionRun) RemainingQuantity() decimal.Decimal {
	remaining := r.QuantityOrdered.Sub(r.QuantityCompleted)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Clone returns a copy safe to mutate independently of the original
func (r *ProductionRun) Clone() *ProductionRun {
	c := *r
	return &c
}
