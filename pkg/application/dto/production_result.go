package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// GateResult reports whether an operation has the material it consumes.
// Materials covers every eligible line; Issues is its short subset.
type GateResult struct {
	OperationID uuid.UUID                 `json:"operation_id"`
	OK          bool                      `json:"ok"`
	Stages      []entities.ConsumeStage   `json:"stages"`
	Materials   []entities.ShortageDetail `json:"materials,omitempty"`
	Issues      []entities.ShortageDetail `json:"issues,omitempty"`
}

// ReleaseResult reports the outcome of releasing a run
type ReleaseResult struct {
	RunID             uuid.UUID  `json:"run_id"`
	Released          bool       `json:"released"`
	OperationsCreated int        `json:"operations_created"`
	RoutingID         *uuid.UUID `json:"routing_id,omitempty"`
	BOMID             *uuid.UUID `json:"bom_id,omitempty"`
	Message           string     `json:"message,omitempty"`
}

// GenerateOptions controls regeneration of a run's operations
type GenerateOptions struct {
	Force            bool
	AllowDestructive bool
}

// GenerateResult reports the outcome of generating operations
type GenerateResult struct {
	RunID             uuid.UUID `json:"run_id"`
	OperationsDeleted int       `json:"operations_deleted"`
	OperationsCreated int       `json:"operations_created"`
	Message           string    `json:"message,omitempty"`
}

// ScheduleResult reports a committed resource assignment
type ScheduleResult struct {
	Operation  *entities.Operation `json:"operation"`
	ResourceID uuid.UUID           `json:"resource_id"`
	Start      time.Time           `json:"start"`
	End        time.Time           `json:"end"`
}

// ResourceSchedule is a resource's ordered non-terminal timeline
type ResourceSchedule struct {
	Resource   *entities.Resource    `json:"resource"`
	Operations []*entities.Operation `json:"operations"`
}

// TransitionResult reports an operation state change and the run after rollup
type TransitionResult struct {
	Run       *entities.ProductionRun `json:"run"`
	Operation *entities.Operation     `json:"operation"`
}

// CompleteInput reports good and scrapped output of a finished operation.
// A zero QuantityCompleted means everything not scrapped.
type CompleteInput struct {
	QuantityCompleted decimal.Decimal
	QuantityScrapped  decimal.Decimal
	Notes             string
}
