package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

const (
	RequirementsExplodedEvent = "requirements.exploded"
	ShortageIdentifiedEvent   = "shortage.identified"

	RunReleasedEvent         = "run.released"
	OperationsGeneratedEvent = "operations.generated"

	OperationScheduledEvent = "operation.scheduled"
	OperationStartedEvent   = "operation.started"
	OperationCompletedEvent = "operation.completed"
	OperationSkippedEvent   = "operation.skipped"
)

type RequirementsExploded struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Components   int             `json:"components"`
	ShortCount   int             `json:"short_count"`
	FromCache    bool            `json:"from_cache"`
	SuggestCount int             `json:"suggest_count"`
}

type ShortageIdentified struct {
	RootProductID uuid.UUID               `json:"root_product_id"`
	Requirement   entities.NetRequirement `json:"requirement"`
}

type RunReleased struct {
	RunID             uuid.UUID  `json:"run_id"`
	RunNumber         string     `json:"run_number"`
	RoutingID         *uuid.UUID `json:"routing_id,omitempty"`
	BOMID             *uuid.UUID `json:"bom_id,omitempty"`
	OperationsCreated int        `json:"operations_created"`
}

type OperationsGenerated struct {
	RunID             uuid.UUID `json:"run_id"`
	RoutingID         uuid.UUID `json:"routing_id"`
	OperationsDeleted int       `json:"operations_deleted"`
	OperationsCreated int       `json:"operations_created"`
}

type OperationScheduled struct {
	RunID       uuid.UUID `json:"run_id"`
	OperationID uuid.UUID `json:"operation_id"`
	ResourceID  uuid.UUID `json:"resource_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type OperationTransitioned struct {
	RunID       uuid.UUID                `json:"run_id"`
	OperationID uuid.UUID                `json:"operation_id"`
	Code        string                   `json:"code"`
	Sequence    int                      `json:"sequence"`
	From        entities.OperationStatus `json:"from"`
	To          entities.OperationStatus `json:"to"`
	RunStatus   entities.RunStatus       `json:"run_status"`
	Completed   decimal.Decimal          `json:"completed"`
	Scrapped    decimal.Decimal          `json:"scrapped"`
	Reason      string                   `json:"reason,omitempty"`
}

func NewRequirementsExplodedEvent(data RequirementsExploded) Event {
	return NewEvent(RequirementsExplodedEvent, data.ProductID.String(), data)
}

func NewShortageIdentifiedEvent(rootID uuid.UUID, req entities.NetRequirement) Event {
	return NewEvent(ShortageIdentifiedEvent, req.ProductID.String(), ShortageIdentified{
		RootProductID: rootID,
		Requirement:   req,
	})
}

func NewRunReleasedEvent(run *entities.ProductionRun, created int) Event {
	return NewEvent(RunReleasedEvent, run.ID.String(), RunReleased{
		RunID:             run.ID,
		RunNumber:         run.RunNumber,
		RoutingID:         run.RoutingID,
		BOMID:             run.BOMID,
		OperationsCreated: created,
	})
}

func NewOperationsGeneratedEvent(runID, routingID uuid.UUID, deleted, created int) Event {
	return NewEvent(OperationsGeneratedEvent, runID.String(), OperationsGenerated{
		RunID:             runID,
		RoutingID:         routingID,
		OperationsDeleted: deleted,
		OperationsCreated: created,
	})
}

func NewOperationScheduledEvent(op *entities.Operation, resourceID uuid.UUID, start, end time.Time) Event {
	return NewEvent(OperationScheduledEvent, op.RunID.String(), OperationScheduled{
		RunID:       op.RunID,
		OperationID: op.ID,
		ResourceID:  resourceID,
		Start:       start,
		End:         end,
	})
}

// NewOperationTransitionEvent records a start, completion or skip on the run's stream
func NewOperationTransitionEvent(
	eventType string,
	run *entities.ProductionRun,
	op *entities.Operation,
	from entities.OperationStatus,
	reason string,
) Event {
	return NewEvent(eventType, run.ID.String(), OperationTransitioned{
		RunID:       run.ID,
		OperationID: op.ID,
		Code:        op.OperationCode,
		Sequence:    op.Sequence,
		From:        from,
		To:          op.Status,
		RunStatus:   run.Status,
		Completed:   op.QuantityCompleted,
		Scrapped:    op.QuantityScrapped,
		Reason:      reason,
	})
}
