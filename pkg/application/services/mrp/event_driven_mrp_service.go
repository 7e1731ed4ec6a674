package mrp

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/infrastructure/events"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// EventDrivenExplosionService publishes explosion outcomes to an event store
type EventDrivenExplosionService struct {
	explosionService *ExplosionService
	eventStore       events.EventStore
	logger           *logging.Logger
}

func NewEventDrivenExplosionService(
	explosionService *ExplosionService,
	eventStore events.EventStore,
	logger *logging.Logger,
) *EventDrivenExplosionService {
	return &EventDrivenExplosionService{
		explosionService: explosionService,
		eventStore:       eventStore,
		logger:           logging.OrNop(logger),
	}
}

func (s *EventDrivenExplosionService) Explode(
	ctx context.Context,
	productID uuid.UUID,
	quantity decimal.Decimal,
) (*dto.ExplosionResult, error) {
	return s.ExplodeWithOptions(ctx, dto.ExplodeRequest{ProductID: productID, Quantity: quantity})
}

func (s *EventDrivenExplosionService) ExplodeWithOptions(
	ctx context.Context,
	req dto.ExplodeRequest,
) (*dto.ExplosionResult, error) {
	result, fromCache, err := s.explosionService.explode(ctx, req)
	if err != nil {
		return nil, err
	}

	s.publishExplosionEvents(result, fromCache)

	return result, nil
}

// Reset clears the underlying explosion cache
func (s *EventDrivenExplosionService) Reset() {
	s.explosionService.Reset()
}

func (s *EventDrivenExplosionService) publishExplosionEvents(result *dto.ExplosionResult, fromCache bool) {
	shortages := result.Shortages()

	event := events.NewRequirementsExplodedEvent(events.RequirementsExploded{
		ProductID:    result.ProductID,
		Quantity:     result.Quantity,
		Components:   len(result.Requirements),
		ShortCount:   len(shortages),
		FromCache:    fromCache,
		SuggestCount: len(result.SuggestedOrders),
	})
	if err := s.eventStore.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.Warn("failed to publish requirements exploded event", "error", err)
	}

	for _, shortage := range shortages {
		event := events.NewShortageIdentifiedEvent(result.ProductID, shortage)
		if err := s.eventStore.AppendEvent(event.StreamID(), event); err != nil {
			s.logger.Warn("failed to publish shortage identified event", "sku", shortage.SKU, "error", err)
		}
	}
}
