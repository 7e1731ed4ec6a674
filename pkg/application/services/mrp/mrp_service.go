package mrp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// EngineConfig holds configuration for the explosion engine
type EngineConfig struct {
	// MaxCacheEntries limits the explosion cache size (0 disables caching)
	MaxCacheEntries int
	// MaxDepth bounds BOM nesting
	MaxDepth int
	// Concurrency bounds parallel inventory lookups during netting
	Concurrency int
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxCacheEntries: 1000,
		MaxDepth:        DefaultMaxDepth,
		Concurrency:     8,
	}
}

// Repositories groups the read models the engine consults
type Repositories struct {
	Products  repositories.ProductRepository
	BOMs      repositories.BOMRepository
	Inventory repositories.InventoryRepository
	Supply    repositories.SupplyRepository
}

// ExplosionService explodes a product's BOM into netted component requirements
type ExplosionService struct {
	config EngineConfig
	repos  Repositories
	logger *logging.Logger
	now    func() time.Time

	// Memoization cache of per-unit explosions, keyed by root product
	explosionCache map[uuid.UUID]*dto.UnitExplosion
	cacheMutex     sync.RWMutex
}

// NewExplosionService creates a new explosion service
func NewExplosionService(repos Repositories, config EngineConfig, logger *logging.Logger) *ExplosionService {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	return &ExplosionService{
		config:         config,
		repos:          repos,
		logger:         logging.OrNop(logger),
		now:            time.Now,
		explosionCache: make(map[uuid.UUID]*dto.UnitExplosion),
	}
}

// Explode returns the netted requirements for quantity units of productID
func (s *ExplosionService) Explode(
	ctx context.Context,
	productID uuid.UUID,
	quantity decimal.Decimal,
) (*dto.ExplosionResult, error) {
	return s.ExplodeWithOptions(ctx, dto.ExplodeRequest{ProductID: productID, Quantity: quantity})
}

// ExplodeWithOptions explodes and nets, then optionally cascades shortages into suggested orders
func (s *ExplosionService) ExplodeWithOptions(ctx context.Context, req dto.ExplodeRequest) (*dto.ExplosionResult, error) {
	result, _, err := s.explode(ctx, req)
	return result, err
}

func (s *ExplosionService) explode(ctx context.Context, req dto.ExplodeRequest) (*dto.ExplosionResult, bool, error) {
	if !req.Quantity.IsPositive() {
		return nil, false, apperr.Invalid("quantity", fmt.Sprintf("must be positive, got %s", req.Quantity))
	}

	root, err := s.repos.Products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get product %s: %w", req.ProductID, err)
	}

	unit, fromCache, err := s.unitExplosion(ctx, root)
	if err != nil {
		return nil, false, err
	}

	requirements, err := s.net(ctx, unit.Components, req.Quantity)
	if err != nil {
		return nil, false, err
	}

	result := &dto.ExplosionResult{
		ProductID:    root.ID,
		SKU:          root.SKU,
		Quantity:     req.Quantity,
		Requirements: requirements,
		ComputedAt:   s.now(),
	}

	if req.Cascade {
		needDate := req.NeedDate
		if needDate.IsZero() {
			needDate = result.ComputedAt
		}
		result.SuggestedOrders = s.cascade(unit.Components, requirements, needDate)
	}

	s.logger.Debug("requirements exploded",
		"product_id", root.ID,
		"sku", root.SKU,
		"quantity", req.Quantity.String(),
		"components", len(requirements),
		"short_count", len(result.Shortages()),
		"from_cache", fromCache,
	)

	return result, fromCache, nil
}

// unitExplosion returns the per-unit gross quantities for root, memoized
func (s *ExplosionService) unitExplosion(ctx context.Context, root *entities.Product) (*dto.UnitExplosion, bool, error) {
	if s.config.MaxCacheEntries > 0 {
		s.cacheMutex.RLock()
		cached, exists := s.explosionCache[root.ID]
		s.cacheMutex.RUnlock()
		if exists {
			return cached, true, nil
		}
	}

	traverser := NewBOMTraverser(s.repos.Products, s.repos.BOMs, s.config.MaxDepth)
	visitor := NewExplosionVisitor()
	if _, err := traverser.TraverseBOM(ctx, root, decimal.NewFromInt(1), visitor); err != nil {
		return nil, false, err
	}

	unit := &dto.UnitExplosion{
		Components: visitor.Components(),
		ComputedAt: s.now(),
	}

	if s.config.MaxCacheEntries > 0 {
		s.cacheMutex.Lock()
		s.explosionCache[root.ID] = unit
		s.cacheMutex.Unlock()
		s.cleanCacheIfNeeded()
	}

	return unit, false, nil
}

// net scales unit quantities and nets each component against on-hand,
// allocated and incoming supply. Lookups run with bounded fan-out.
func (s *ExplosionService) net(
	ctx context.Context,
	components []dto.UnitComponent,
	quantity decimal.Decimal,
) ([]entities.NetRequirement, error) {
	requirements := make([]entities.NetRequirement, len(components))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i, component := range components {
		i, component := i, component
		g.Go(func() error {
			product := component.Product

			pos, err := s.repos.Inventory.GetInventoryPosition(gctx, product.ID)
			if err != nil {
				return fmt.Errorf("failed to get inventory for %s: %w", product.SKU, err)
			}
			supply, err := s.repos.Supply.GetIncomingSupply(gctx, product.ID)
			if err != nil {
				return fmt.Errorf("failed to get incoming supply for %s: %w", product.SKU, err)
			}

			gross := component.PerUnit.Mul(quantity)
			available := pos.Available().Add(entities.TotalIncoming(supply))
			_, short := entities.Net(gross, available)

			requirements[i] = entities.NetRequirement{
				ProductID:    product.ID,
				SKU:          product.SKU,
				Name:         product.Name,
				Unit:         product.StorageUnit,
				GrossQty:     gross,
				AvailableQty: available,
				ShortQty:     short,
				IsMake:       product.IsMake(),
				Level:        component.Level,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(requirements, func(i, j int) bool {
		if requirements[i].Level != requirements[j].Level {
			return requirements[i].Level < requirements[j].Level
		}
		return requirements[i].SKU < requirements[j].SKU
	})

	return requirements, nil
}

// cascade turns every shortage into a make or buy suggestion. A component is
// needed before its parents by the summed lead time of the chain above it.
func (s *ExplosionService) cascade(
	components []dto.UnitComponent,
	requirements []entities.NetRequirement,
	needDate time.Time,
) []entities.SuggestedOrder {
	byID := make(map[uuid.UUID]dto.UnitComponent, len(components))
	for _, c := range components {
		byID[c.Product.ID] = c
	}

	var orders []entities.SuggestedOrder
	for _, req := range requirements {
		if !req.IsShort() {
			continue
		}
		component := byID[req.ProductID]
		orderType := entities.Buy
		if req.IsMake {
			orderType = entities.Make
		}
		componentNeed := needDate.AddDate(0, 0, -component.LeadOffsetDays)
		order, err := entities.NewSuggestedOrder(req.ProductID, req.SKU, req.ShortQty, orderType, componentNeed, component.ParentID)
		if err != nil {
			s.logger.Warn("skipping suggested order", "sku", req.SKU, "error", err)
			continue
		}
		orders = append(orders, *order)
	}
	return orders
}

// Reset clears the explosion cache
func (s *ExplosionService) Reset() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.explosionCache = make(map[uuid.UUID]*dto.UnitExplosion)
}

// CacheSize returns the number of memoized explosions
func (s *ExplosionService) CacheSize() int {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	return len(s.explosionCache)
}

// cleanCacheIfNeeded evicts the oldest entry once the cache exceeds its limit
func (s *ExplosionService) cleanCacheIfNeeded() {
	if s.config.MaxCacheEntries <= 0 {
		return
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	for len(s.explosionCache) > s.config.MaxCacheEntries {
		var oldestTime time.Time
		var oldestKey uuid.UUID

		for key, value := range s.explosionCache {
			if oldestTime.IsZero() || value.ComputedAt.Before(oldestTime) {
				oldestTime = value.ComputedAt
				oldestKey = key
			}
		}

		delete(s.explosionCache, oldestKey)
	}
}
