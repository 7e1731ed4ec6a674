package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

// InventoryRepository provides in-memory inventory positions and incoming supply
type InventoryRepository struct {
	mu        sync.RWMutex
	positions map[uuid.UUID]*entities.InventoryPosition
	supply    map[uuid.UUID][]*entities.IncomingSupply
}

// NewInventoryRepository creates a new in-memory inventory repository
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		positions: make(map[uuid.UUID]*entities.InventoryPosition),
		supply:    make(map[uuid.UUID][]*entities.IncomingSupply),
	}
}

// Verify interface compliance
var _ repositories.InventoryRepository = (*InventoryRepository)(nil)
var _ repositories.SupplyRepository = (*InventoryRepository)(nil)

// AddPosition merges a position into the product's aggregate (one call per location)
func (r *InventoryRepository) AddPosition(pos *entities.InventoryPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.positions[pos.ProductID]; ok {
		existing.Add(pos)
		return
	}
	copyPos := *pos
	r.positions[pos.ProductID] = &copyPos
}

// SetPosition replaces the product's aggregate position
func (r *InventoryRepository) SetPosition(pos *entities.InventoryPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyPos := *pos
	r.positions[pos.ProductID] = &copyPos
}

// AddIncomingSupply records a pending purchase commitment
func (r *InventoryRepository) AddIncomingSupply(s *entities.IncomingSupply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supply[s.ProductID] = append(r.supply[s.ProductID], s)
}

// GetInventoryPosition returns the aggregate position, or a zero position
func (r *InventoryRepository) GetInventoryPosition(ctx context.Context, productID uuid.UUID) (*entities.InventoryPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, exists := r.positions[productID]
	if !exists {
		return entities.EmptyPosition(productID), nil
	}
	copyPos := *pos
	return &copyPos, nil
}

// GetIncomingSupply returns pending supply ordered by expected date, undated last
func (r *InventoryRepository) GetIncomingSupply(ctx context.Context, productID uuid.UUID) ([]*entities.IncomingSupply, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pending []*entities.IncomingSupply
	for _, s := range r.supply[productID] {
		if s.IsPending() {
			pending = append(pending, s)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i].ExpectedDate, pending[j].ExpectedDate
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
	return pending, nil
}
