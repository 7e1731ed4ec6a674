package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

// CatalogRepository provides in-memory storage for products, BOMs and routings
type CatalogRepository struct {
	mu            sync.RWMutex
	products      map[uuid.UUID]*entities.Product
	productsBySKU map[string]uuid.UUID
	boms          map[uuid.UUID]*entities.BOM
	activeBOM     map[uuid.UUID]uuid.UUID
	routings      map[uuid.UUID]*entities.Routing
	activeRouting map[uuid.UUID]uuid.UUID
}

// NewCatalogRepository creates an empty catalog sized for expectedProducts
func NewCatalogRepository(expectedProducts int) *CatalogRepository {
	return &CatalogRepository{
		products:      make(map[uuid.UUID]*entities.Product, expectedProducts),
		productsBySKU: make(map[string]uuid.UUID, expectedProducts),
		boms:          make(map[uuid.UUID]*entities.BOM, expectedProducts),
		activeBOM:     make(map[uuid.UUID]uuid.UUID, expectedProducts),
		routings:      make(map[uuid.UUID]*entities.Routing, expectedProducts),
		activeRouting: make(map[uuid.UUID]uuid.UUID, expectedProducts),
	}
}

// Verify interface compliance
var _ repositories.ProductRepository = (*CatalogRepository)(nil)
var _ repositories.BOMRepository = (*CatalogRepository)(nil)
var _ repositories.RoutingRepository = (*CatalogRepository)(nil)

// AddProduct stores or replaces a product
func (r *CatalogRepository) AddProduct(product *entities.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	r.productsBySKU[strings.ToUpper(product.SKU)] = product.ID
}

// AddBOM stores a BOM. An active BOM becomes the product's current version.
func (r *CatalogRepository) AddBOM(bom *entities.BOM) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boms[bom.ID] = bom
	if bom.IsActive {
		r.activeBOM[bom.ProductID] = bom.ID
	}
}

// AddRouting stores a routing. An active routing becomes the product's current version.
func (r *CatalogRepository) AddRouting(routing *entities.Routing) error {
	if err := routing.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routings[routing.ID] = routing
	if routing.IsActive {
		r.activeRouting[routing.ProductID] = routing.ID
	}
	return nil
}

// GetProduct returns a product by ID
func (r *CatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*entities.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, exists := r.products[id]
	if !exists {
		return nil, apperr.NotFound("product", id)
	}
	return product, nil
}

// GetProductBySKU returns a product by SKU, case-insensitively
func (r *CatalogRepository) GetProductBySKU(ctx context.Context, sku string) (*entities.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, exists := r.productsBySKU[strings.ToUpper(strings.TrimSpace(sku))]
	if !exists {
		return nil, &apperr.NotFoundError{Entity: "product", ID: sku}
	}
	return r.products[id], nil
}

// ListProducts returns all products ordered by SKU
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]*entities.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	products := make([]*entities.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].SKU < products[j].SKU })
	return products, nil
}

// GetBOM returns the active BOM of a product, or nil
func (r *CatalogRepository) GetBOM(ctx context.Context, productID uuid.UUID) (*entities.BOM, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, exists := r.activeBOM[productID]
	if !exists {
		return nil, nil
	}
	return r.boms[id], nil
}

// GetBOMByID returns a specific BOM version
func (r *CatalogRepository) GetBOMByID(ctx context.Context, id uuid.UUID) (*entities.BOM, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bom, exists := r.boms[id]
	if !exists {
		return nil, apperr.NotFound("bom", id)
	}
	return bom, nil
}

// ListBOMs returns every stored BOM version
func (r *CatalogRepository) ListBOMs(ctx context.Context) ([]*entities.BOM, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	boms := make([]*entities.BOM, 0, len(r.boms))
	for _, bom := range r.boms {
		boms = append(boms, bom)
	}
	return boms, nil
}

// GetRouting returns the active routing of a product, or nil
func (r *CatalogRepository) GetRouting(ctx context.Context, productID uuid.UUID) (*entities.Routing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, exists := r.activeRouting[productID]
	if !exists {
		return nil, nil
	}
	return r.routings[id], nil
}

// GetRoutingByID returns a specific routing version
func (r *CatalogRepository) GetRoutingByID(ctx context.Context, id uuid.UUID) (*entities.Routing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routing, exists := r.routings[id]
	if !exists {
		return nil, apperr.NotFound("routing", id)
	}
	return routing, nil
}

// String summarises the catalog contents
func (r *CatalogRepository) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("catalog: %d products, %d BOMs, %d routings", len(r.products), len(r.boms), len(r.routings))
}
