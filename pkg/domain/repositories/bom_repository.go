package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// ProductRepository provides access to catalog products.
// Single-entity getters return *apperr.NotFoundError when the entity is absent.
type ProductRepository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*entities.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*entities.Product, error)
	ListProducts(ctx context.Context) ([]*entities.Product, error)
}

// BOMRepository provides access to Bill of Materials data.
// GetBOM returns the product's active BOM, or nil when the product has none.
type BOMRepository interface {
	GetBOM(ctx context.Context, productID uuid.UUID) (*entities.BOM, error)
	GetBOMByID(ctx context.Context, id uuid.UUID) (*entities.BOM, error)
	ListBOMs(ctx context.Context) ([]*entities.BOM, error)
}

// RoutingRepository provides access to routing templates.
// GetRouting returns the product's active routing, or nil when the product has none.
type RoutingRepository interface {
	GetRouting(ctx context.Context, productID uuid.UUID) (*entities.Routing, error)
	GetRoutingByID(ctx context.Context, id uuid.UUID) (*entities.Routing, error)
}
