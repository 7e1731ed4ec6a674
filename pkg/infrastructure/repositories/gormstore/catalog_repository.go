package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

// CatalogRepository stores products, BOMs and routings
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

var _ repositories.ProductRepository = (*CatalogRepository)(nil)
var _ repositories.BOMRepository = (*CatalogRepository)(nil)
var _ repositories.RoutingRepository = (*CatalogRepository)(nil)

func (r *CatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*entities.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product", id)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return productFromModel(&m), nil
}

func (r *CatalogRepository) GetProductBySKU(ctx context.Context, sku string) (*entities.Product, error) {
	var m ProductModel
	err := r.db.WithContext(ctx).
		Where("UPPER(sku) = ?", strings.ToUpper(strings.TrimSpace(sku))).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "product", ID: sku}
		}
		return nil, fmt.Errorf("failed to get product %s: %w", sku, err)
	}
	return productFromModel(&m), nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]*entities.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("sku").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	out := make([]*entities.Product, 0, len(models))
	for i := range models {
		out = append(out, productFromModel(&models[i]))
	}
	return out, nil
}

// GetBOM returns the product's active BOM, or nil
func (r *CatalogRepository) GetBOM(ctx context.Context, productID uuid.UUID) (*entities.BOM, error) {
	var m BOMModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("updated_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get BOM for product %s: %w", productID, err)
	}
	return bomFromModel(&m), nil
}

func (r *CatalogRepository) GetBOMByID(ctx context.Context, id uuid.UUID) (*entities.BOM, error) {
	var m BOMModel
	if err := r.db.WithContext(ctx).Preload("Lines").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("BOM", id)
		}
		return nil, fmt.Errorf("failed to get BOM %s: %w", id, err)
	}
	return bomFromModel(&m), nil
}

func (r *CatalogRepository) ListBOMs(ctx context.Context) ([]*entities.BOM, error) {
	var models []BOMModel
	if err := r.db.WithContext(ctx).Preload("Lines").Order("product_id, version").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list BOMs: %w", err)
	}
	out := make([]*entities.BOM, 0, len(models))
	for i := range models {
		out = append(out, bomFromModel(&models[i]))
	}
	return out, nil
}

// GetRouting returns the product's active routing, or nil
func (r *CatalogRepository) GetRouting(ctx context.Context, productID uuid.UUID) (*entities.Routing, error) {
	var m RoutingModel
	err := r.db.WithContext(ctx).
		Preload("Operations").
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("updated_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routing for product %s: %w", productID, err)
	}
	return routingFromModel(&m), nil
}

func (r *CatalogRepository) GetRoutingByID(ctx context.Context, id uuid.UUID) (*entities.Routing, error) {
	var m RoutingModel
	if err := r.db.WithContext(ctx).Preload("Operations").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("routing", id)
		}
		return nil, fmt.Errorf("failed to get routing %s: %w", id, err)
	}
	return routingFromModel(&m), nil
}

// SaveProduct creates or replaces a product
func (r *CatalogRepository) SaveProduct(ctx context.Context, p *entities.Product) error {
	m := productToModel(p)
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.SKU, err)
	}
	return nil
}

// SaveBOM replaces a BOM version and its lines. An active BOM deactivates the
// product's other versions.
func (r *CatalogRepository) SaveBOM(ctx context.Context, bom *entities.BOM) error {
	m := bomToModel(bom)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.IsActive {
			if err := tx.Model(&BOMModel{}).
				Where("product_id = ? AND id <> ?", m.ProductID, m.ID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return fmt.Errorf("failed to save BOM %s: %w", m.ID, err)
		}
		if err := tx.Where("bom_id = ?", m.ID).Delete(&BOMLineModel{}).Error; err != nil {
			return err
		}
		if len(m.Lines) > 0 {
			if err := tx.Create(&m.Lines).Error; err != nil {
				return fmt.Errorf("failed to save lines of BOM %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

// SaveRouting replaces a routing version and its steps. An active routing
// deactivates the product's other versions.
func (r *CatalogRepository) SaveRouting(ctx context.Context, routing *entities.Routing) error {
	if err := routing.Validate(); err != nil {
		return apperr.Invalid("routing", err.Error())
	}
	m := routingToModel(routing)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.IsActive {
			if err := tx.Model(&RoutingModel{}).
				Where("product_id = ? AND id <> ?", m.ProductID, m.ID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return fmt.Errorf("failed to save routing %s: %w", m.ID, err)
		}
		if err := tx.Where("routing_id = ?", m.ID).Delete(&RoutingOperationModel{}).Error; err != nil {
			return err
		}
		if len(m.Operations) > 0 {
			if err := tx.Create(&m.Operations).Error; err != nil {
				return fmt.Errorf("failed to save steps of routing %s: %w", m.ID, err)
			}
		}
		return nil
	})
}
