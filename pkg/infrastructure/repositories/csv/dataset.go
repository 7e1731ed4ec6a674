package csv

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/infrastructure/repositories/memory"
)

// Dataset is a complete production scenario ready to seed a store
type Dataset struct {
	Products  []*entities.Product
	BOMs      []*entities.BOM
	Routings  []*entities.Routing
	Stock     []StockRow
	Supply    []*entities.IncomingSupply
	Resources []*entities.Resource
	Runs      []*entities.ProductionRun
}

// Summary describes the dataset size
func (ds *Dataset) Summary() string {
	return fmt.Sprintf("%d products, %d BOMs, %d routings, %d stock rows, %d supply rows, %d resources, %d runs",
		len(ds.Products), len(ds.BOMs), len(ds.Routings), len(ds.Stock), len(ds.Supply), len(ds.Resources), len(ds.Runs))
}

// StockRow is the inventory position of a product at one location
type StockRow struct {
	*entities.InventoryPosition
	Location string
}

// MemoryStores holds in-memory repositories seeded from a dataset
type MemoryStores struct {
	Catalog    *memory.CatalogRepository
	Inventory  *memory.InventoryRepository
	Production *memory.ProductionRepository
}

// IntoMemory seeds fresh in-memory repositories with the dataset
func (ds *Dataset) IntoMemory(ctx context.Context) (*MemoryStores, error) {
	stores := &MemoryStores{
		Catalog:    memory.NewCatalogRepository(len(ds.Products)),
		Inventory:  memory.NewInventoryRepository(),
		Production: memory.NewProductionRepository(),
	}

	for _, p := range ds.Products {
		stores.Catalog.AddProduct(p)
	}
	for _, bom := range ds.BOMs {
		stores.Catalog.AddBOM(bom)
	}
	for _, routing := range ds.Routings {
		if err := stores.Catalog.AddRouting(routing); err != nil {
			return nil, fmt.Errorf("failed to add routing %s: %w", routing.ID, err)
		}
	}
	for _, row := range ds.Stock {
		stores.Inventory.AddPosition(row.InventoryPosition)
	}
	for _, s := range ds.Supply {
		stores.Inventory.AddIncomingSupply(s)
	}
	for _, res := range ds.Resources {
		stores.Production.AddResource(res)
	}
	for _, run := range ds.Runs {
		if err := stores.Production.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to save run %s: %w", run.RunNumber, err)
		}
	}
	return stores, nil
}

func (ds *Dataset) bom(id uuid.UUID) *entities.BOM {
	for _, bom := range ds.BOMs {
		if bom.ID == id {
			return bom
		}
	}
	return nil
}

func (ds *Dataset) routing(id uuid.UUID) *entities.Routing {
	for _, routing := range ds.Routings {
		if routing.ID == id {
			return routing
		}
	}
	return nil
}
