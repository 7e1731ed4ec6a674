package gormstore

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	scenario "github.com/vsinha/prodplan/pkg/infrastructure/repositories/csv"
)

// Seed imports a scenario dataset in one transaction. Catalog rows and
// resources are upserted, stock rows of the imported products are replaced,
// and runs that already exist keep their recorded progress.
func Seed(ctx context.Context, db *gorm.DB, ds *scenario.Dataset) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		catalog := NewCatalogRepository(tx)
		production := NewProductionRepository(tx)

		for _, p := range ds.Products {
			if err := catalog.SaveProduct(ctx, p); err != nil {
				return err
			}
		}
		for _, bom := range ds.BOMs {
			if err := catalog.SaveBOM(ctx, bom); err != nil {
				return err
			}
		}
		for _, routing := range ds.Routings {
			if err := catalog.SaveRouting(ctx, routing); err != nil {
				return err
			}
		}

		if len(ds.Stock) > 0 {
			productIDs := make([]interface{}, 0, len(ds.Stock))
			rows := make([]InventoryModel, 0, len(ds.Stock))
			for _, row := range ds.Stock {
				productIDs = append(productIDs, row.ProductID)
				rows = append(rows, InventoryModel{
					ProductID: row.ProductID,
					Location:  row.Location,
					OnHand:    row.OnHand,
					Allocated: row.Allocated,
				})
			}
			if err := tx.Where("product_id IN ?", productIDs).Delete(&InventoryModel{}).Error; err != nil {
				return fmt.Errorf("failed to clear inventory: %w", err)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert inventory: %w", err)
			}
		}

		for _, s := range ds.Supply {
			m := SupplyModel{
				ID:               s.SourceID,
				ProductID:        s.ProductID,
				SourceRef:        s.SourceRef,
				QuantityOrdered:  s.Quantity,
				QuantityReceived: decimal.Zero,
				ExpectedDate:     s.ExpectedDate,
			}
			if err := tx.Save(&m).Error; err != nil {
				return fmt.Errorf("failed to save supply %s: %w", s.SourceRef, err)
			}
		}

		for _, res := range ds.Resources {
			if err := production.SaveResource(ctx, res); err != nil {
				return err
			}
		}

		for _, run := range ds.Runs {
			m := runToModel(run)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
				return fmt.Errorf("failed to insert run %s: %w", run.RunNumber, err)
			}
		}
		return nil
	})
}
