package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/services"
	scenario "github.com/vsinha/prodplan/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/prodplan/pkg/infrastructure/repositories/gormstore"
	"github.com/vsinha/prodplan/pkg/interfaces/cli/output"
)

// ErrValidationFailed is returned when the catalog has structural problems
var ErrValidationFailed = errors.New("catalog validation failed")

func (a *App) runLoad(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.ScenarioDir == "" {
		return fmt.Errorf("load requires -scenario")
	}

	ds, err := scenario.NewLoader().LoadDir(opts.ScenarioDir)
	if err != nil {
		return err
	}
	if problems := validateCatalog(ds.Products, ds.BOMs, nil); len(problems) > 0 {
		if err := a.render(opts, "validation", output.ValidationTable(problems)); err != nil {
			return err
		}
		return ErrValidationFailed
	}

	db, err := gormstore.Open(a.cfg.Database, a.logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	defer sqlDB.Close()

	if err := gormstore.AutoMigrate(db); err != nil {
		return err
	}
	if err := gormstore.Seed(ctx, db, ds); err != nil {
		return err
	}

	a.logger.Info("scenario imported", "dir", opts.ScenarioDir, "driver", a.cfg.Database.Driver)
	return a.render(opts, "load", output.MessageTable("Scenario loaded",
		"Scenario", opts.ScenarioDir,
		"Database", a.cfg.Database.Driver,
		"Contents", ds.Summary(),
	))
}

func (a *App) runValidate(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		products, err := e.catalog.ListProducts(ctx)
		if err != nil {
			return err
		}
		boms, err := e.catalog.ListBOMs(ctx)
		if err != nil {
			return err
		}

		missingRoutings := make([]string, 0)
		for _, p := range products {
			if !p.IsMake() {
				continue
			}
			routing, err := e.catalog.GetRouting(ctx, p.ID)
			if err != nil {
				return err
			}
			if routing == nil {
				missingRoutings = append(missingRoutings, p.SKU)
			}
		}

		problems := validateCatalog(products, boms, missingRoutings)
		if err := a.render(opts, "validation", output.ValidationTable(problems)); err != nil {
			return err
		}
		if len(problems) > len(missingRoutings) {
			return ErrValidationFailed
		}
		return nil
	})
}

// validateCatalog reports BOM problems by SKU. Make items without a routing
// are listed as warnings.
func validateCatalog(products []*entities.Product, boms []*entities.BOM, missingRoutings []string) []string {
	skus := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		skus[p.ID] = p.SKU
	}
	sku := func(id uuid.UUID) string {
		if s, ok := skus[id]; ok {
			return s
		}
		return id.String()
	}
	bomOwner := make(map[uuid.UUID]uuid.UUID, len(boms))
	for _, bom := range boms {
		bomOwner[bom.ID] = bom.ProductID
	}

	result := services.NewBOMValidator().ValidateBOMs(boms, products)

	var problems []string
	for _, cycle := range result.CyclePaths {
		path := make([]string, len(cycle))
		for i, id := range cycle {
			path[i] = sku(id)
		}
		problems = append(problems, "BOM cycle: "+strings.Join(path, " -> "))
	}
	for i := 0; i+1 < len(result.DuplicateLines); i += 2 {
		line := result.DuplicateLines[i+1]
		problems = append(problems, fmt.Sprintf("duplicate line for %s at %s in BOM of %s",
			sku(line.ComponentID), line.ConsumeStage, sku(bomOwner[line.BOMID])))
	}
	for _, id := range result.MissingComponents {
		problems = append(problems, "unknown component "+id.String())
	}
	for _, s := range missingRoutings {
		problems = append(problems, "warning: no active routing for "+s)
	}
	return problems
}

func (a *App) runExplode(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("explode")
	sku := fs.String("sku", "", "Product SKU to explode")
	qty := fs.String("qty", "1", "Quantity of the product")
	needDate := fs.String("need-date", "", "Date the product is needed (cascade only)")
	cascade := fs.Bool("cascade", false, "Suggest make and buy orders for shortages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sku == "" {
		return fmt.Errorf("explode requires -sku")
	}
	quantity, err := decimal.NewFromString(*qty)
	if err != nil {
		return fmt.Errorf("invalid qty %q: %w", *qty, err)
	}

	req := dto.ExplodeRequest{Quantity: quantity, Cascade: *cascade}
	if *needDate != "" {
		if req.NeedDate, err = parseTime("need-date", *needDate); err != nil {
			return err
		}
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		product, err := e.product(ctx, *sku)
		if err != nil {
			return err
		}
		req.ProductID = product.ID

		result, err := e.explosion.ExplodeWithOptions(ctx, req)
		if err != nil {
			return err
		}
		return a.render(opts, "explosion", output.ExplosionTables(result)...)
	})
}
