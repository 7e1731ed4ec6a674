package testing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/infrastructure/repositories/memory"
)

// Scenario bundles seeded in-memory repositories for service tests
type Scenario struct {
	Catalog    *memory.CatalogRepository
	Inventory  *memory.InventoryRepository
	Production *memory.ProductionRepository

	Widget   *entities.Product
	Filament *entities.Product
	Box      *entities.Product
	BOM      *entities.BOM
	Routing  *entities.Routing
	Printer  *entities.Resource
	Packer   *entities.Resource
}

// LineSpec describes a BOM line for MustBOM
type LineSpec struct {
	Component *entities.Product
	Quantity  string
	Stage     entities.ConsumeStage
	Scrap     string
	CostOnly  bool
}

// StepSpec describes a routing step for MustRouting
type StepSpec struct {
	Code       string
	Setup      string
	RunPerUnit string
}

// Dec parses a decimal literal, panicking on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewEmptyScenario creates empty repositories
func NewEmptyScenario() *Scenario {
	return &Scenario{
		Catalog:    memory.NewCatalogRepository(16),
		Inventory:  memory.NewInventoryRepository(),
		Production: memory.NewProductionRepository(),
	}
}

// BuildFilamentBoxScenario builds a printed widget that consumes filament at
// PRINT and a box at PACK, with 10kg of filament and no boxes on hand
func BuildFilamentBoxScenario() *Scenario {
	s := NewEmptyScenario()

	s.Widget = s.MustProduct("WIDGET", true, 2)
	s.Filament = s.MustProductWithUnit("FILAMENT-PLA", "kg", false, 7)
	s.Box = s.MustProduct("BOX-SMALL", false, 3)

	s.BOM = s.MustBOM(s.Widget,
		LineSpec{Component: s.Filament, Quantity: "0.5", Stage: entities.StageProduction},
		LineSpec{Component: s.Box, Quantity: "1", Stage: entities.StageShipping},
	)
	s.Routing = s.MustRouting(s.Widget,
		StepSpec{Code: "PRINT", Setup: "30", RunPerUnit: "20"},
		StepSpec{Code: "PACK", Setup: "5", RunPerUnit: "1"},
	)

	s.SetStock(s.Filament, "10", "0")
	s.SetStock(s.Box, "0", "0")

	s.Printer = s.MustResource("PRINTER-1")
	s.Packer = s.MustResource("PACK-BENCH")
	return s
}

// MustProduct adds a product to the catalog
func (s *Scenario) MustProduct(sku string, hasBOM bool, leadTimeDays int) *entities.Product {
	return s.MustProductWithUnit(sku, "ea", hasBOM, leadTimeDays)
}

// MustProductWithUnit adds a product stocked in unit
func (s *Scenario) MustProductWithUnit(sku, unit string, hasBOM bool, leadTimeDays int) *entities.Product {
	product, err := entities.NewProduct(sku, sku, hasBOM, unit, leadTimeDays)
	if err != nil {
		panic(err)
	}
	s.Catalog.AddProduct(product)
	return product
}

// MustBOM adds an active BOM for parent
func (s *Scenario) MustBOM(parent *entities.Product, lines ...LineSpec) *entities.BOM {
	bom := &entities.BOM{
		ID:        entities.NaturalID("bom", parent.SKU+"/1"),
		ProductID: parent.ID,
		Version:   "1",
		IsActive:  true,
	}
	for i, spec := range lines {
		scrap := decimal.Zero
		if spec.Scrap != "" {
			scrap = Dec(spec.Scrap)
		}
		line, err := entities.NewBOMLine(
			bom.ID,
			spec.Component.ID,
			Dec(spec.Quantity),
			spec.Component.StorageUnit,
			spec.Stage,
			scrap,
			spec.CostOnly,
			(i+1)*10,
		)
		if err != nil {
			panic(err)
		}
		bom.Lines = append(bom.Lines, line)
	}
	s.Catalog.AddBOM(bom)
	return bom
}

// MustRouting adds an active routing for product with steps numbered 10, 20, ...
func (s *Scenario) MustRouting(product *entities.Product, steps ...StepSpec) *entities.Routing {
	routing := &entities.Routing{
		ID:        uuid.New(),
		ProductID: product.ID,
		Version:   "1",
		IsActive:  true,
	}
	for i, spec := range steps {
		step, err := entities.NewRoutingOperation(routing.ID, (i+1)*10, spec.Code, "", Dec(spec.Setup), Dec(spec.RunPerUnit))
		if err != nil {
			panic(err)
		}
		routing.Operations = append(routing.Operations, step)
	}
	if err := s.Catalog.AddRouting(routing); err != nil {
		panic(err)
	}
	return routing
}

// SetStock replaces the on-hand and allocated quantities of product
func (s *Scenario) SetStock(product *entities.Product, onHand, allocated string) {
	pos, err := entities.NewInventoryPosition(product.ID, Dec(onHand), Dec(allocated))
	if err != nil {
		panic(err)
	}
	s.Inventory.SetPosition(pos)
}

// AddSupply records a pending purchase for product
func (s *Scenario) AddSupply(product *entities.Product, qty string, expected *time.Time, ref string) *entities.IncomingSupply {
	supply, err := entities.NewIncomingSupply(product.ID, Dec(qty), decimal.Zero, expected, ref)
	if err != nil {
		panic(err)
	}
	s.Inventory.AddIncomingSupply(supply)
	return supply
}

// MustResource adds an active resource
func (s *Scenario) MustResource(code string) *entities.Resource {
	resource, err := entities.NewResource(code, code, nil)
	if err != nil {
		panic(err)
	}
	s.Production.AddResource(resource)
	return resource
}

// MustRun saves a draft run for product
func (s *Scenario) MustRun(runNumber string, product *entities.Product, qty string) *entities.ProductionRun {
	run, err := entities.NewProductionRun(runNumber, product.ID, Dec(qty))
	if err != nil {
		panic(err)
	}
	if err := s.Production.SaveRun(context.Background(), run); err != nil {
		panic(err)
	}
	return run
}

// OperationByCode returns the run's first operation with the given code
func (s *Scenario) OperationByCode(runID uuid.UUID, code string) *entities.Operation {
	ops, err := s.Production.ListOperations(context.Background(), runID)
	if err != nil {
		panic(err)
	}
	for _, op := range ops {
		if op.OperationCode == code {
			return op
		}
	}
	return nil
}

// At returns a fixed UTC time on 2025-07-01 at hour:minute
func At(hour, minute int) time.Time {
	return time.Date(2025, 7, 1, hour, minute, 0, 0, time.UTC)
}
