package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// Scenario file names, all optional except products.csv
const (
	ProductsFile  = "products.csv"
	BOMFile       = "bom.csv"
	RoutingFile   = "routing.csv"
	InventoryFile = "inventory.csv"
	SupplyFile    = "supply.csv"
	ResourcesFile = "resources.csv"
	RunsFile      = "runs.csv"
)

var (
	productsHeader  = []string{"sku", "name", "has_bom", "storage_unit", "lead_time_days"}
	bomHeader       = []string{"parent_sku", "bom_version", "active", "component_sku", "quantity", "consume_stage", "scrap_factor", "is_cost_only", "sequence"}
	routingHeader   = []string{"product_sku", "routing_version", "active", "sequence", "operation_code", "name", "setup_minutes", "run_minutes_per_unit"}
	inventoryHeader = []string{"sku", "location", "on_hand", "allocated"}
	supplyHeader    = []string{"source_ref", "sku", "quantity_ordered", "quantity_received", "expected_date"}
	resourcesHeader = []string{"code", "name", "work_center"}
	runsHeader      = []string{"run_number", "product_sku", "quantity", "due_date"}
)

// Loader handles loading a production scenario from a directory of CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadDir reads every scenario file present in dir. Products are resolved
// first so later files can reference them by SKU.
func (l *Loader) LoadDir(dir string) (*Dataset, error) {
	ds := &Dataset{}
	products := make(map[string]*entities.Product)

	steps := []struct {
		file     string
		header   []string
		required bool
		parse    func(row int, record []string) error
	}{
		{ProductsFile, productsHeader, true, func(_ int, r []string) error {
			p, err := parseProduct(r)
			if err != nil {
				return err
			}
			products[strings.ToUpper(p.SKU)] = p
			ds.Products = append(ds.Products, p)
			return nil
		}},
		{BOMFile, bomHeader, false, func(_ int, r []string) error { return ds.addBOMLine(r, products) }},
		{RoutingFile, routingHeader, false, func(_ int, r []string) error { return ds.addRoutingStep(r, products) }},
		{InventoryFile, inventoryHeader, false, func(_ int, r []string) error {
			pos, err := parsePosition(r, products)
			if err != nil {
				return err
			}
			ds.Stock = append(ds.Stock, StockRow{InventoryPosition: pos, Location: defaultString(r[1], "MAIN")})
			return nil
		}},
		{SupplyFile, supplyHeader, false, func(_ int, r []string) error {
			s, err := parseSupply(r, products)
			if err != nil {
				return err
			}
			ds.Supply = append(ds.Supply, s)
			return nil
		}},
		{ResourcesFile, resourcesHeader, false, func(_ int, r []string) error {
			res, err := parseResource(r)
			if err != nil {
				return err
			}
			ds.Resources = append(ds.Resources, res)
			return nil
		}},
		{RunsFile, runsHeader, false, func(_ int, r []string) error {
			run, err := parseRun(r, products)
			if err != nil {
				return err
			}
			ds.Runs = append(ds.Runs, run)
			return nil
		}},
	}

	for _, step := range steps {
		path := filepath.Join(dir, step.file)
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) && !step.required {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		err = readRecords(file, step.file, step.header, step.parse)
		file.Close()
		if err != nil {
			return nil, err
		}
	}

	for _, routing := range ds.Routings {
		if err := routing.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", RoutingFile, err)
		}
	}
	return ds, nil
}

// readRecords validates the header then hands each data row to parse.
// Errors name the file and the 1-based row number including the header.
func readRecords(r io.Reader, name string, expectedHeader []string, parse func(row int, record []string) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s CSV: %w", name, err)
	}

	if len(records) == 0 {
		return fmt.Errorf("%s CSV must have a header row", name)
	}
	if !validateHeader(records[0], expectedHeader) {
		return fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", name, expectedHeader, records[0])
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return fmt.Errorf("%s CSV row %d: expected %d columns, got %d", name, i+2, len(expectedHeader), len(record))
		}
		if err := parse(i+2, record); err != nil {
			return fmt.Errorf("%s CSV row %d: %w", name, i+2, err)
		}
	}
	return nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseProduct(record []string) (*entities.Product, error) {
	hasBOM, err := parseBool("has_bom", record[2])
	if err != nil {
		return nil, err
	}
	leadTime, err := parseInt("lead_time_days", record[4], 0)
	if err != nil {
		return nil, err
	}
	return entities.NewProduct(record[0], record[1], hasBOM, strings.TrimSpace(record[3]), leadTime)
}

func (ds *Dataset) addBOMLine(record []string, products map[string]*entities.Product) error {
	parent, err := lookup(products, record[0])
	if err != nil {
		return err
	}
	component, err := lookup(products, record[3])
	if err != nil {
		return err
	}
	version := defaultString(record[1], "1")
	active, err := parseBool("active", record[2])
	if err != nil {
		return err
	}
	qty, err := parseDecimal("quantity", record[4], decimal.Zero)
	if err != nil {
		return err
	}
	stage, err := entities.ParseConsumeStage(record[5])
	if err != nil {
		return err
	}
	scrap, err := parseDecimal("scrap_factor", record[6], decimal.Zero)
	if err != nil {
		return err
	}
	costOnly, err := parseBool("is_cost_only", record[7])
	if err != nil {
		return err
	}

	bomID := entities.NaturalID("bom", parent.SKU+"/"+version)
	bom := ds.bom(bomID)
	if bom == nil {
		bom = &entities.BOM{ID: bomID, ProductID: parent.ID, Version: version, IsActive: active}
		ds.BOMs = append(ds.BOMs, bom)
	}

	sequence, err := parseInt("sequence", record[8], (len(bom.Lines)+1)*10)
	if err != nil {
		return err
	}

	line, err := entities.NewBOMLine(bomID, component.ID, qty, component.StorageUnit, stage, scrap, costOnly, sequence)
	if err != nil {
		return err
	}
	line.ID = entities.NaturalID("bom-line", fmt.Sprintf("%s/%s/%d", parent.SKU, version, sequence))
	bom.Lines = append(bom.Lines, line)
	return nil
}

func (ds *Dataset) addRoutingStep(record []string, products map[string]*entities.Product) error {
	product, err := lookup(products, record[0])
	if err != nil {
		return err
	}
	version := defaultString(record[1], "1")
	active, err := parseBool("active", record[2])
	if err != nil {
		return err
	}
	sequence, err := parseInt("sequence", record[3], 0)
	if err != nil {
		return err
	}
	setup, err := parseDecimal("setup_minutes", record[6], decimal.Zero)
	if err != nil {
		return err
	}
	runPerUnit, err := parseDecimal("run_minutes_per_unit", record[7], decimal.Zero)
	if err != nil {
		return err
	}

	routingID := entities.NaturalID("routing", product.SKU+"/"+version)
	routing := ds.routing(routingID)
	if routing == nil {
		routing = &entities.Routing{ID: routingID, ProductID: product.ID, Version: version, IsActive: active}
		ds.Routings = append(ds.Routings, routing)
	}

	step, err := entities.NewRoutingOperation(routingID, sequence, record[4], strings.TrimSpace(record[5]), setup, runPerUnit)
	if err != nil {
		return err
	}
	step.ID = entities.NaturalID("routing-op", fmt.Sprintf("%s/%s/%d", product.SKU, version, sequence))
	routing.Operations = append(routing.Operations, step)
	return nil
}

func parsePosition(record []string, products map[string]*entities.Product) (*entities.InventoryPosition, error) {
	product, err := lookup(products, record[0])
	if err != nil {
		return nil, err
	}
	onHand, err := parseDecimal("on_hand", record[2], decimal.Zero)
	if err != nil {
		return nil, err
	}
	allocated, err := parseDecimal("allocated", record[3], decimal.Zero)
	if err != nil {
		return nil, err
	}
	return entities.NewInventoryPosition(product.ID, onHand, allocated)
}

func parseSupply(record []string, products map[string]*entities.Product) (*entities.IncomingSupply, error) {
	product, err := lookup(products, record[1])
	if err != nil {
		return nil, err
	}
	ordered, err := parseDecimal("quantity_ordered", record[2], decimal.Zero)
	if err != nil {
		return nil, err
	}
	received, err := parseDecimal("quantity_received", record[3], decimal.Zero)
	if err != nil {
		return nil, err
	}
	expected, err := parseDate("expected_date", record[4])
	if err != nil {
		return nil, err
	}
	return entities.NewIncomingSupply(product.ID, ordered, received, expected, strings.TrimSpace(record[0]))
}

func parseResource(record []string) (*entities.Resource, error) {
	var workCenter *uuid.UUID
	if code := strings.TrimSpace(record[2]); code != "" {
		id := entities.NaturalID("work-center", code)
		workCenter = &id
	}
	return entities.NewResource(record[0], strings.TrimSpace(record[1]), workCenter)
}

func parseRun(record []string, products map[string]*entities.Product) (*entities.ProductionRun, error) {
	product, err := lookup(products, record[1])
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimal("quantity", record[2], decimal.Zero)
	if err != nil {
		return nil, err
	}
	due, err := parseDate("due_date", record[3])
	if err != nil {
		return nil, err
	}
	run, err := entities.NewProductionRun(record[0], product.ID, qty)
	if err != nil {
		return nil, err
	}
	run.DueDate = due
	return run, nil
}

func lookup(products map[string]*entities.Product, sku string) (*entities.Product, error) {
	product, ok := products[strings.ToUpper(strings.TrimSpace(sku))]
	if !ok {
		return nil, fmt.Errorf("unknown sku: %s", sku)
	}
	return product, nil
}

func parseBool(field, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("invalid %s: %s", field, s)
	}
}

func parseInt(field, s string, fallback int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", field, s)
	}
	return v, nil
}

func parseDecimal(field, s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", field, s)
	}
	return v, nil
}

func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %s (expected YYYY-MM-DD)", field, s)
	}
	return &t, nil
}

func defaultString(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
