package mrp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/application/dto"
	testhelpers "github.com/vsinha/prodplan/pkg/application/services/testing"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/infrastructure/events"
)

// Helper to create test explosion service
func newTestExplosionService(s *testhelpers.Scenario) *ExplosionService {
	return NewExplosionService(Repositories{
		Products:  s.Catalog,
		BOMs:      s.Catalog,
		Inventory: s.Inventory,
		Supply:    s.Inventory,
	}, EngineConfig{MaxCacheEntries: 100, MaxDepth: 16, Concurrency: 4}, nil)
}

func mustRequirement(t *testing.T, result *dto.ExplosionResult, product *entities.Product) entities.NetRequirement {
	t.Helper()
	req, ok := result.Requirement(product.ID)
	if !ok {
		t.Fatalf("Expected requirement for %s", product.SKU)
	}
	return req
}

func TestExplosionService_FilamentBoxScenario(t *testing.T) {
	s := testhelpers.BuildFilamentBoxScenario()
	service := newTestExplosionService(s)

	result, err := service.Explode(context.Background(), s.Widget.ID, testhelpers.Dec("10"))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}

	if len(result.Requirements) != 2 {
		t.Fatalf("Expected 2 requirements, got %d", len(result.Requirements))
	}

	filament := mustRequirement(t, result, s.Filament)
	if !filament.GrossQty.Equal(testhelpers.Dec("5")) {
		t.Errorf("Expected filament gross 5, got %s", filament.GrossQty)
	}
	if !filament.ShortQty.IsZero() {
		t.Errorf("Expected filament short 0, got %s", filament.ShortQty)
	}
	if filament.Unit != "kg" {
		t.Errorf("Expected filament unit kg, got %s", filament.Unit)
	}

	box := mustRequirement(t, result, s.Box)
	if !box.ShortQty.Equal(testhelpers.Dec("10")) {
		t.Errorf("Expected box short 10, got %s", box.ShortQty)
	}
	if filament.IsMake || box.IsMake {
		t.Error("Expected purchased components to be buy items")
	}

	// level ties sort by SKU
	if result.Requirements[0].SKU != "BOX-SMALL" {
		t.Errorf("Expected BOX-SMALL first, got %s", result.Requirements[0].SKU)
	}
}

func TestExplosionService_AllocationAwareShortage(t *testing.T) {
	s := testhelpers.NewEmptyScenario()
	parent := s.MustProduct("PARENT", true, 0)
	part := s.MustProduct("PART", false, 0)
	s.MustBOM(parent, testhelpers.LineSpec{Component: part, Quantity: "1", Stage: entities.StageProduction})
	s.SetStock(part, "10", "8")

	result, err := newTestExplosionService(s).Explode(context.Background(), parent.ID, testhelpers.Dec("5"))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}

	req := mustRequirement(t, result, part)
	if !req.AvailableQty.Equal(testhelpers.Dec("2")) {
		t.Errorf("Expected available 2, got %s", req.AvailableQty)
	}
	if !req.ShortQty.Equal(testhelpers.Dec("3")) {
		t.Errorf("Expected short 3, got %s", req.ShortQty)
	}
}

func TestExplosionService_IncomingSupplyCounts(t *testing.T) {
	s := testhelpers.BuildFilamentBoxScenario()
	due := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	s.AddSupply(s.Box, "4", &due, "PO-100")

	result, err := newTestExplosionService(s).Explode(context.Background(), s.Widget.ID, testhelpers.Dec("10"))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}

	box := mustRequirement(t, result, s.Box)
	if !box.ShortQty.Equal(testhelpers.Dec("6")) {
		t.Errorf("Expected box short 6 after incoming supply, got %s", box.ShortQty)
	}
}

func TestExplosionService_MultiLevelAggregation(t *testing.T) {
	s := testhelpers.NewEmptyScenario()
	top := s.MustProduct("TOP", true, 0)
	sub := s.MustProduct("SUB", true, 0)
	bolt := s.MustProduct("BOLT", false, 0)
	label := s.MustProduct("LABEL-COST", false, 0)

	s.MustBOM(top,
		testhelpers.LineSpec{Component: sub, Quantity: "2", Stage: entities.StageAssembly, Scrap: "10"},
		testhelpers.LineSpec{Component: bolt, Quantity: "1", Stage: entities.StageAssembly},
		testhelpers.LineSpec{Component: label, Quantity: "1", Stage: entities.StageShipping, CostOnly: true},
	)
	s.MustBOM(sub, testhelpers.LineSpec{Component: bolt, Quantity: "3", Stage: entities.StageProduction})

	result, err := newTestExplosionService(s).Explode(context.Background(), top.ID, testhelpers.Dec("1"))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}

	if _, ok := result.Requirement(label.ID); ok {
		t.Error("Expected cost-only line to be excluded")
	}
	if _, ok := result.Requirement(top.ID); ok {
		t.Error("Expected root product to be excluded")
	}

	subReq := mustRequirement(t, result, sub)
	if !subReq.GrossQty.Equal(testhelpers.Dec("2.2")) {
		t.Errorf("Expected SUB gross 2.2, got %s", subReq.GrossQty)
	}
	if !subReq.IsMake {
		t.Error("Expected SUB to be a make item")
	}

	boltReq := mustRequirement(t, result, bolt)
	if !boltReq.GrossQty.Equal(testhelpers.Dec("7.6")) {
		t.Errorf("Expected BOLT gross 7.6, got %s", boltReq.GrossQty)
	}
	if boltReq.Level != 2 {
		t.Errorf("Expected BOLT at deepest level 2, got %d", boltReq.Level)
	}
	if result.Requirements[len(result.Requirements)-1].ProductID != bolt.ID {
		t.Error("Expected deepest component last")
	}
}

func TestExplosionService_Errors(t *testing.T) {
	s := testhelpers.NewEmptyScenario()
	a := s.MustProduct("A", true, 0)
	b := s.MustProduct("B", true, 0)
	c := s.MustProduct("C", true, 0)
	s.MustBOM(a, testhelpers.LineSpec{Component: b, Quantity: "1", Stage: entities.StageProduction})
	s.MustBOM(b, testhelpers.LineSpec{Component: c, Quantity: "1", Stage: entities.StageProduction})
	s.MustBOM(c, testhelpers.LineSpec{Component: a, Quantity: "1", Stage: entities.StageProduction})

	selfRef := s.MustProduct("SELF", true, 0)
	s.MustBOM(selfRef, testhelpers.LineSpec{Component: selfRef, Quantity: "1", Stage: entities.StageProduction})

	orphanParent := s.MustProduct("ORPHAN-PARENT", true, 0)
	ghost := &entities.Product{ID: uuid.New(), SKU: "GHOST"}
	s.MustBOM(orphanParent, testhelpers.LineSpec{Component: ghost, Quantity: "1", Stage: entities.StageProduction})

	service := newTestExplosionService(s)
	ctx := context.Background()

	tests := []struct {
		name      string
		productID uuid.UUID
		qty       string
		want      error
	}{
		{"cycle", a.ID, "1", apperr.ErrStructural},
		{"self reference", selfRef.ID, "1", apperr.ErrStructural},
		{"missing component", orphanParent.ID, "1", apperr.ErrStructural},
		{"unknown product", uuid.New(), "1", apperr.ErrNotFound},
		{"zero quantity", a.ID, "0", apperr.ErrValidation},
		{"negative quantity", a.ID, "-2", apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Explode(ctx, tt.productID, testhelpers.Dec(tt.qty))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	_, err := service.Explode(ctx, a.ID, testhelpers.Dec("1"))
	var structural *apperr.StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("Expected StructuralError, got %v", err)
	}
	expectedPath := []uuid.UUID{a.ID, b.ID, c.ID, a.ID}
	if len(structural.Path) != len(expectedPath) {
		t.Fatalf("Expected path of %d, got %v", len(expectedPath), structural.Path)
	}
	for i, id := range expectedPath {
		if structural.Path[i] != id {
			t.Errorf("Expected path[%d] = %s, got %s", i, id, structural.Path[i])
		}
	}

	_, err = service.Explode(ctx, selfRef.ID, testhelpers.Dec("1"))
	if !errors.As(err, &structural) {
		t.Fatalf("Expected StructuralError for self reference, got %v", err)
	}
	if len(structural.Path) != 2 || structural.Path[0] != selfRef.ID || structural.Path[1] != selfRef.ID {
		t.Errorf("Expected path SELF -> SELF, got %v", structural.Path)
	}
}

func TestExplosionService_MaxDepth(t *testing.T) {
	s := testhelpers.NewEmptyScenario()
	chain := []*entities.Product{
		s.MustProduct("L0", true, 0),
		s.MustProduct("L1", true, 0),
		s.MustProduct("L2", true, 0),
		s.MustProduct("L3", false, 0),
	}
	for i := 0; i < len(chain)-1; i++ {
		s.MustBOM(chain[i], testhelpers.LineSpec{Component: chain[i+1], Quantity: "1", Stage: entities.StageProduction})
	}

	shallow := NewExplosionService(Repositories{
		Products: s.Catalog, BOMs: s.Catalog, Inventory: s.Inventory, Supply: s.Inventory,
	}, EngineConfig{MaxDepth: 2, Concurrency: 1}, nil)

	if _, err := shallow.Explode(context.Background(), chain[0].ID, testhelpers.Dec("1")); !errors.Is(err, apperr.ErrStructural) {
		t.Errorf("Expected structural error past max depth, got %v", err)
	}
	if _, err := newTestExplosionService(s).Explode(context.Background(), chain[0].ID, testhelpers.Dec("1")); err != nil {
		t.Errorf("Expected chain within depth to explode, got %v", err)
	}
}

func TestExplosionService_CacheScalesAndResets(t *testing.T) {
	s := testhelpers.BuildFilamentBoxScenario()
	service := newTestExplosionService(s)
	ctx := context.Background()

	if _, err := service.Explode(ctx, s.Widget.ID, testhelpers.Dec("10")); err != nil {
		t.Fatalf("Explode failed: %v", err)
	}
	if service.CacheSize() != 1 {
		t.Fatalf("Expected 1 cached explosion, got %d", service.CacheSize())
	}

	result, err := service.Explode(ctx, s.Widget.ID, testhelpers.Dec("4"))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}
	if filament := mustRequirement(t, result, s.Filament); !filament.GrossQty.Equal(testhelpers.Dec("2")) {
		t.Errorf("Expected cached explosion scaled to 2, got %s", filament.GrossQty)
	}

	service.Reset()
	if service.CacheSize() != 0 {
		t.Errorf("Expected empty cache after reset, got %d", service.CacheSize())
	}
}

func TestExplosionService_Cascade(t *testing.T) {
	s := testhelpers.NewEmptyScenario()
	top := s.MustProduct("TOP", true, 5)
	sub := s.MustProduct("SUB", true, 3)
	raw := s.MustProduct("RAW", false, 10)
	s.MustBOM(top, testhelpers.LineSpec{Component: sub, Quantity: "1", Stage: entities.StageAssembly})
	s.MustBOM(sub, testhelpers.LineSpec{Component: raw, Quantity: "2", Stage: entities.StageProduction})

	need := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	result, err := newTestExplosionService(s).ExplodeWithOptions(context.Background(), dto.ExplodeRequest{
		ProductID: top.ID,
		Quantity:  testhelpers.Dec("3"),
		NeedDate:  need,
		Cascade:   true,
	})
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}

	if len(result.SuggestedOrders) != 2 {
		t.Fatalf("Expected 2 suggested orders, got %d", len(result.SuggestedOrders))
	}

	for _, order := range result.SuggestedOrders {
		switch order.ProductID {
		case sub.ID:
			if order.OrderType != entities.Make {
				t.Errorf("Expected make order for SUB, got %s", order.OrderType)
			}
			if expected := need.AddDate(0, 0, -5); !order.NeedDate.Equal(expected) {
				t.Errorf("Expected SUB need date %s, got %s", expected, order.NeedDate)
			}
		case raw.ID:
			if order.OrderType != entities.Buy {
				t.Errorf("Expected buy order for RAW, got %s", order.OrderType)
			}
			if !order.Quantity.Equal(testhelpers.Dec("6")) {
				t.Errorf("Expected RAW quantity 6, got %s", order.Quantity)
			}
			if expected := need.AddDate(0, 0, -8); !order.NeedDate.Equal(expected) {
				t.Errorf("Expected RAW need date %s, got %s", expected, order.NeedDate)
			}
			if order.ParentProductID != sub.ID {
				t.Errorf("Expected RAW parent SUB, got %s", order.ParentProductID)
			}
		}
	}
}

func TestEventDrivenExplosionService_PublishesShortages(t *testing.T) {
	s := testhelpers.BuildFilamentBoxScenario()
	store := events.NewInMemoryEventStore(nil)
	service := NewEventDrivenExplosionService(newTestExplosionService(s), store, nil)

	if _, err := service.Explode(context.Background(), s.Widget.ID, testhelpers.Dec("10")); err != nil {
		t.Fatalf("Explode failed: %v", err)
	}

	if got := len(store.EventsOfType(events.RequirementsExplodedEvent)); got != 1 {
		t.Errorf("Expected 1 exploded event, got %d", got)
	}
	shortages := store.EventsOfType(events.ShortageIdentifiedEvent)
	if len(shortages) != 1 {
		t.Fatalf("Expected 1 shortage event, got %d", len(shortages))
	}
	data := shortages[0].Data().(events.ShortageIdentified)
	if data.Requirement.ProductID != s.Box.ID {
		t.Errorf("Expected shortage for box, got %s", data.Requirement.SKU)
	}
}
