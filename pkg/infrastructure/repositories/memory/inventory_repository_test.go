package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

func TestInventoryRepository_AggregatesLocations(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	productID := entities.NaturalID("product", "FILAMENT")

	repo.AddPosition(&entities.InventoryPosition{ProductID: productID, OnHand: decimal.NewFromInt(6), Allocated: decimal.NewFromInt(5)})
	repo.AddPosition(&entities.InventoryPosition{ProductID: productID, OnHand: decimal.NewFromInt(4), Allocated: decimal.NewFromInt(3)})

	pos, err := repo.GetInventoryPosition(ctx, productID)
	if err != nil {
		t.Fatalf("Failed to get position: %v", err)
	}
	if !pos.OnHand.Equal(decimal.NewFromInt(10)) || !pos.Allocated.Equal(decimal.NewFromInt(8)) {
		t.Errorf("Expected 10 on hand and 8 allocated, got %s and %s", pos.OnHand, pos.Allocated)
	}
	if !pos.Available().Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected available 2, got %s", pos.Available())
	}
}

func TestInventoryRepository_MissingPositionIsZero(t *testing.T) {
	repo := NewInventoryRepository()
	pos, err := repo.GetInventoryPosition(context.Background(), entities.NaturalID("product", "NOTHING"))
	if err != nil {
		t.Fatalf("Expected no error for missing position, got %v", err)
	}
	if !pos.Available().IsZero() {
		t.Errorf("Expected zero available, got %s", pos.Available())
	}
}

func TestInventoryRepository_IncomingSupplyOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	productID := entities.NaturalID("product", "BOX")
	first := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	late, _ := entities.NewIncomingSupply(productID, decimal.NewFromInt(50), decimal.Zero, &second, "PO-LATE")
	undated, _ := entities.NewIncomingSupply(productID, decimal.NewFromInt(5), decimal.Zero, nil, "PO-UNDATED")
	early, _ := entities.NewIncomingSupply(productID, decimal.NewFromInt(20), decimal.Zero, &first, "PO-EARLY")
	done, _ := entities.NewIncomingSupply(productID, decimal.NewFromInt(20), decimal.NewFromInt(20), &first, "PO-DONE")
	for _, s := range []*entities.IncomingSupply{late, undated, early, done} {
		repo.AddIncomingSupply(s)
	}

	supply, err := repo.GetIncomingSupply(ctx, productID)
	if err != nil {
		t.Fatalf("Failed to get supply: %v", err)
	}
	if len(supply) != 3 {
		t.Fatalf("Expected 3 pending records, got %d", len(supply))
	}
	expected := []string{"PO-EARLY", "PO-LATE", "PO-UNDATED"}
	for i, ref := range expected {
		if supply[i].SourceRef != ref {
			t.Errorf("Expected %s at position %d, got %s", ref, i, supply[i].SourceRef)
		}
	}
}
