package entities

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestBOMLine_Validation(t *testing.T) {
	bomID := uuid.New()
	component := NaturalID("product", "FILAMENT")

	validLine, err := NewBOMLine(bomID, component, decimal.RequireFromString("0.5"), "kg", StageProduction, decimal.Zero, false, 1)
	if err != nil {
		t.Fatalf("Expected valid BOM line creation to succeed: %v", err)
	}
	if !validLine.Quantity.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected quantity 0.5, got %s", validLine.Quantity)
	}

	testCases := []struct {
		name        string
		component   uuid.UUID
		quantity    decimal.Decimal
		stage       ConsumeStage
		scrap       decimal.Decimal
		expectError string
	}{
		{"empty component", uuid.Nil, decimal.NewFromInt(1), StageProduction, decimal.Zero, "component cannot be empty"},
		{"zero quantity", component, decimal.Zero, StageProduction, decimal.Zero, "quantity must be positive, got 0"},
		{"negative quantity", component, decimal.NewFromInt(-1), StageProduction, decimal.Zero, "quantity must be positive, got -1"},
		{"negative scrap", component, decimal.NewFromInt(1), StageProduction, decimal.NewFromInt(-5), "scrap factor cannot be negative, got -5"},
		{"unknown stage", component, decimal.NewFromInt(1), ConsumeStage("painting"), decimal.Zero, "invalid consume stage: painting"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBOMLine(bomID, tc.component, tc.quantity, "ea", tc.stage, tc.scrap, false, 1)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestBOMLine_DefaultStage(t *testing.T) {
	line, err := NewBOMLine(uuid.New(), uuid.New(), decimal.NewFromInt(1), "ea", "", decimal.Zero, false, 1)
	if err != nil {
		t.Fatalf("Expected line creation to succeed: %v", err)
	}
	if line.ConsumeStage != StageProduction {
		t.Errorf("Expected default stage production, got %s", line.ConsumeStage)
	}
}

func TestBOMLine_EffectiveQuantity(t *testing.T) {
	tests := []struct {
		name      string
		qty       string
		scrap     string
		parentQty string
		expected  string
	}{
		{"no scrap", "0.5", "0", "10", "5"},
		{"ten percent scrap", "2", "10", "10", "22"},
		{"fractional scrap", "1", "2.5", "4", "4.1"},
		{"zero parent", "3", "10", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := &BOMLine{
				Quantity:    decimal.RequireFromString(tt.qty),
				ScrapFactor: decimal.RequireFromString(tt.scrap),
			}
			got := line.EffectiveQuantity(decimal.RequireFromString(tt.parentQty))
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBOM_LinesForStages(t *testing.T) {
	bom := &BOM{
		Lines: []*BOMLine{
			{ComponentID: NaturalID("product", "FILAMENT"), ConsumeStage: StageProduction, Quantity: decimal.NewFromInt(1)},
			{ComponentID: NaturalID("product", "BOX"), ConsumeStage: StageShipping, Quantity: decimal.NewFromInt(1)},
			{ComponentID: NaturalID("product", "GLUE"), ConsumeStage: StageAny, Quantity: decimal.NewFromInt(1)},
			{ComponentID: NaturalID("product", "OVERHEAD"), ConsumeStage: StageProduction, Quantity: decimal.NewFromInt(1), IsCostOnly: true},
		},
	}

	lines := bom.LinesForStages([]ConsumeStage{StageProduction, StageAny})
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line.IsCostOnly {
			t.Error("Expected cost-only line to be excluded")
		}
		if line.ConsumeStage == StageShipping {
			t.Error("Expected shipping line to be excluded")
		}
	}

	if got := len(bom.PhysicalLines()); got != 3 {
		t.Errorf("Expected 3 physical lines, got %d", got)
	}

	var nilBOM *BOM
	if lines := nilBOM.LinesForStages([]ConsumeStage{StageAny}); lines != nil {
		t.Errorf("Expected nil lines for nil BOM, got %d", len(lines))
	}
}

func TestParseConsumeStage(t *testing.T) {
	tests := []struct {
		input    string
		expected ConsumeStage
		wantErr  bool
	}{
		{"production", StageProduction, false},
		{" Shipping ", StageShipping, false},
		{"ANY", StageAny, false},
		{"", StageProduction, false},
		{"curing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConsumeStage(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
