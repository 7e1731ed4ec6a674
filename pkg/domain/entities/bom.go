package entities

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumeStage identifies the phase of manufacturing at which a BOM line is consumed
type ConsumeStage string

const (
	StageProduction ConsumeStage = "production"
	StageAssembly   ConsumeStage = "assembly"
	StageFinishing  ConsumeStage = "finishing"
	StageShipping   ConsumeStage = "shipping"
	StageAny        ConsumeStage = "any"
)

var hundred = decimal.NewFromInt(100)

// AllStages lists the recognised consume stages
func AllStages() []ConsumeStage {
	return []ConsumeStage{StageProduction, StageAssembly, StageFinishing, StageShipping, StageAny}
}

// ParseConsumeStage converts a string to a ConsumeStage. Empty input defaults to production.
func ParseConsumeStage(s string) (ConsumeStage, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StageProduction, nil
	}
	for _, stage := range AllStages() {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("invalid consume stage: %s", s)
}

// String method for ConsumeStage
func (s ConsumeStage) String() string {
	return string(s)
}

// BOMLine represents a single component line in a Bill of Materials
type BOMLine struct {
	ID           uuid.UUID
	BOMID        uuid.UUID
	ComponentID  uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
	ConsumeStage ConsumeStage
	ScrapFactor  decimal.Decimal // percent
	IsCostOnly   bool
	Sequence     int
}

// NewBOMLine creates a validated BOMLine
func NewBOMLine(
	bomID, componentID uuid.UUID,
	quantity decimal.Decimal,
	unit string,
	stage ConsumeStage,
	scrapFactor decimal.Decimal,
	isCostOnly bool,
	sequence int,
) (*BOMLine, error) {
	if componentID == uuid.Nil {
		return nil, fmt.Errorf("component cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	if scrapFactor.IsNegative() {
		return nil, fmt.Errorf("scrap factor cannot be negative, got %s", scrapFactor)
	}
	if stage == "" {
		stage = StageProduction
	}
	if _, err := ParseConsumeStage(string(stage)); err != nil {
		return nil, err
	}

	return &BOMLine{
		ID:           uuid.New(),
		BOMID:        bomID,
		ComponentID:  componentID,
		Quantity:     quantity,
		Unit:         unit,
		ConsumeStage: stage,
		ScrapFactor:  scrapFactor,
		IsCostOnly:   isCostOnly,
		Sequence:     sequence,
	}, nil
}

// ScrapMultiplier returns 1 + scrap/100
func (l *BOMLine) ScrapMultiplier() decimal.Decimal {
	return decimal.NewFromInt(1).Add(l.ScrapFactor.Div(hundred))
}

// EffectiveQuantity returns the component quantity needed for parentQty units of the parent
func (l *BOMLine) EffectiveQuantity(parentQty decimal.Decimal) decimal.Decimal {
	qty := l.Quantity.Mul(parentQty).Mul(l.ScrapMultiplier())
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}

// BOM is a versioned, product-scoped list of component lines
type BOM struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Version   string
	IsActive  bool
	Lines     []*BOMLine
}

// LinesForStages returns the physical (non cost-only) lines consumed at any of the given stages
func (b *BOM) LinesForStages(stages []ConsumeStage) []*BOMLine {
	if b == nil {
		return nil
	}
	allowed := make(map[ConsumeStage]bool, len(stages))
	for _, s := range stages {
		allowed[s] = true
	}

	var lines []*BOMLine
	for _, line := range b.Lines {
		if line.IsCostOnly {
			continue
		}
		if allowed[line.ConsumeStage] {
			lines = append(lines, line)
		}
	}
	return lines
}

// PhysicalLines returns every line that consumes inventory
func (b *BOM) PhysicalLines() []*BOMLine {
	if b == nil {
		return nil
	}
	var lines []*BOMLine
	for _, line := range b.Lines {
		if !line.IsCostOnly {
			lines = append(lines, line)
		}
	}
	return lines
}
