package services

import (
	"strings"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// StageTable maps operation type codes to the consume stages they draw material from
type StageTable struct {
	Mappings map[string][]entities.ConsumeStage
	Default  []entities.ConsumeStage
}

// DefaultStageTable returns the built-in operation vocabulary
func DefaultStageTable() StageTable {
	production := []entities.ConsumeStage{entities.StageProduction}
	assembly := []entities.ConsumeStage{entities.StageAssembly, entities.StageProduction}
	finishing := []entities.ConsumeStage{entities.StageFinishing}
	shipping := []entities.ConsumeStage{entities.StageShipping}
	anyOnly := []entities.ConsumeStage{}

	return StageTable{
		Mappings: map[string][]entities.ConsumeStage{
			"PRINT":    production,
			"EXTRUDE":  production,
			"MOLD":     production,
			"CUT":      production,
			"MACHINE":  production,
			"ASSEMBLE": assembly,
			"BUILD":    assembly,
			"WELD":     assembly,
			"CLEAN":    anyOnly,
			"SAND":     anyOnly,
			"PAINT":    finishing,
			"COAT":     finishing,
			"QC":       anyOnly,
			"INSPECT":  anyOnly,
			"TEST":     anyOnly,
			"PACK":     shipping,
			"SHIP":     shipping,
			"LABEL":    shipping,
		},
		Default: production,
	}
}

// StageClassifier resolves the consume stages an operation may draw from.
// It is immutable once built and safe for concurrent use.
type StageClassifier struct {
	mappings map[string][]entities.ConsumeStage
	fallback []entities.ConsumeStage
}

// NewStageClassifier builds a classifier from a copy of table. Every resolved
// stage set ends with the universal "any" stage.
func NewStageClassifier(table StageTable) *StageClassifier {
	c := &StageClassifier{
		mappings: make(map[string][]entities.ConsumeStage, len(table.Mappings)),
		fallback: withAny(table.Default),
	}
	if len(table.Default) == 0 {
		c.fallback = []entities.ConsumeStage{entities.StageProduction, entities.StageAny}
	}
	for code, stages := range table.Mappings {
		c.mappings[normalizeCode(code)] = withAny(stages)
	}
	return c
}

// NewDefaultStageClassifier builds a classifier over the built-in vocabulary
func NewDefaultStageClassifier() *StageClassifier {
	return NewStageClassifier(DefaultStageTable())
}

// StagesFor returns the ordered stage set for an operation code. Unknown codes
// resolve to the default set. Never fails.
func (c *StageClassifier) StagesFor(operationCode string) []entities.ConsumeStage {
	stages, ok := c.mappings[normalizeCode(operationCode)]
	if !ok {
		stages = c.fallback
	}
	out := make([]entities.ConsumeStage, len(stages))
	copy(out, stages)
	return out
}

// Codes returns the operation codes with an explicit mapping
func (c *StageClassifier) Codes() []string {
	codes := make([]string, 0, len(c.mappings))
	for code := range c.mappings {
		codes = append(codes, code)
	}
	return codes
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func withAny(stages []entities.ConsumeStage) []entities.ConsumeStage {
	out := make([]entities.ConsumeStage, 0, len(stages)+1)
	seen := make(map[entities.ConsumeStage]bool, len(stages)+1)
	for _, s := range stages {
		if s == entities.StageAny || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return append(out, entities.StageAny)
}
