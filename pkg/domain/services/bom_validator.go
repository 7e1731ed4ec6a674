package services

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// BOMValidator provides validation for BOM structure integrity across a whole catalog
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles         bool
	CyclePaths        [][]uuid.UUID
	DuplicateLines    []*entities.BOMLine
	MissingComponents []uuid.UUID
	Errors            []string
}

// Valid reports whether no error was found
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateBOMs checks active BOMs for cycles, duplicate component lines and
// references to products missing from the catalog
func (v *BOMValidator) ValidateBOMs(boms []*entities.BOM, products []*entities.Product) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:        make([][]uuid.UUID, 0),
		DuplicateLines:    make([]*entities.BOMLine, 0),
		MissingComponents: make([]uuid.UUID, 0),
		Errors:            make([]string, 0),
	}

	known := make(map[uuid.UUID]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}

	active := make([]*entities.BOM, 0, len(boms))
	for _, bom := range boms {
		if bom.IsActive {
			active = append(active, bom)
		}
	}

	adjacencyMap := v.buildAdjacencyMap(active)

	cycles := v.detectCycles(adjacencyMap)
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles
	for _, cycle := range cycles {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM cycle detected: %v", cycle))
	}

	result.DuplicateLines = v.detectDuplicateLines(active)
	if len(result.DuplicateLines) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate BOM lines", len(result.DuplicateLines)))
	}

	if len(products) > 0 {
		seen := make(map[uuid.UUID]bool)
		for _, bom := range active {
			for _, line := range bom.Lines {
				if !known[line.ComponentID] && !seen[line.ComponentID] {
					seen[line.ComponentID] = true
					result.MissingComponents = append(result.MissingComponents, line.ComponentID)
					result.Errors = append(result.Errors,
						fmt.Sprintf("BOM %s references unknown component %s", bom.ID, line.ComponentID))
				}
			}
		}
	}

	return result
}

// buildAdjacencyMap creates a map of product -> component relationships
func (v *BOMValidator) buildAdjacencyMap(boms []*entities.BOM) map[uuid.UUID][]uuid.UUID {
	adjacencyMap := make(map[uuid.UUID][]uuid.UUID)

	for _, bom := range boms {
		for _, line := range bom.Lines {
			children := adjacencyMap[bom.ProductID]

			found := false
			for _, child := range children {
				if child == line.ComponentID {
					found = true
					break
				}
			}

			if !found {
				adjacencyMap[bom.ProductID] = append(children, line.ComponentID)
			}
		}
	}

	return adjacencyMap
}

// detectCycles uses DFS to find cycles in the BOM structure
func (v *BOMValidator) detectCycles(adjacencyMap map[uuid.UUID][]uuid.UUID) [][]uuid.UUID {
	visited := make(map[uuid.UUID]bool)
	recursionStack := make(map[uuid.UUID]bool)
	cycles := make([][]uuid.UUID, 0)

	parents := make([]uuid.UUID, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}

	return cycles
}

// dfsDetectCycle performs depth-first search to detect cycles
func (v *BOMValidator) dfsDetectCycle(
	current uuid.UUID,
	adjacencyMap map[uuid.UUID][]uuid.UUID,
	visited map[uuid.UUID]bool,
	recursionStack map[uuid.UUID]bool,
	path []uuid.UUID,
	cycles *[][]uuid.UUID,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, recursionStack, path, cycles)
		} else if recursionStack[child] {
			for i, part := range path {
				if part == child {
					cycle := make([]uuid.UUID, 0, len(path)-i+1)
					cycle = append(cycle, path[i:]...)
					cycle = append(cycle, child)
					*cycles = append(*cycles, cycle)
					break
				}
			}
		}
	}

	recursionStack[current] = false
}

// detectDuplicateLines finds lines repeating the same component at the same stage within one BOM
func (v *BOMValidator) detectDuplicateLines(boms []*entities.BOM) []*entities.BOMLine {
	duplicates := make([]*entities.BOMLine, 0)

	for _, bom := range boms {
		seen := make(map[string]*entities.BOMLine)
		for _, line := range bom.Lines {
			key := fmt.Sprintf("%s|%s|%t", line.ComponentID, line.ConsumeStage, line.IsCostOnly)
			if existing, exists := seen[key]; exists {
				duplicates = append(duplicates, existing, line)
			} else {
				seen[key] = line
			}
		}
	}

	return duplicates
}
