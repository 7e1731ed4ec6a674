package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/services"
)

//go:embed stages.yaml
var embeddedStages []byte

type stageFile struct {
	Default    []string            `yaml:"default"`
	Operations map[string][]string `yaml:"operations"`
}

// LoadStageTable reads the operation vocabulary from path, or from the embedded
// default when path is empty. A broken embedded copy falls back to the built-in table.
func LoadStageTable(path string) (services.StageTable, error) {
	if strings.TrimSpace(path) == "" {
		table, err := ParseStageTable(embeddedStages)
		if err != nil {
			return services.DefaultStageTable(), nil
		}
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return services.StageTable{}, fmt.Errorf("failed to read stage table %s: %w", path, err)
	}
	table, err := ParseStageTable(raw)
	if err != nil {
		return services.StageTable{}, fmt.Errorf("stage table %s: %w", path, err)
	}
	return table, nil
}

// ParseStageTable decodes a YAML stage table
func ParseStageTable(raw []byte) (services.StageTable, error) {
	var file stageFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return services.StageTable{}, fmt.Errorf("failed to parse stage table: %w", err)
	}
	if len(file.Operations) == 0 {
		return services.StageTable{}, fmt.Errorf("stage table has no operations")
	}

	table := services.StageTable{
		Mappings: make(map[string][]entities.ConsumeStage, len(file.Operations)),
	}
	def, err := parseStages(file.Default)
	if err != nil {
		return services.StageTable{}, fmt.Errorf("default stages: %w", err)
	}
	table.Default = def

	for code, names := range file.Operations {
		stages, err := parseStages(names)
		if err != nil {
			return services.StageTable{}, fmt.Errorf("operation %s: %w", code, err)
		}
		table.Mappings[strings.ToUpper(strings.TrimSpace(code))] = stages
	}
	return table, nil
}

func parseStages(names []string) ([]entities.ConsumeStage, error) {
	stages := make([]entities.ConsumeStage, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("empty stage name")
		}
		stage, err := entities.ParseConsumeStage(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}
