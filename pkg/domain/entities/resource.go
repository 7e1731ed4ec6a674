package entities

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Resource is a schedulable unit (one machine, one bench) belonging to a work center
type Resource struct {
	ID           uuid.UUID
	Code         string
	Name         string
	WorkCenterID *uuid.UUID
	IsActive     bool
}

// NewResource creates a validated, active Resource identified by its code
func NewResource(code, name string, workCenterID *uuid.UUID) (*Resource, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("resource code cannot be empty")
	}
	if name == "" {
		name = code
	}

	return &Resource{
		ID:           NaturalID("resource", code),
		Code:         code,
		Name:         name,
		WorkCenterID: workCenterID,
		IsActive:     true,
	}, nil
}
