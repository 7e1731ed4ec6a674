package entities

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Namespace used to derive stable identifiers from natural keys (SKU, resource code, run number)
var Namespace = uuid.MustParse("6f1c7a52-3b0e-4c1e-9a64-1d2f0b8e5c41")

// NaturalID derives a deterministic identifier for a record known by a human-readable key
func NaturalID(kind, key string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(kind+":"+strings.ToUpper(strings.TrimSpace(key))))
}

// Product represents a catalog entry that can be produced or purchased
type Product struct {
	ID           uuid.UUID
	SKU          string
	Name         string
	HasBOM       bool
	StorageUnit  string
	PurchaseUnit string
	LeadTimeDays int
}

// NewProduct creates a validated Product with an identifier derived from its SKU
func NewProduct(sku, name string, hasBOM bool, storageUnit string, leadTimeDays int) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, fmt.Errorf("sku cannot be empty")
	}
	if leadTimeDays < 0 {
		return nil, fmt.Errorf("lead time days cannot be negative, got %d", leadTimeDays)
	}
	if storageUnit == "" {
		storageUnit = "ea"
	}

	return &Product{
		ID:           NaturalID("product", sku),
		SKU:          sku,
		Name:         name,
		HasBOM:       hasBOM,
		StorageUnit:  storageUnit,
		PurchaseUnit: storageUnit,
		LeadTimeDays: leadTimeDays,
	}, nil
}

// IsMake reports whether shortages of this product become production suggestions
func (p *Product) IsMake() bool {
	return p.HasBOM
}
