package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

// InventoryRepository provides read access to aggregated inventory positions.
// A product without inventory records yields a zero position, not an error.
type InventoryRepository interface {
	GetInventoryPosition(ctx context.Context, productID uuid.UUID) (*entities.InventoryPosition, error)
}

// SupplyRepository provides read access to pending purchase commitments,
// ordered by expected date.
type SupplyRepository interface {
	GetIncomingSupply(ctx context.Context, productID uuid.UUID) ([]*entities.IncomingSupply, error)
}
