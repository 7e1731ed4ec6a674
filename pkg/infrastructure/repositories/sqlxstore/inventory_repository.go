// Package sqlxstore reads inventory positions and incoming supply with plain
// SQL over the database the gorm store writes.
package sqlxstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewDB wraps an open connection pool for the named driver ("sqlite" or "postgres")
func NewDB(db *sql.DB, driver string) *sqlx.DB {
	if driver == "" {
		driver = "sqlite"
	}
	return sqlx.NewDb(db, driver)
}

type positionRow struct {
	OnHand    decimal.Decimal `db:"on_hand"`
	Allocated decimal.Decimal `db:"allocated"`
}

type supplyRow struct {
	ID           uuid.UUID       `db:"id"`
	ProductID    uuid.UUID       `db:"product_id"`
	SourceRef    string          `db:"source_ref"`
	Quantity     decimal.Decimal `db:"quantity"`
	ExpectedDate *time.Time      `db:"expected_date"`
}

// InventoryRepository aggregates stock across locations and lists pending supply
type InventoryRepository struct {
	DB *sqlx.DB
}

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{DB: db}
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)
var _ repositories.SupplyRepository = (*InventoryRepository)(nil)

// GetInventoryPosition sums every location of the product. A product with no
// stock rows has a zero position.
func (r *InventoryRepository) GetInventoryPosition(ctx context.Context, productID uuid.UUID) (*entities.InventoryPosition, error) {
	query := r.DB.Rebind(`
		SELECT COALESCE(SUM(on_hand), 0) AS on_hand, COALESCE(SUM(allocated), 0) AS allocated
		FROM inventory_positions
		WHERE product_id = ?`)

	var row positionRow
	if err := r.DB.GetContext(ctx, &row, query, productID); err != nil {
		return nil, fmt.Errorf("failed to get inventory position for %s: %w", productID, err)
	}
	return &entities.InventoryPosition{
		ProductID: productID,
		OnHand:    row.OnHand,
		Allocated: row.Allocated,
	}, nil
}

// GetIncomingSupply lists purchase lines with quantity still to receive,
// earliest expected date first and undated lines last
func (r *InventoryRepository) GetIncomingSupply(ctx context.Context, productID uuid.UUID) ([]*entities.IncomingSupply, error) {
	query := r.DB.Rebind(`
		SELECT id, product_id, source_ref, quantity_ordered - quantity_received AS quantity, expected_date
		FROM incoming_supply
		WHERE product_id = ? AND quantity_ordered > quantity_received
		ORDER BY CASE WHEN expected_date IS NULL THEN 1 ELSE 0 END, expected_date, source_ref`)

	var rows []supplyRow
	if err := r.DB.SelectContext(ctx, &rows, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list incoming supply for %s: %w", productID, err)
	}

	out := make([]*entities.IncomingSupply, 0, len(rows))
	for _, row := range rows {
		out = append(out, &entities.IncomingSupply{
			ProductID:    row.ProductID,
			Quantity:     row.Quantity,
			ExpectedDate: row.ExpectedDate,
			SourceRef:    row.SourceRef,
			SourceID:     row.ID,
		})
	}
	return out, nil
}
