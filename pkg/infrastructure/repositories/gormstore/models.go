package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SKU          string    `gorm:"size:64;uniqueIndex;not null"`
	Name         string    `gorm:"size:255"`
	HasBOM       bool      `gorm:"not null;default:false"`
	StorageUnit  string    `gorm:"size:16;not null"`
	PurchaseUnit string    `gorm:"size:16"`
	LeadTimeDays int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProductModel) TableName() string { return "products" }

type BOMModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID      `gorm:"type:uuid;index;not null"`
	Version   string         `gorm:"size:32;not null"`
	IsActive  bool           `gorm:"index;not null;default:false"`
	Lines     []BOMLineModel `gorm:"foreignKey:BOMID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BOMModel) TableName() string { return "boms" }

type BOMLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BOMID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	ComponentID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Unit         string          `gorm:"size:16"`
	ConsumeStage string          `gorm:"size:16;not null"`
	ScrapFactor  decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	IsCostOnly   bool            `gorm:"not null;default:false"`
	Sequence     int             `gorm:"not null"`
}

func (BOMLineModel) TableName() string { return "bom_lines" }

type RoutingModel struct {
	ID         uuid.UUID               `gorm:"type:uuid;primaryKey"`
	ProductID  uuid.UUID               `gorm:"type:uuid;index;not null"`
	Version    string                  `gorm:"size:32;not null"`
	IsActive   bool                    `gorm:"index;not null;default:false"`
	Operations []RoutingOperationModel `gorm:"foreignKey:RoutingID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (RoutingModel) TableName() string { return "routings" }

type RoutingOperationModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RoutingID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	Sequence          int             `gorm:"not null"`
	OperationCode     string          `gorm:"size:32;not null"`
	Name              string          `gorm:"size:255"`
	WorkCenterID      *uuid.UUID      `gorm:"type:uuid"`
	SetupMinutes      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RunMinutesPerUnit decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
}

func (RoutingOperationModel) TableName() string { return "routing_operations" }

// InventoryModel is one product's stock at one location
type InventoryModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Location  string          `gorm:"size:64;not null"`
	OnHand    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	Allocated decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	UpdatedAt time.Time
}

func (InventoryModel) TableName() string { return "inventory_positions" }

type SupplyModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	SourceRef        string          `gorm:"size:64"`
	QuantityOrdered  decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	QuantityReceived decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	ExpectedDate     *time.Time
}

func (SupplyModel) TableName() string { return "incoming_supply" }

type ResourceModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code         string     `gorm:"size:64;uniqueIndex;not null"`
	Name         string     `gorm:"size:255"`
	WorkCenterID *uuid.UUID `gorm:"type:uuid"`
	IsActive     bool       `gorm:"not null;default:true"`
}

func (ResourceModel) TableName() string { return "resources" }

type RunModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RunNumber          string          `gorm:"size:64;uniqueIndex;not null"`
	ProductID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	QuantityOrdered    decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	QuantityCompleted  decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	QuantityScrapped   decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	Status             string          `gorm:"size:16;index;not null"`
	BOMID              *uuid.UUID      `gorm:"type:uuid"`
	RoutingID          *uuid.UUID      `gorm:"type:uuid"`
	CurrentOperationID *uuid.UUID      `gorm:"type:uuid"`
	DueDate            *time.Time
	ReleasedAt         *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (RunModel) TableName() string { return "production_runs" }

type OperationModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RunID               uuid.UUID       `gorm:"type:uuid;index;not null"`
	RoutingOperationID  *uuid.UUID      `gorm:"type:uuid"`
	Sequence            int             `gorm:"not null"`
	OperationCode       string          `gorm:"size:32;not null"`
	Name                string          `gorm:"size:255"`
	WorkCenterID        *uuid.UUID      `gorm:"type:uuid"`
	ResourceID          *uuid.UUID      `gorm:"type:uuid;index"`
	Status              string          `gorm:"size:16;index;not null"`
	ScheduledStart      *time.Time
	ScheduledEnd        *time.Time
	ActualStart         *time.Time
	ActualEnd           *time.Time
	PlannedSetupMinutes decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PlannedRunMinutes   decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	QuantityCompleted   decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	QuantityScrapped    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	Notes               string          `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (OperationModel) TableName() string { return "operations" }
