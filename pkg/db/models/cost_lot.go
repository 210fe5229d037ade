package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// CostLot is one priced slice of inventory. Pool lots carry the unit's own
// id as resource ref; lots attached to a business record (a sale, a pack
// opening) carry that record's ref so rollbacks can find them. Child lots
// hang off a parent lot to preserve a composite's per-child cost breakdown.
type CostLot struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StockUnitID uuid.UUID `gorm:"column:stock_unit_id;type:uuid;not null;index"`

	ResourceType enums.ResourceType `gorm:"column:resource_type;type:resource_type;not null;index:idx_cost_lot_resource"`
	ResourceID   uuid.UUID          `gorm:"column:resource_id;type:uuid;not null;index:idx_cost_lot_resource"`

	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric;not null"`
	Count     int             `gorm:"column:count;not null"`
	ArrivedAt time.Time       `gorm:"column:arrived_at;not null"`

	// Exact is false for synthetic lots written when consumption outran the
	// pool; their price is an estimate, not a recorded purchase cost.
	Exact bool `gorm:"column:exact;not null;default:true"`

	ParentLotID *uuid.UUID `gorm:"column:parent_lot_id;type:uuid;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CostLot) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TotalPrice returns unit price times count.
func (c *CostLot) TotalPrice() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Count)))
}
