package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompositeDefinition is one line of a composite item's recipe: which child
// stock unit it consumes and how many per assembled unit. The ledger engine
// only reads these rows.
type CompositeDefinition struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ItemID           uuid.UUID `gorm:"column:item_id;type:uuid;not null;index"`
	ChildStockUnitID uuid.UUID `gorm:"column:child_stock_unit_id;type:uuid;not null"`
	QuantityPerUnit  int       `gorm:"column:quantity_per_unit;not null;default:1"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (d *CompositeDefinition) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
