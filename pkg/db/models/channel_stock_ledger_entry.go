package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// ChannelStockLedgerEntry mirrors StockLedgerEntry for the listed (EC)
// quantity.
type ChannelStockLedgerEntry struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StockUnitID uuid.UUID `gorm:"column:stock_unit_id;type:uuid;not null;index"`
	ActorID     uuid.UUID `gorm:"column:actor_id;type:uuid;not null"`

	Reason       enums.ChannelStockReason `gorm:"column:reason;type:channel_stock_reason;not null"`
	Delta        int                      `gorm:"column:delta;not null"`
	ResultingQty int                      `gorm:"column:resulting_qty;not null"`

	ResourceID *uuid.UUID `gorm:"column:resource_id;type:uuid"`

	Note      *string   `gorm:"column:note"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *ChannelStockLedgerEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
