package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// OutboxChannelStockRecord is written in the same transaction as a channel
// ledger entry whenever the unit is mapped to the external channel. The
// publisher worker drains unpublished rows and pushes them to Pub/Sub.
type OutboxChannelStockRecord struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StockUnitID uuid.UUID `gorm:"column:stock_unit_id;type:uuid;not null;index"`
	StoreID     uuid.UUID `gorm:"column:store_id;type:uuid;not null"`

	Delta        int                      `gorm:"column:delta;not null"`
	ResultingQty int                      `gorm:"column:resulting_qty;not null"`
	Reason       enums.ChannelStockReason `gorm:"column:reason;type:channel_stock_reason;not null"`

	ExternalProductID   *string `gorm:"column:external_product_id"`
	ExternalVariantID   *string `gorm:"column:external_variant_id"`
	ExternalInventoryID *string `gorm:"column:external_inventory_id"`

	ResourceID *uuid.UUID `gorm:"column:resource_id;type:uuid"`
	Note       *string    `gorm:"column:note"`

	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
}

func (r *OutboxChannelStockRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
