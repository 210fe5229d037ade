package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// StockLedgerEntry is the append-only record of one physical quantity
// mutation. UnitPrice is backfilled once after lot settlement for flows
// whose cost is only known after the pool was consumed.
type StockLedgerEntry struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StockUnitID uuid.UUID `gorm:"column:stock_unit_id;type:uuid;not null;index"`
	ActorID     uuid.UUID `gorm:"column:actor_id;type:uuid;not null"`

	Reason enums.StockReason `gorm:"column:reason;type:stock_reason;not null"`
	// Delta is signed: positive for increases, negative for decreases.
	Delta        int              `gorm:"column:delta;not null"`
	UnitPrice    *decimal.Decimal `gorm:"column:unit_price;type:numeric"`
	ResultingQty int              `gorm:"column:resulting_qty;not null"`

	ResourceType *enums.ResourceType `gorm:"column:resource_type;type:resource_type"`
	ResourceID   *uuid.UUID          `gorm:"column:resource_id;type:uuid"`

	Note      *string   `gorm:"column:note"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *StockLedgerEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
