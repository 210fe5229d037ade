package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// CatalogItem describes the sellable product a stock unit belongs to. The
// kind picks the mutation handlers and the cost pool policy.
type CatalogItem struct {
	ID      uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	StoreID uuid.UUID      `gorm:"column:store_id;type:uuid;not null;index"`
	Kind    enums.ItemKind `gorm:"column:kind;type:item_kind;not null;default:'normal'"`

	// InfiniteStock marks supplies whose physical count is never tracked.
	InfiniteStock bool `gorm:"column:infinite_stock;not null;default:false"`
	// InitStockNumber is the unit count a sealed original_pack yields; the
	// blended unit pool is re-averaged over it on assembly.
	InitStockNumber int  `gorm:"column:init_stock_number;not null;default:0"`
	ECEligible      bool `gorm:"column:ec_eligible;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CatalogItem) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
