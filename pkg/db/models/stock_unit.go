package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockUnit is the sellable instance of a catalog item inside one store:
// quantities, prices, channel flags and the external channel mapping.
type StockUnit struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID uuid.UUID `gorm:"column:store_id;type:uuid;not null;index"`
	ItemID  uuid.UUID `gorm:"column:item_id;type:uuid;not null;index"`

	PhysicalQty int `gorm:"column:physical_qty;not null;default:0"`
	// ECQty is the quantity currently listed on the channel. It moves
	// independently of PhysicalQty and never exceeds the margin.
	ECQty int `gorm:"column:ec_qty;not null;default:0"`
	// ECReservedOverride replaces the store default reserve when set.
	ECReservedOverride *int `gorm:"column:ec_reserved_override"`

	SellPrice   decimal.Decimal `gorm:"column:sell_price;type:numeric;not null;default:0"`
	BuyPrice    decimal.Decimal `gorm:"column:buy_price;type:numeric;not null;default:0"`
	ECSellPrice decimal.Decimal `gorm:"column:ec_sell_price;type:numeric;not null;default:0"`

	// Pool cost aggregates, recomputed after every lot change.
	AverageWholesalePrice *decimal.Decimal `gorm:"column:average_wholesale_price;type:numeric"`
	MinWholesalePrice     *decimal.Decimal `gorm:"column:min_wholesale_price;type:numeric"`
	MaxWholesalePrice     *decimal.Decimal `gorm:"column:max_wholesale_price;type:numeric"`
	TotalWholesalePrice   *decimal.Decimal `gorm:"column:total_wholesale_price;type:numeric"`

	ECEnabled         bool `gorm:"column:ec_enabled;not null;default:false"`
	ExternalECEnabled bool `gorm:"column:external_ec_enabled;not null;default:false"`

	ExternalProductID   *string `gorm:"column:external_product_id"`
	ExternalVariantID   *string `gorm:"column:external_variant_id"`
	ExternalInventoryID *string `gorm:"column:external_inventory_id"`

	ConsignorID *uuid.UUID `gorm:"column:consignor_id;type:uuid"`
	// SpecialtyHandle and ConditionHandle must be mapped on the channel side
	// before the unit can be listed.
	SpecialtyHandle *string `gorm:"column:specialty_handle"`
	ConditionHandle *string `gorm:"column:condition_handle"`

	IsSpecialPrice bool `gorm:"column:is_special_price;not null;default:false"`
	Deleted        bool `gorm:"column:deleted;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockUnit) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ReservedFor resolves the channel reserve for this unit within its store.
func (s *StockUnit) ReservedFor(store *Store) int {
	if s.ECReservedOverride != nil {
		return *s.ECReservedOverride
	}
	if store != nil {
		return store.ECReservedDefault
	}
	return 0
}
