package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// Store represents the canonical tenant model. Only the columns the ledger
// engine reads are mapped here.
type Store struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`

	// ECEnabled gates channel reconciliation for every unit in the store.
	ECEnabled bool `gorm:"column:ec_enabled;not null;default:false"`
	// ECReservedDefault is the floor withheld from the channel when a unit
	// carries no reserve override of its own.
	ECReservedDefault int `gorm:"column:ec_reserved_default;not null;default:0"`
	// WholesaleKeepRule decides whether fresh cost lots stack or blend into
	// the unit pool.
	WholesaleKeepRule enums.LotKeepRule `gorm:"column:wholesale_keep_rule;type:lot_keep_rule;not null;default:'stacked'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Store) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
