package costlot

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// Record is the in-memory shape of a cost lot before it is persisted.
// Children preserve a composite's per-child cost breakdown and are stored
// hanging off the created parent lot.
type Record struct {
	StockUnitID  uuid.UUID
	UnitPrice    decimal.Decimal
	Count        int
	ArrivedAt    time.Time
	Exact        bool
	ResourceType enums.ResourceType
	ResourceID   uuid.UUID
	Children     []Record
}

// TotalPrice returns unit price times count.
func (r Record) TotalPrice() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Count)))
}

// UsedLot is one consumed slice: the source lot it came from and how many
// units were taken. Synthetic lots cover the shortfall when the pool ran dry.
type UsedLot struct {
	Lot       models.CostLot
	Count     int
	Synthetic bool
}

// Record converts a consumed slice back into a creatable record, keeping the
// source lot's price, arrival and exactness.
func (u UsedLot) Record() Record {
	return Record{
		StockUnitID: u.Lot.StockUnitID,
		UnitPrice:   u.Lot.UnitPrice,
		Count:       u.Count,
		ArrivedAt:   u.Lot.ArrivedAt,
		Exact:       u.Lot.Exact && !u.Synthetic,
	}
}

// ConsumeParams drives one pool consumption.
type ConsumeParams struct {
	StockUnitID uuid.UUID
	Count       int
	// Spend persists the consumption; when false the call only inspects
	// what would be used.
	Spend   bool
	Reverse bool
	// SparePrice prices synthetic shortfall lots. Zero when unset.
	SparePrice decimal.Decimal
	// SpecificPrice restricts consumption to lots at exactly this price;
	// running out then is an error instead of a shortfall.
	SpecificPrice *decimal.Decimal

	ResourceType enums.ResourceType
	ResourceID   uuid.UUID
}

// ConsumeResult reports what one consumption took and what it cost.
type ConsumeResult struct {
	Used           []UsedLot
	TotalCost      decimal.Decimal
	ShortfallCount int
}

// Records converts every used slice for re-attachment to another resource.
func (r *ConsumeResult) Records() []Record {
	out := make([]Record, 0, len(r.Used))
	for _, u := range r.Used {
		out = append(out, u.Record())
	}
	return out
}

// CreateParams drives one pool append or resource attachment.
type CreateParams struct {
	StockUnitID  uuid.UUID
	Records      []Record
	ResourceType enums.ResourceType
	ResourceID   uuid.UUID
	// KeepRule decides stacking vs blending. Callers resolve the store
	// rule; composite assembly pins blending regardless of it.
	KeepRule enums.LotKeepRule
}

// PriceGroup is a merged (count, unit price) slice of an even split.
type PriceGroup struct {
	Count     int
	UnitPrice decimal.Decimal
}
