package stock

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waterfire-source/cardpos-backend/internal/costlot"
	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// ResourceRef points a mutation at the business resource that caused it.
// Consumed or attached cost lots are keyed by this ref so later rollbacks
// and returns can find them again.
type ResourceRef struct {
	Type enums.ResourceType
	ID   uuid.UUID
}

// IncreaseInput describes one physical quantity increase.
type IncreaseInput struct {
	UnitID uuid.UUID
	Count  int
	Reason enums.StockReason
	// ResourceRef is required by reasons that attach or restore lots.
	ResourceRef *ResourceRef
	// Lots carries explicit wholesale records for arrival style reasons.
	Lots    []costlot.Record
	Note    *string
	ActorID uuid.UUID
}

// DecreaseInput describes one physical quantity decrease.
type DecreaseInput struct {
	UnitID      uuid.UUID
	Count       int
	Reason      enums.StockReason
	ResourceRef *ResourceRef
	// SpecificUnitPrice restricts consumption to pool lots at exactly
	// this wholesale price.
	SpecificUnitPrice *decimal.Decimal
	// UnitPriceOverride replaces the unit's sell price on the ledger entry.
	UnitPriceOverride *decimal.Decimal
	Note              *string
	ActorID           uuid.UUID
}

// Result reports one applied mutation: the ledger entry written, the total
// wholesale cost that moved, and the lot records that moved with it.
type Result struct {
	Entry     *models.StockLedgerEntry
	TotalCost decimal.Decimal
	Records   []costlot.Record
}
