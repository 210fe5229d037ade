package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waterfire-source/cardpos-backend/internal/costlot"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
)

// nominalPrice is booked per unit when an infinite supply item leaves
// stock; its pool holds no real lots.
var nominalPrice = decimal.NewFromInt(1)

// increaseArrival writes the caller's explicit wholesale records into the
// unit's pool under the store's keep rule.
func increaseArrival(ctx context.Context, m *mutation) error {
	if len(m.lots) == 0 {
		return apperrors.Newf(apperrors.CodeValidation, "reason %s requires explicit cost lots", m.reason)
	}
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID: m.unit.ID,
		Records:     m.lots,
		KeepRule:    m.keepRule(),
	}); err != nil {
		return err
	}
	for _, rec := range m.lots {
		m.result.TotalCost = m.result.TotalCost.Add(rec.TotalPrice())
	}
	m.result.Records = m.lots
	return nil
}

// increaseArrivalWithRef additionally attaches a copy of the records to the
// causing resource so a later rollback can consume them back out.
func increaseArrivalWithRef(ctx context.Context, m *mutation) error {
	ref, err := m.requireRef()
	if err != nil {
		return err
	}
	if err := increaseArrival(ctx, m); err != nil {
		return err
	}
	return m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID:  m.unit.ID,
		Records:      m.lots,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
		KeepRule:     enums.KeepStacked,
	})
}

// increaseConsignment books a zero priced lot. The consignor's cost is
// injected later through the zero price reprice path, so the lot must stay
// stacked and addressable.
func increaseConsignment(ctx context.Context, m *mutation) error {
	rec := costlot.Record{
		StockUnitID: m.unit.ID,
		UnitPrice:   decimal.Zero,
		Count:       m.count,
		ArrivedAt:   time.Now(),
		Exact:       true,
	}
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID: m.unit.ID,
		Records:     []costlot.Record{rec},
		KeepRule:    enums.KeepStacked,
	}); err != nil {
		return err
	}
	m.result.Records = []costlot.Record{rec}
	return nil
}

// increaseRestore pulls the lots recorded against the causing resource back
// into the pool, newest first, and backfills the ledger price with their
// average.
func increaseRestore(ctx context.Context, m *mutation) error {
	return restoreFromRef(ctx, m, m.keepRule())
}

func restoreFromRef(ctx context.Context, m *mutation, keepRule enums.LotKeepRule) error {
	ref, err := m.requireRef()
	if err != nil {
		return err
	}
	res, err := m.svc.lots.Consume(ctx, m.tx, costlot.ConsumeParams{
		StockUnitID:  m.unit.ID,
		Count:        m.count,
		Spend:        true,
		Reverse:      true,
		SparePrice:   m.unit.BuyPrice,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
	})
	if err != nil {
		return err
	}
	m.shortfall += res.ShortfallCount

	records := res.Records()
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID: m.unit.ID,
		Records:     records,
		KeepRule:    keepRule,
	}); err != nil {
		return err
	}
	m.result.TotalCost = res.TotalCost
	m.result.Records = records

	if m.count > 0 {
		return m.backfillUnitPrice(ctx, costlot.AveragePrice(res.TotalCost, m.count))
	}
	return nil
}

// decreaseAttach consumes the pool in arrival order and re-attaches the
// consumed lots to the causing resource.
func decreaseAttach(ctx context.Context, m *mutation) error {
	ref, err := m.requireRef()
	if err != nil {
		return err
	}
	records, cost, err := consumePool(ctx, m)
	if err != nil {
		return err
	}
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID:  m.unit.ID,
		Records:      records,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
		KeepRule:     enums.KeepStacked,
	}); err != nil {
		return err
	}
	m.result.TotalCost = cost
	m.result.Records = records
	return nil
}

// decreasePlain consumes the pool without leaving a trace on any resource.
func decreasePlain(ctx context.Context, m *mutation) error {
	records, cost, err := consumePool(ctx, m)
	if err != nil {
		return err
	}
	m.result.TotalCost = cost
	m.result.Records = records
	return nil
}

func consumePool(ctx context.Context, m *mutation) ([]costlot.Record, decimal.Decimal, error) {
	if m.item.InfiniteStock {
		if m.count == 0 {
			return nil, decimal.Zero, nil
		}
		rec := costlot.Record{
			StockUnitID: m.unit.ID,
			UnitPrice:   nominalPrice,
			Count:       m.count,
			ArrivedAt:   time.Now(),
		}
		return []costlot.Record{rec}, rec.TotalPrice(), nil
	}

	res, err := m.svc.lots.Consume(ctx, m.tx, costlot.ConsumeParams{
		StockUnitID:   m.unit.ID,
		Count:         m.count,
		Spend:         true,
		SparePrice:    m.unit.BuyPrice,
		SpecificPrice: m.specificPrice,
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	m.shortfall += res.ShortfallCount
	return res.Records(), res.TotalCost, nil
}

// decreaseStrictRollback unwinds an arrival: the lots recorded against the
// resource must fully cover the count, and each one is removed from the
// pool at its exact price.
func decreaseStrictRollback(ctx context.Context, m *mutation) error {
	ref, err := m.requireRef()
	if err != nil {
		return err
	}
	res, err := m.svc.lots.Consume(ctx, m.tx, costlot.ConsumeParams{
		StockUnitID:  m.unit.ID,
		Count:        m.count,
		Spend:        true,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
	})
	if err != nil {
		return err
	}
	if res.ShortfallCount > 0 {
		return apperrors.Newf(apperrors.CodeValidation, "recorded lots do not cover a rollback of %d", m.count)
	}

	for _, used := range res.Used {
		price := used.Lot.UnitPrice
		if _, err := m.svc.lots.Consume(ctx, m.tx, costlot.ConsumeParams{
			StockUnitID:   m.unit.ID,
			Count:         used.Count,
			Spend:         true,
			SpecificPrice: &price,
		}); err != nil {
			return err
		}
	}
	m.result.TotalCost = res.TotalCost
	m.result.Records = res.Records()
	return nil
}
