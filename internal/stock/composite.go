package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waterfire-source/cardpos-backend/internal/costlot"
	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
)

func (m *mutation) definitions(ctx context.Context) ([]models.CompositeDefinition, error) {
	defs, err := m.repo.ListDefinitions(ctx, m.item.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading composite definition")
	}
	if len(defs) == 0 {
		return nil, apperrors.Newf(apperrors.CodeValidation, "item %s has no composite definition", m.item.ID)
	}
	return defs, nil
}

func (m *mutation) childUnit(ctx context.Context, id uuid.UUID) (*models.StockUnit, error) {
	unit, err := m.repo.GetUnit(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading child stock unit")
	}
	if unit == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "child stock unit %s not found", id)
	}
	return unit, nil
}

// increaseBundleAssemble builds bundles out of their children: each child
// loses count times its per-unit quantity, the consumed child lots stay
// attached to the bundle unit, and the bundle pool gains one blended lot at
// the summed child cost.
func increaseBundleAssemble(ctx context.Context, m *mutation) error {
	if m.item.InfiniteStock {
		return apperrors.New(apperrors.CodeUnsupportedOperation, "infinite supply bundles cannot be assembled")
	}
	defs, err := m.definitions(ctx)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, def := range defs {
		childRes, err := m.svc.DecreaseTx(ctx, m.tx, DecreaseInput{
			UnitID: def.ChildStockUnitID,
			Count:  m.count * def.QuantityPerUnit,
			Reason: enums.ReasonBundle,
			ResourceRef: &ResourceRef{
				Type: enums.ResourceBundle,
				ID:   m.unit.ID,
			},
			ActorID: m.entry.ActorID,
		})
		if err != nil {
			return err
		}
		total = total.Add(childRes.TotalCost)
	}

	unitPrice := costlot.AveragePrice(total, m.count)
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID: m.unit.ID,
		Records: []costlot.Record{{
			StockUnitID: m.unit.ID,
			UnitPrice:   unitPrice,
			Count:       m.count,
			Exact:       true,
		}},
		KeepRule: enums.KeepBlended,
	}); err != nil {
		return err
	}

	m.result.TotalCost = total
	return m.backfillUnitPrice(ctx, unitPrice)
}

// increaseBundleRestore takes sold bundles back: the transaction lots are
// reverse consumed, their per-child breakdown returns to the bundle scope,
// and the bundle pool regains a blended lot at the recorded cost.
func increaseBundleRestore(ctx context.Context, m *mutation) error {
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

	parentIDs := make([]uuid.UUID, 0, len(res.Used))
	for _, used := range res.Used {
		if !used.Synthetic {
			parentIDs = append(parentIDs, used.Lot.ID)
		}
	}
	children, err := m.svc.lots.ChildrenOf(ctx, m.tx, parentIDs)
	if err != nil {
		return err
	}
	byChildUnit := map[uuid.UUID][]costlot.Record{}
	for _, child := range children {
		rec := costlot.Record{
			StockUnitID: child.StockUnitID,
			UnitPrice:   child.UnitPrice,
			Count:       child.Count,
			ArrivedAt:   child.ArrivedAt,
			Exact:       child.Exact,
		}
		byChildUnit[child.StockUnitID] = append(byChildUnit[child.StockUnitID], rec)
	}
	for childUnitID, records := range byChildUnit {
		if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
			StockUnitID:  childUnitID,
			Records:      records,
			ResourceType: enums.ResourceBundle,
			ResourceID:   m.unit.ID,
			KeepRule:     enums.KeepStacked,
		}); err != nil {
			return err
		}
	}

	unitPrice := costlot.AveragePrice(res.TotalCost, m.count)
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID: m.unit.ID,
		Records: []costlot.Record{{
			StockUnitID: m.unit.ID,
			UnitPrice:   unitPrice,
			Count:       m.count,
			Exact:       false,
		}},
		KeepRule: enums.KeepBlended,
	}); err != nil {
		return err
	}

	m.result.TotalCost = res.TotalCost
	return m.backfillUnitPrice(ctx, unitPrice)
}

// rebuildBundlePool reprices the bundle pool from the child cost still
// attached to the bundle scope. The cost that left with a sale or release
// must leave the pool with it; respreading the old pool total would inflate
// the per-unit basis of what remains.
func (m *mutation) rebuildBundlePool(ctx context.Context) error {
	qty := m.entry.ResultingQty
	if qty <= 0 {
		return m.svc.lots.ReplacePool(ctx, m.tx, m.unit.ID, 0, decimal.Zero)
	}
	scoped, err := m.svc.lots.LotsFor(ctx, m.tx, costlot.ListQuery{
		ResourceType: enums.ResourceBundle,
		ResourceID:   m.unit.ID,
	})
	if err != nil {
		return err
	}
	remain := decimal.Zero
	for _, lot := range scoped {
		remain = remain.Add(lot.TotalPrice())
	}
	return m.svc.lots.ReplacePool(ctx, m.tx, m.unit.ID, qty, costlot.AveragePrice(remain, qty))
}

// decreaseBundleSale sells bundles one unit at a time so every sold bundle
// carries its own per-child cost breakdown on the transaction.
func decreaseBundleSale(ctx context.Context, m *mutation) error {
	ref, err := m.requireRef()
	if err != nil {
		return err
	}
	defs, err := m.definitions(ctx)
	if err != nil {
		return err
	}
	childUnits := map[uuid.UUID]*models.StockUnit{}
	for _, def := range defs {
		if _, ok := childUnits[def.ChildStockUnitID]; ok {
			continue
		}
		child, err := m.childUnit(ctx, def.ChildStockUnitID)
		if err != nil {
			return err
		}
		childUnits[def.ChildStockUnitID] = child
	}

	total := decimal.Zero
	parentRecords := make([]costlot.Record, 0, m.count)
	for i := 0; i < m.count; i++ {
		unitTotal := decimal.Zero
		var children []costlot.Record
		for _, def := range defs {
			childRes, err := m.svc.lots.Consume(ctx, m.tx, costlot.ConsumeParams{
				StockUnitID:  def.ChildStockUnitID,
				Count:        def.QuantityPerUnit,
				Spend:        true,
				SparePrice:   childUnits[def.ChildStockUnitID].BuyPrice,
				ResourceType: enums.ResourceBundle,
				ResourceID:   m.unit.ID,
			})
			if err != nil {
				return err
			}
			m.shortfall += childRes.ShortfallCount
			unitTotal = unitTotal.Add(childRes.TotalCost)
			children = append(children, childRes.Records()...)
		}
		parentRecords = append(parentRecords, costlot.Record{
			StockUnitID: m.unit.ID,
			UnitPrice:   costlot.AveragePrice(unitTotal, 1),
			Count:       1,
			Exact:       false,
			Children:    children,
		})
		total = total.Add(unitTotal)
	}

	if err := m.rebuildBundlePool(ctx); err != nil {
		return err
	}
	if err := m.svc.lots.Create(ctx, m.tx, costlot.CreateParams{
		StockUnitID:  m.unit.ID,
		Records:      parentRecords,
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
		KeepRule:     enums.KeepStacked,
	}); err != nil {
		return err
	}

	m.result.TotalCost = total
	m.result.Records = parentRecords
	return nil
}

// decreaseBundleRelease breaks bundles apart: bundle scoped child lots flow
// back into each child's pool and the bundle pool is rebuilt from the cost
// still held in the bundle scope.
func decreaseBundleRelease(ctx context.Context, m *mutation) error {
	defs, err := m.definitions(ctx)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, def := range defs {
		child, err := m.childUnit(ctx, def.ChildStockUnitID)
		if err != nil {
			return err
		}
		releaseCount := def.QuantityPerUnit * m.count
		res, err := m.svc.lots.Consume(ctx, m.tx, costlot.ConsumeParams{
			StockUnitID:  def.ChildStockUnitID,
			Count:        releaseCount,
			Spend:        true,
			Reverse:      true,
			SparePrice:   child.BuyPrice,
			ResourceType: enums.ResourceBundle,
			ResourceID:   m.unit.ID,
		})
		if err != nil {
			return err
		}
		m.shortfall += res.ShortfallCount
		total = total.Add(res.TotalCost)

		if _, err := m.svc.IncreaseTx(ctx, m.tx, IncreaseInput{
			UnitID:  def.ChildStockUnitID,
			Count:   releaseCount,
			Reason:  enums.ReasonBundleRelease,
			Lots:    res.Records(),
			ActorID: m.entry.ActorID,
		}); err != nil {
			return err
		}
	}

	m.result.TotalCost = total
	return m.rebuildBundlePool(ctx)
}

// increasePackAssemble seals original packs: the children recorded in the
// static definition are consumed against the pack item, and the unit pool
// is replaced with a single lot priced over the item's initial stock
// number.
func increasePackAssemble(ctx context.Context, m *mutation) error {
	if m.item.InfiniteStock {
		return apperrors.New(apperrors.CodeUnsupportedOperation, "infinite supply packs cannot be assembled")
	}
	if m.item.InitStockNumber <= 0 {
		return apperrors.Newf(apperrors.CodeValidation, "item %s has no initial stock number", m.item.ID)
	}
	defs, err := m.definitions(ctx)
	if err != nil {
		return err
	}

	for _, def := range defs {
		if _, err := m.svc.DecreaseTx(ctx, m.tx, DecreaseInput{
			UnitID: def.ChildStockUnitID,
			Count:  m.count * def.QuantityPerUnit,
			Reason: enums.ReasonOriginalPack,
			ResourceRef: &ResourceRef{
				Type: enums.ResourceOriginalPack,
				ID:   m.item.ID,
			},
			ActorID: m.entry.ActorID,
		}); err != nil {
			return err
		}
	}

	unitPrice, err := m.packUnitPrice(ctx)
	if err != nil {
		return err
	}
	if err := m.svc.lots.ReplacePool(ctx, m.tx, m.unit.ID, m.entry.ResultingQty, unitPrice); err != nil {
		return err
	}

	m.result.TotalCost = unitPrice.Mul(decimal.NewFromInt(int64(m.count)))
	return m.backfillUnitPrice(ctx, unitPrice)
}

// increasePackRestore returns sold pack units; the unit pool stays blended.
func increasePackRestore(ctx context.Context, m *mutation) error {
	return restoreFromRef(ctx, m, enums.KeepBlended)
}

// decreasePackRelease dissolves the remaining packs: the pool is rebuilt
// over the resulting quantity at the pack level average.
func decreasePackRelease(ctx context.Context, m *mutation) error {
	if m.item.InitStockNumber <= 0 {
		return apperrors.Newf(apperrors.CodeValidation, "item %s has no initial stock number", m.item.ID)
	}
	unitPrice, err := m.packUnitPrice(ctx)
	if err != nil {
		return err
	}
	if m.entry.ResultingQty > 0 {
		if err := m.svc.lots.ReplacePool(ctx, m.tx, m.unit.ID, m.entry.ResultingQty, unitPrice); err != nil {
			return err
		}
	} else {
		if err := m.svc.lots.ReplacePool(ctx, m.tx, m.unit.ID, 0, decimal.Zero); err != nil {
			return err
		}
	}
	m.result.TotalCost = unitPrice.Mul(decimal.NewFromInt(int64(m.count)))
	return nil
}

// packUnitPrice averages every lot recorded against the pack item over its
// initial stock number. Pack level lots span the child units, so the query
// is not bound to one unit.
func (m *mutation) packUnitPrice(ctx context.Context) (decimal.Decimal, error) {
	packLots, err := m.svc.lots.LotsFor(ctx, m.tx, costlot.ListQuery{
		ResourceType: enums.ResourceOriginalPack,
		ResourceID:   m.item.ID,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, lot := range packLots {
		total = total.Add(lot.TotalPrice())
	}
	return costlot.AveragePrice(total, m.item.InitStockNumber), nil
}
