package stock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
)

func seedDefinition(t *testing.T, conn *gorm.DB, itemID, childUnitID uuid.UUID, perUnit int) {
	t.Helper()
	def := &models.CompositeDefinition{
		ItemID:           itemID,
		ChildStockUnitID: childUnitID,
		QuantityPerUnit:  perUnit,
	}
	require.NoError(t, conn.Create(def).Error)
}

func TestBundleAssembleAllocatesChildCosts(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)
	ctx := context.Background()

	store := seedStore(t, conn)
	childItemA := seedItem(t, conn, store.ID, enums.KindNormal)
	childItemB := seedItem(t, conn, store.ID, enums.KindNormal)
	childA := seedUnit(t, conn, store, childItemA, 10)
	childB := seedUnit(t, conn, store, childItemB, 10)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedPoolLot(t, conn, childA.ID, 10, 10, base)
	seedPoolLot(t, conn, childB.ID, 25, 10, base)

	bundleItem := seedItem(t, conn, store.ID, enums.KindBundle)
	bundleUnit := seedUnit(t, conn, store, bundleItem, 0)
	seedDefinition(t, conn, bundleItem.ID, childA.ID, 1)
	seedDefinition(t, conn, bundleItem.ID, childB.ID, 2)

	res, err := svc.IncreaseTx(ctx, conn, IncreaseInput{
		UnitID: bundleUnit.ID,
		Count:  2,
		Reason: enums.ReasonBundle,
	})
	require.NoError(t, err)

	// Two bundles consume 2x child A at 10 and 4x child B at 25.
	require.True(t, res.TotalCost.Equal(decimal.NewFromInt(120)))
	require.NotNil(t, res.Entry.UnitPrice)
	require.True(t, res.Entry.UnitPrice.Equal(decimal.NewFromInt(60)))

	require.Equal(t, 8, reloadUnit(t, conn, childA.ID).PhysicalQty)
	require.Equal(t, 6, reloadUnit(t, conn, childB.ID).PhysicalQty)
	require.Equal(t, 2, reloadUnit(t, conn, bundleUnit.ID).PhysicalQty)

	pool := lotsFor(t, conn, enums.ResourceStockUnit, bundleUnit.ID)
	require.Len(t, pool, 1)
	require.Equal(t, 2, pool[0].Count)
	require.True(t, pool[0].UnitPrice.Equal(decimal.NewFromInt(60)))

	scoped := lotsFor(t, conn, enums.ResourceBundle, bundleUnit.ID)
	require.Len(t, scoped, 2)
}

func TestBundleSaleAttachesChildBreakdown(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)
	ctx := context.Background()

	store := seedStore(t, conn)
	childItem := seedItem(t, conn, store.ID, enums.KindNormal)
	child := seedUnit(t, conn, store, childItem, 10)
	seedPoolLot(t, conn, child.ID, 15, 10, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	bundleItem := seedItem(t, conn, store.ID, enums.KindBundle)
	bundleUnit := seedUnit(t, conn, store, bundleItem, 0)
	seedDefinition(t, conn, bundleItem.ID, child.ID, 2)

	_, err := svc.IncreaseTx(ctx, conn, IncreaseInput{
		UnitID: bundleUnit.ID,
		Count:  3,
		Reason: enums.ReasonBundle,
	})
	require.NoError(t, err)

	txnID := uuid.New()
	res, err := svc.DecreaseTx(ctx, conn, DecreaseInput{
		UnitID: bundleUnit.ID,
		Count:  2,
		Reason: enums.ReasonTransactionSell,
		ResourceRef: &ResourceRef{
			Type: enums.ResourceTransaction,
			ID:   txnID,
		},
	})
	require.NoError(t, err)

	// Each sold bundle cost two child units at 15.
	require.True(t, res.TotalCost.Equal(decimal.NewFromInt(60)))

	attached := lotsFor(t, conn, enums.ResourceTransaction, txnID)
	require.Len(t, attached, 2)
	for _, lot := range attached {
		require.Equal(t, 1, lot.Count)
		require.True(t, lot.UnitPrice.Equal(decimal.NewFromInt(30)))
		require.False(t, lot.Exact)

		var children []models.CostLot
		require.NoError(t, conn.Where("parent_lot_id = ?", lot.ID).Find(&children).Error)
		require.Len(t, children, 1)
		require.Equal(t, 2, children[0].Count)
		require.Equal(t, child.ID, children[0].StockUnitID)
	}

	// The pool is rebuilt from the child cost still held in the bundle
	// scope: 90 assembled minus 60 sold leaves 30 over one bundle.
	pool := lotsFor(t, conn, enums.ResourceStockUnit, bundleUnit.ID)
	require.Len(t, pool, 1)
	require.Equal(t, 1, pool[0].Count)
	require.True(t, pool[0].UnitPrice.Equal(decimal.NewFromInt(30)))

	scoped := lotsFor(t, conn, enums.ResourceBundle, bundleUnit.ID)
	remain := decimal.Zero
	for _, lot := range scoped {
		remain = remain.Add(lot.UnitPrice.Mul(decimal.NewFromInt(int64(lot.Count))))
	}
	require.True(t, remain.Equal(decimal.NewFromInt(30)))
}

func TestBundleSaleLeavesRemainingCostInPool(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)
	ctx := context.Background()

	store := seedStore(t, conn)
	childItem := seedItem(t, conn, store.ID, enums.KindNormal)
	child := seedUnit(t, conn, store, childItem, 2)
	seedPoolLot(t, conn, child.ID, 25, 2, time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC))

	bundleItem := seedItem(t, conn, store.ID, enums.KindBundle)
	bundleUnit := seedUnit(t, conn, store, bundleItem, 0)
	seedDefinition(t, conn, bundleItem.ID, child.ID, 1)

	_, err := svc.IncreaseTx(ctx, conn, IncreaseInput{
		UnitID: bundleUnit.ID,
		Count:  2,
		Reason: enums.ReasonBundle,
	})
	require.NoError(t, err)

	_, err = svc.DecreaseTx(ctx, conn, DecreaseInput{
		UnitID: bundleUnit.ID,
		Count:  1,
		Reason: enums.ReasonTransactionSell,
		ResourceRef: &ResourceRef{
			Type: enums.ResourceTransaction,
			ID:   uuid.New(),
		},
	})
	require.NoError(t, err)

	// The 25 that left with the sold bundle must not stay behind.
	pool := lotsFor(t, conn, enums.ResourceStockUnit, bundleUnit.ID)
	require.Len(t, pool, 1)
	require.Equal(t, 1, pool[0].Count)
	require.True(t, pool[0].UnitPrice.Equal(decimal.NewFromInt(25)))

	_, err = svc.DecreaseTx(ctx, conn, DecreaseInput{
		UnitID: bundleUnit.ID,
		Count:  1,
		Reason: enums.ReasonTransactionSell,
		ResourceRef: &ResourceRef{
			Type: enums.ResourceTransaction,
			ID:   uuid.New(),
		},
	})
	require.NoError(t, err)

	require.Empty(t, lotsFor(t, conn, enums.ResourceStockUnit, bundleUnit.ID))
	require.Empty(t, lotsFor(t, conn, enums.ResourceBundle, bundleUnit.ID))
}

func TestBundleReleaseReturnsChildLots(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)
	ctx := context.Background()

	store := seedStore(t, conn)
	childItem := seedItem(t, conn, store.ID, enums.KindNormal)
	child := seedUnit(t, conn, store, childItem, 6)
	seedPoolLot(t, conn, child.ID, 20, 6, time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC))

	bundleItem := seedItem(t, conn, store.ID, enums.KindBundle)
	bundleUnit := seedUnit(t, conn, store, bundleItem, 0)
	seedDefinition(t, conn, bundleItem.ID, child.ID, 3)

	_, err := svc.IncreaseTx(ctx, conn, IncreaseInput{
		UnitID: bundleUnit.ID,
		Count:  2,
		Reason: enums.ReasonBundle,
	})
	require.NoError(t, err)
	require.Equal(t, 0, reloadUnit(t, conn, child.ID).PhysicalQty)

	_, err = svc.DecreaseTx(ctx, conn, DecreaseInput{
		UnitID: bundleUnit.ID,
		Count:  2,
		Reason: enums.ReasonBundleRelease,
	})
	require.NoError(t, err)

	require.Equal(t, 6, reloadUnit(t, conn, child.ID).PhysicalQty)
	require.Equal(t, 0, reloadUnit(t, conn, bundleUnit.ID).PhysicalQty)

	childPool := lotsFor(t, conn, enums.ResourceStockUnit, child.ID)
	total := 0
	for _, lot := range childPool {
		require.True(t, lot.UnitPrice.Equal(decimal.NewFromInt(20)))
		total += lot.Count
	}
	require.Equal(t, 6, total)

	require.Empty(t, lotsFor(t, conn, enums.ResourceBundle, bundleUnit.ID))
	require.Empty(t, lotsFor(t, conn, enums.ResourceStockUnit, bundleUnit.ID))
}

func TestPackAssembleAveragesOverInitStockNumber(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)
	ctx := context.Background()

	store := seedStore(t, conn)
	childItem := seedItem(t, conn, store.ID, enums.KindNormal)
	child := seedUnit(t, conn, store, childItem, 5)
	seedPoolLot(t, conn, child.ID, 100, 5, time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC))

	packItem := &models.CatalogItem{
		StoreID:         store.ID,
		Kind:            enums.KindOriginalPack,
		InitStockNumber: 10,
	}
	require.NoError(t, conn.Create(packItem).Error)
	packUnit := seedUnit(t, conn, store, packItem, 0)
	seedDefinition(t, conn, packItem.ID, child.ID, 5)

	res, err := svc.IncreaseTx(ctx, conn, IncreaseInput{
		UnitID: packUnit.ID,
		Count:  10,
		Reason: enums.ReasonOriginalPack,
	})
	require.NoError(t, err)

	// 500 of child cost spread over the pack's ten units.
	require.NotNil(t, res.Entry.UnitPrice)
	require.True(t, res.Entry.UnitPrice.Equal(decimal.NewFromInt(50)))

	require.Equal(t, 0, reloadUnit(t, conn, child.ID).PhysicalQty)
	require.Equal(t, 10, reloadUnit(t, conn, packUnit.ID).PhysicalQty)

	pool := lotsFor(t, conn, enums.ResourceStockUnit, packUnit.ID)
	require.Len(t, pool, 1)
	require.Equal(t, 10, pool[0].Count)
	require.True(t, pool[0].UnitPrice.Equal(decimal.NewFromInt(50)))

	packScoped := lotsFor(t, conn, enums.ResourceOriginalPack, packItem.ID)
	require.Len(t, packScoped, 1)
	require.Equal(t, child.ID, packScoped[0].StockUnitID)
}

func TestPackReleaseRebuildsPoolOverRemainder(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)
	ctx := context.Background()

	store := seedStore(t, conn)
	childItem := seedItem(t, conn, store.ID, enums.KindNormal)
	child := seedUnit(t, conn, store, childItem, 4)
	seedPoolLot(t, conn, child.ID, 60, 4, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))

	packItem := &models.CatalogItem{
		StoreID:         store.ID,
		Kind:            enums.KindOriginalPack,
		InitStockNumber: 8,
	}
	require.NoError(t, conn.Create(packItem).Error)
	packUnit := seedUnit(t, conn, store, packItem, 0)
	seedDefinition(t, conn, packItem.ID, child.ID, 4)

	_, err := svc.IncreaseTx(ctx, conn, IncreaseInput{
		UnitID: packUnit.ID,
		Count:  8,
		Reason: enums.ReasonOriginalPack,
	})
	require.NoError(t, err)

	_, err = svc.DecreaseTx(ctx, conn, DecreaseInput{
		UnitID: packUnit.ID,
		Count:  3,
		Reason: enums.ReasonOriginalPackRelease,
	})
	require.NoError(t, err)

	pool := lotsFor(t, conn, enums.ResourceStockUnit, packUnit.ID)
	require.Len(t, pool, 1)
	require.Equal(t, 5, pool[0].Count)
	// 240 of pack cost over eight initial units.
	require.True(t, pool[0].UnitPrice.Equal(decimal.NewFromInt(30)))
}

func TestCompositeAssemblyRequiresDefinition(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)

	store := seedStore(t, conn)
	bundleItem := seedItem(t, conn, store.ID, enums.KindBundle)
	bundleUnit := seedUnit(t, conn, store, bundleItem, 0)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, txErr := svc.IncreaseTx(context.Background(), tx, IncreaseInput{
			UnitID: bundleUnit.ID,
			Count:  1,
			Reason: enums.ReasonBundle,
		})
		return txErr
	})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestBundleKindRejectsLeafReasons(t *testing.T) {
	conn := newTestDB(t)
	svc := newService(t, conn)

	store := seedStore(t, conn)
	bundleItem := seedItem(t, conn, store.ID, enums.KindBundle)
	bundleUnit := seedUnit(t, conn, store, bundleItem, 0)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, txErr := svc.IncreaseTx(context.Background(), tx, IncreaseInput{
			UnitID: bundleUnit.ID,
			Count:  1,
			Reason: enums.ReasonStocking,
		})
		return txErr
	})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeUnsupportedOperation))
}
