package channel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/internal/costlot"
	"github.com/waterfire-source/cardpos-backend/internal/stock"
	"github.com/waterfire-source/cardpos-backend/pkg/db"
	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
	"github.com/waterfire-source/cardpos-backend/pkg/logger"
	"github.com/waterfire-source/cardpos-backend/pkg/outbox"
)

var systemActor = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Store{},
		&models.CatalogItem{},
		&models.StockUnit{},
		&models.CostLot{},
		&models.StockLedgerEntry{},
		&models.ChannelStockLedgerEntry{},
		&models.OutboxChannelStockRecord{},
		&models.CompositeDefinition{},
	))
	return conn
}

func newTestEngine(t *testing.T, conn *gorm.DB) Engine {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	lots, err := costlot.NewService(costlot.NewRepository(conn), logg)
	require.NoError(t, err)
	stockSvc, err := stock.NewService(db.NewFromConn(conn), stock.NewRepository(conn), lots, logg, nil, systemActor)
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	eng, err := NewEngine(db.NewFromConn(conn), NewRepository(conn), stockSvc, outboxSvc, logg, systemActor)
	require.NoError(t, err)
	stockSvc.BindReconciler(eng)
	return eng
}

func seedChannelStore(t *testing.T, conn *gorm.DB, reservedDefault int) *models.Store {
	t.Helper()
	store := &models.Store{
		ECEnabled:         true,
		ECReservedDefault: reservedDefault,
		WholesaleKeepRule: enums.KeepStacked,
	}
	require.NoError(t, conn.Create(store).Error)
	return store
}

func seedChannelItem(t *testing.T, conn *gorm.DB, storeID uuid.UUID) *models.CatalogItem {
	t.Helper()
	item := &models.CatalogItem{StoreID: storeID, Kind: enums.KindNormal, ECEligible: true}
	require.NoError(t, conn.Create(item).Error)
	return item
}

func strptr(s string) *string { return &s }

func seedChannelUnit(t *testing.T, conn *gorm.DB, store *models.Store, item *models.CatalogItem, physical, ec int) *models.StockUnit {
	t.Helper()
	unit := &models.StockUnit{
		StoreID:         store.ID,
		ItemID:          item.ID,
		PhysicalQty:     physical,
		ECQty:           ec,
		SellPrice:       decimal.NewFromInt(100),
		BuyPrice:        decimal.NewFromInt(30),
		ECSellPrice:     decimal.NewFromInt(120),
		ECEnabled:       true,
		ConditionHandle: strptr("near-mint"),
	}
	require.NoError(t, conn.Create(unit).Error)
	return unit
}

func reloadUnit(t *testing.T, conn *gorm.DB, id uuid.UUID) *models.StockUnit {
	t.Helper()
	var unit models.StockUnit
	require.NoError(t, conn.Where("id = ?", id).First(&unit).Error)
	return &unit
}

func TestMarginRespectsReserveAndOverride(t *testing.T) {
	store := &models.Store{ECReservedDefault: 2}
	unit := &models.StockUnit{PhysicalQty: 10, ECQty: 5}

	margin, err := Margin(unit, store)
	require.NoError(t, err)
	require.Equal(t, 3, margin)

	override := 4
	unit.ECReservedOverride = &override
	margin, err = Margin(unit, store)
	require.NoError(t, err)
	require.Equal(t, 1, margin)

	unit.PhysicalQty = 1
	margin, err = Margin(unit, store)
	require.NoError(t, err)
	require.Equal(t, -5, margin)

	unit.ECQty = -1
	_, err = Margin(unit, store)
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeStateConflict))
}

func TestReconcilePublishesPositiveMargin(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 2)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 5)

	require.NoError(t, eng.ReconcileTx(ctx, conn, unit.ID))

	updated := reloadUnit(t, conn, unit.ID)
	require.Equal(t, 8, updated.ECQty)

	var entries []models.ChannelStockLedgerEntry
	require.NoError(t, conn.Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, enums.ChannelReasonAutoStocking, entries[0].Reason)
	require.Equal(t, 3, entries[0].Delta)
	require.Equal(t, 8, entries[0].ResultingQty)
}

func TestReconcileRetractsNegativeMargin(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 2)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 6, 8)

	require.NoError(t, eng.ReconcileTx(ctx, conn, unit.ID))

	updated := reloadUnit(t, conn, unit.ID)
	require.Equal(t, 4, updated.ECQty)

	var entry models.ChannelStockLedgerEntry
	require.NoError(t, conn.First(&entry).Error)
	require.Equal(t, enums.ChannelReasonRecalculate, entry.Reason)
	require.Equal(t, -4, entry.Delta)
}

func TestReconcileIgnoresUnlistedUnits(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 0)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 0)
	require.NoError(t, conn.Model(unit).UpdateColumn("ec_enabled", false).Error)

	require.NoError(t, eng.ReconcileTx(ctx, conn, unit.ID))
	require.Equal(t, 0, reloadUnit(t, conn, unit.ID).ECQty)

	require.NoError(t, eng.ReconcileTx(ctx, conn, uuid.New()))
}

func TestIncreaseBeyondMarginIsRejected(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 2)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 5)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, txErr := eng.IncreaseChannelStockTx(ctx, tx, ChangeInput{
			UnitID: unit.ID,
			Count:  4,
			Reason: enums.ChannelReasonPublish,
		})
		return txErr
	})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeStateConflict))
	require.Equal(t, 5, reloadUnit(t, conn, unit.ID).ECQty)
}

func TestECSellMovesPhysicalStockOnce(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 0)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 10)
	lot := &models.CostLot{
		StockUnitID:  unit.ID,
		ResourceType: enums.ResourceStockUnit,
		ResourceID:   unit.ID,
		UnitPrice:    decimal.NewFromInt(30),
		Count:        10,
		ArrivedAt:    time.Now(),
		Exact:        true,
	}
	require.NoError(t, conn.Create(lot).Error)
	orderID := uuid.New()

	entry, err := eng.DecreaseChannelStockTx(ctx, conn, ChangeInput{
		UnitID:     unit.ID,
		Count:      2,
		Reason:     enums.ChannelReasonECSell,
		ResourceID: &orderID,
	})
	require.NoError(t, err)
	require.Equal(t, -2, entry.Delta)
	require.Equal(t, 8, entry.ResultingQty)

	updated := reloadUnit(t, conn, unit.ID)
	// The physical decrease must not reconcile again, so both quantities
	// drop by exactly the sold count.
	require.Equal(t, 8, updated.PhysicalQty)
	require.Equal(t, 8, updated.ECQty)

	var stockEntry models.StockLedgerEntry
	require.NoError(t, conn.First(&stockEntry).Error)
	require.Equal(t, enums.ReasonECSell, stockEntry.Reason)
	require.Equal(t, -2, stockEntry.Delta)
}

func TestECSellReturnRestoresBothQuantities(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 0)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 10)
	lot := &models.CostLot{
		StockUnitID:  unit.ID,
		ResourceType: enums.ResourceStockUnit,
		ResourceID:   unit.ID,
		UnitPrice:    decimal.NewFromInt(30),
		Count:        10,
		ArrivedAt:    time.Now(),
		Exact:        true,
	}
	require.NoError(t, conn.Create(lot).Error)
	orderID := uuid.New()

	_, err := eng.DecreaseChannelStockTx(ctx, conn, ChangeInput{
		UnitID:     unit.ID,
		Count:      3,
		Reason:     enums.ChannelReasonECSell,
		ResourceID: &orderID,
	})
	require.NoError(t, err)

	_, err = eng.IncreaseChannelStockTx(ctx, conn, ChangeInput{
		UnitID:     unit.ID,
		Count:      3,
		Reason:     enums.ChannelReasonECSellReturn,
		ResourceID: &orderID,
	})
	require.NoError(t, err)

	updated := reloadUnit(t, conn, unit.ID)
	require.Equal(t, 10, updated.PhysicalQty)
	require.Equal(t, 10, updated.ECQty)

	// The returned units carry their original wholesale price back into
	// the pool.
	var pool []models.CostLot
	require.NoError(t, conn.
		Where("resource_type = ?", enums.ResourceStockUnit).
		Where("resource_id = ?", unit.ID).
		Find(&pool).Error)
	total := 0
	for _, l := range pool {
		require.True(t, l.UnitPrice.Equal(decimal.NewFromInt(30)))
		total += l.Count
	}
	require.Equal(t, 10, total)
}

func TestOutboxRecordOnlyForExternalUnits(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 0)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 0)

	require.NoError(t, eng.ReconcileTx(ctx, conn, unit.ID))
	var count int64
	require.NoError(t, conn.Model(&models.OutboxChannelStockRecord{}).Count(&count).Error)
	require.Zero(t, count)

	external := seedChannelUnit(t, conn, store, item, 10, 0)
	require.NoError(t, conn.Model(external).UpdateColumns(map[string]any{
		"external_ec_enabled":   true,
		"external_product_id":   "prod-1",
		"external_variant_id":   "var-1",
		"external_inventory_id": "inv-1",
	}).Error)

	require.NoError(t, eng.ReconcileTx(ctx, conn, external.ID))

	var recs []models.OutboxChannelStockRecord
	require.NoError(t, conn.Find(&recs).Error)
	require.Len(t, recs, 1)
	require.Equal(t, external.ID, recs[0].StockUnitID)
	require.Equal(t, 10, recs[0].Delta)
	require.Equal(t, "prod-1", *recs[0].ExternalProductID)
	require.Nil(t, recs[0].PublishedAt)
}

func TestEnableValidatesListingRequirements(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()
	on := true

	store := seedChannelStore(t, conn, 0)
	item := seedChannelItem(t, conn, store.ID)

	noPrice := seedChannelUnit(t, conn, store, item, 5, 0)
	require.NoError(t, conn.Model(noPrice).UpdateColumns(map[string]any{
		"ec_enabled":    false,
		"ec_sell_price": decimal.Zero,
	}).Error)
	err := eng.Enable(ctx, noPrice.ID, EnableFlags{Channel: &on})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))

	unmapped := seedChannelUnit(t, conn, store, item, 5, 0)
	require.NoError(t, conn.Model(unmapped).UpdateColumns(map[string]any{
		"ec_enabled":       false,
		"condition_handle": nil,
	}).Error)
	err = eng.Enable(ctx, unmapped.ID, EnableFlags{Channel: &on})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeMappingMissing))

	noExternal := seedChannelUnit(t, conn, store, item, 5, 0)
	err = eng.Enable(ctx, noExternal.ID, EnableFlags{External: &on})
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeMappingMissing))
}

func TestEnablePublishesMargin(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()
	on := true

	store := seedChannelStore(t, conn, 1)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 5, 0)
	require.NoError(t, conn.Model(unit).UpdateColumn("ec_enabled", false).Error)

	require.NoError(t, eng.Enable(ctx, unit.ID, EnableFlags{Channel: &on}))

	updated := reloadUnit(t, conn, unit.ID)
	require.True(t, updated.ECEnabled)
	require.Equal(t, 4, updated.ECQty)
}

func TestDisableClearsFlagsWithoutMovingStock(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 0)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 5, 5)

	require.NoError(t, eng.Disable(ctx, unit.ID))

	updated := reloadUnit(t, conn, unit.ID)
	require.False(t, updated.ECEnabled)
	require.False(t, updated.ExternalECEnabled)
	require.Equal(t, 5, updated.ECQty)
}

func TestPublishToMaximumListsFullMargin(t *testing.T) {
	conn := newTestDB(t)
	eng := newTestEngine(t, conn)
	ctx := context.Background()

	store := seedChannelStore(t, conn, 2)
	item := seedChannelItem(t, conn, store.ID)
	unit := seedChannelUnit(t, conn, store, item, 10, 3)

	require.NoError(t, eng.PublishToMaximum(ctx, unit.ID))

	updated := reloadUnit(t, conn, unit.ID)
	require.Equal(t, 8, updated.ECQty)

	var entry models.ChannelStockLedgerEntry
	require.NoError(t, conn.First(&entry).Error)
	require.Equal(t, enums.ChannelReasonPublish, entry.Reason)
	require.Equal(t, 5, entry.Delta)
}
