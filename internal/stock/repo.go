package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
)

// Repository is the persistence surface of the stock mutator. All writes
// run on the transaction handed in through WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetUnit(ctx context.Context, id uuid.UUID) (*models.StockUnit, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListDefinitions(ctx context.Context, itemID uuid.UUID) ([]models.CompositeDefinition, error)
	AdjustQty(ctx context.Context, unitID uuid.UUID, delta int) (int, error)
	SoftDeleteUnit(ctx context.Context, unitID uuid.UUID) error
	CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error
	SetEntryUnitPrice(ctx context.Context, entryID uuid.UUID, unitPrice decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetUnit(ctx context.Context, id uuid.UUID) (*models.StockUnit, error) {
	var unit models.StockUnit
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("deleted = ?", false).
		First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) GetItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) ListDefinitions(ctx context.Context, itemID uuid.UUID) ([]models.CompositeDefinition, error) {
	var defs []models.CompositeDefinition
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").Order("id ASC").
		Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

// AdjustQty applies the delta in a single relative update and returns the
// resulting quantity. Callers reject negative results inside the same
// transaction, so concurrent mutations serialize on the row instead of
// racing a read-modify-write.
func (r *repository) AdjustQty(ctx context.Context, unitID uuid.UUID, delta int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ?", unitID).
		UpdateColumn("physical_qty", gorm.Expr("physical_qty + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var qty int
	if err := r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ?", unitID).
		Select("physical_qty").
		Scan(&qty).Error; err != nil {
		return 0, err
	}
	return qty, nil
}

func (r *repository) SoftDeleteUnit(ctx context.Context, unitID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ?", unitID).
		UpdateColumn("deleted", true).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) SetEntryUnitPrice(ctx context.Context, entryID uuid.UUID, unitPrice decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.StockLedgerEntry{}).
		Where("id = ?", entryID).
		UpdateColumn("unit_price", unitPrice).Error
}
