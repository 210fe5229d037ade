package channel

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
)

// Repository is the persistence surface of the channel engine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetUnit(ctx context.Context, id uuid.UUID) (*models.StockUnit, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	AdjustECQty(ctx context.Context, unitID uuid.UUID, delta int) (int, error)
	SetChannelFlags(ctx context.Context, unitID uuid.UUID, ecEnabled, externalEnabled bool) error
	CreateEntry(ctx context.Context, entry *models.ChannelStockLedgerEntry) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a channel repository bound to the provided database.
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

func (r *repository) AdjustECQty(ctx context.Context, unitID uuid.UUID, delta int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ?", unitID).
		UpdateColumn("ec_qty", gorm.Expr("ec_qty + ?", delta))
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
		Select("ec_qty").
		Scan(&qty).Error; err != nil {
		return 0, err
	}
	return qty, nil
}

func (r *repository) SetChannelFlags(ctx context.Context, unitID uuid.UUID, ecEnabled, externalEnabled bool) error {
	return r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ?", unitID).
		UpdateColumns(map[string]any{
			"ec_enabled":          ecEnabled,
			"external_ec_enabled": externalEnabled,
		}).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.ChannelStockLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
