package costlot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// Repository manages persistence for cost lots. Child lots (parent_lot_id
// set) never appear in pool listings; they only travel with their parent.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByResource(ctx context.Context, q ListQuery) ([]models.CostLot, error)
	ChildrenOf(ctx context.Context, parentIDs []uuid.UUID) ([]models.CostLot, error)
	Create(ctx context.Context, lot *models.CostLot) error
	UpdateCount(ctx context.Context, id uuid.UUID, count int) error
	UpdatePrice(ctx context.Context, id uuid.UUID, unitPrice decimal.Decimal) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
	FindMatching(ctx context.Context, match MatchQuery) (*models.CostLot, error)
	UnitStats(ctx context.Context, unitID uuid.UUID) (*UnitStats, error)
	ApplyUnitStats(ctx context.Context, unitID uuid.UUID, avg, min, max, total *decimal.Decimal) error
	Get(ctx context.Context, id uuid.UUID) (*models.CostLot, error)
}

// ListQuery selects the lots attached to one resource on one unit.
type ListQuery struct {
	StockUnitID   uuid.UUID
	ResourceType  enums.ResourceType
	ResourceID    uuid.UUID
	SpecificPrice *decimal.Decimal
	Reverse       bool
	// ChildlessOnly skips lots that carry children; blending never folds
	// a composite breakdown into an average.
	ChildlessOnly bool
}

// MatchQuery looks for an existing childless lot a new record can merge into.
type MatchQuery struct {
	StockUnitID  uuid.UUID
	ResourceType enums.ResourceType
	ResourceID   uuid.UUID
	UnitPrice    decimal.Decimal
	ArrivedAt    *time.Time
}

// UnitStats aggregates the unallocated pool of one unit.
type UnitStats struct {
	TotalCount int
	TotalPrice decimal.Decimal
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cost lot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByResource(ctx context.Context, q ListQuery) ([]models.CostLot, error) {
	query := r.db.WithContext(ctx).
		Where("resource_type = ?", q.ResourceType).
		Where("resource_id = ?", q.ResourceID).
		Where("parent_lot_id IS NULL")
	// A nil unit id widens the query to every unit sharing the resource,
	// which is how pack level lots spanning child units are read back.
	if q.StockUnitID != uuid.Nil {
		query = query.Where("stock_unit_id = ?", q.StockUnitID)
	}
	if q.SpecificPrice != nil {
		query = query.Where("unit_price = ?", *q.SpecificPrice)
	}
	if q.ChildlessOnly {
		query = query.Where("NOT EXISTS (SELECT 1 FROM cost_lots children WHERE children.parent_lot_id = cost_lots.id)")
	}
	if q.Reverse {
		query = query.Order("arrived_at DESC").Order("id DESC")
	} else {
		query = query.Order("arrived_at ASC").Order("id ASC")
	}

	var lots []models.CostLot
	if err := query.Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *repository) ChildrenOf(ctx context.Context, parentIDs []uuid.UUID) ([]models.CostLot, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var lots []models.CostLot
	if err := r.db.WithContext(ctx).
		Where("parent_lot_id IN ?", parentIDs).
		Order("arrived_at ASC").Order("id ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *repository) Create(ctx context.Context, lot *models.CostLot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *repository) UpdateCount(ctx context.Context, id uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.CostLot{}).
		Where("id = ?", id).
		Update("count", count).Error
}

func (r *repository) UpdatePrice(ctx context.Context, id uuid.UUID, unitPrice decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.CostLot{}).
		Where("id = ?", id).
		Update("unit_price", unitPrice).Error
}

func (r *repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("parent_lot_id IN ?", ids).
		Delete(&models.CostLot{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.CostLot{}).Error
}

func (r *repository) FindMatching(ctx context.Context, match MatchQuery) (*models.CostLot, error) {
	query := r.db.WithContext(ctx).
		Where("stock_unit_id = ?", match.StockUnitID).
		Where("resource_type = ?", match.ResourceType).
		Where("resource_id = ?", match.ResourceID).
		Where("unit_price = ?", match.UnitPrice).
		Where("parent_lot_id IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM cost_lots children WHERE children.parent_lot_id = cost_lots.id)")
	if match.ArrivedAt != nil {
		query = query.Where("arrived_at = ?", *match.ArrivedAt)
	}

	var lot models.CostLot
	err := query.First(&lot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *repository) UnitStats(ctx context.Context, unitID uuid.UUID) (*UnitStats, error) {
	var row struct {
		TotalCount int
		TotalPrice decimal.Decimal
		MinPrice   *decimal.Decimal
		MaxPrice   *decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.CostLot{}).
		Select("COALESCE(SUM(count), 0) AS total_count, COALESCE(SUM(count * unit_price), 0) AS total_price, MIN(unit_price) AS min_price, MAX(unit_price) AS max_price").
		Where("stock_unit_id = ?", unitID).
		Where("resource_type = ?", enums.ResourceStockUnit).
		Where("resource_id = ?", unitID).
		Where("parent_lot_id IS NULL").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &UnitStats{
		TotalCount: row.TotalCount,
		TotalPrice: row.TotalPrice,
		MinPrice:   row.MinPrice,
		MaxPrice:   row.MaxPrice,
	}, nil
}

func (r *repository) ApplyUnitStats(ctx context.Context, unitID uuid.UUID, avg, min, max, total *decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("id = ?", unitID).
		Updates(map[string]any{
			"average_wholesale_price": avg,
			"min_wholesale_price":     min,
			"max_wholesale_price":     max,
			"total_wholesale_price":   total,
		}).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.CostLot, error) {
	var lot models.CostLot
	err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}
