package costlot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
	"github.com/waterfire-source/cardpos-backend/pkg/logger"
)

// Service maintains the cost lot pool of every stock unit: consuming lots in
// arrival order when stock leaves, appending or blending lots when stock
// arrives, and keeping the per-unit price aggregates current.
type Service interface {
	Consume(ctx context.Context, tx *gorm.DB, params ConsumeParams) (*ConsumeResult, error)
	Create(ctx context.Context, tx *gorm.DB, params CreateParams) error
	LotsFor(ctx context.Context, tx *gorm.DB, q ListQuery) ([]models.CostLot, error)
	ChildrenOf(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]models.CostLot, error)
	ReplacePool(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, count int, unitPrice decimal.Decimal) error
	UpdateZeroPriceLot(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, unitPrice decimal.Decimal) error
	RefreshUnitStats(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires a cost lot service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cost lot repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Consume(ctx context.Context, tx *gorm.DB, params ConsumeParams) (*ConsumeResult, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if params.StockUnitID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "stock unit id is required")
	}
	if params.Count < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "consume count must not be negative")
	}
	repo := s.repo.WithTx(tx)

	resourceType := params.ResourceType
	if resourceType == "" {
		resourceType = enums.ResourceStockUnit
	}
	resourceID := params.ResourceID
	if resourceID == uuid.Nil {
		resourceID = params.StockUnitID
	}

	lots, err := repo.ListByResource(ctx, ListQuery{
		StockUnitID:   params.StockUnitID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		SpecificPrice: params.SpecificPrice,
		Reverse:       params.Reverse,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing cost lots")
	}
	if params.SpecificPrice != nil && len(lots) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "no cost lot recorded at the requested price")
	}

	remaining := make([]int, len(lots))
	for i, lot := range lots {
		remaining[i] = lot.Count
	}

	result := &ConsumeResult{TotalCost: decimal.Zero}
	usedByIndex := map[int]*UsedLot{}
	var synthetic *UsedLot
	head := 0

	for taken := 0; taken < params.Count; taken++ {
		for head < len(lots) && remaining[head] == 0 {
			head++
		}
		if head >= len(lots) {
			if params.SpecificPrice != nil {
				return nil, apperrors.New(apperrors.CodeValidation, "not enough cost lots at the requested price")
			}
			if synthetic == nil {
				synthetic = &UsedLot{
					Lot: models.CostLot{
						StockUnitID:  params.StockUnitID,
						ResourceType: resourceType,
						ResourceID:   resourceID,
						UnitPrice:    params.SparePrice,
						ArrivedAt:    time.Now(),
						Exact:        false,
					},
					Synthetic: true,
				}
			}
			synthetic.Count++
			result.ShortfallCount++
			continue
		}

		used := usedByIndex[head]
		if used == nil {
			used = &UsedLot{Lot: lots[head]}
			usedByIndex[head] = used
		}
		used.Count++
		remaining[head]--
	}

	// Flatten in pool order, synthetic slice last.
	for i := range lots {
		if used := usedByIndex[i]; used != nil {
			result.Used = append(result.Used, *used)
		}
	}
	if synthetic != nil {
		result.Used = append(result.Used, *synthetic)
	}
	for _, u := range result.Used {
		result.TotalCost = result.TotalCost.Add(u.Lot.UnitPrice.Mul(decimal.NewFromInt(int64(u.Count))))
	}

	if !params.Spend {
		return result, nil
	}

	var deleteIDs []uuid.UUID
	for i, lot := range lots {
		if usedByIndex[i] == nil {
			continue
		}
		if remaining[i] == 0 {
			deleteIDs = append(deleteIDs, lot.ID)
			continue
		}
		if err := repo.UpdateCount(ctx, lot.ID, remaining[i]); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating cost lot count")
		}
	}
	if err := repo.DeleteByIDs(ctx, deleteIDs); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "deleting spent cost lots")
	}

	if resourceType == enums.ResourceStockUnit {
		if err := s.RefreshUnitStats(ctx, tx, params.StockUnitID); err != nil {
			return nil, err
		}
	}

	if result.ShortfallCount > 0 && s.logg != nil {
		logCtx := s.logg.WithStockUnitID(ctx, params.StockUnitID.String())
		s.logg.Warn(logCtx, fmt.Sprintf("cost lot pool short by %d, booked at spare price", result.ShortfallCount))
	}

	return result, nil
}

func (s *service) Create(ctx context.Context, tx *gorm.DB, params CreateParams) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if params.StockUnitID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "stock unit id is required")
	}
	if len(params.Records) == 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)

	resourceType := params.ResourceType
	if resourceType == "" {
		resourceType = enums.ResourceStockUnit
	}
	resourceID := params.ResourceID
	if resourceID == uuid.Nil {
		resourceID = params.StockUnitID
	}

	blended := params.KeepRule == enums.KeepBlended
	for _, rec := range params.Records {
		// A composite breakdown survives only as individual lots.
		if len(rec.Children) > 0 {
			blended = false
			break
		}
	}

	if blended {
		if err := s.createBlended(ctx, repo, params, resourceType, resourceID); err != nil {
			return err
		}
	} else {
		if err := s.createStacked(ctx, repo, params, resourceType, resourceID); err != nil {
			return err
		}
	}

	if resourceType == enums.ResourceStockUnit {
		return s.RefreshUnitStats(ctx, tx, params.StockUnitID)
	}
	return nil
}

func (s *service) createStacked(ctx context.Context, repo Repository, params CreateParams, resourceType enums.ResourceType, resourceID uuid.UUID) error {
	for _, rec := range params.Records {
		if rec.Count <= 0 {
			return apperrors.New(apperrors.CodeValidation, "cost lot count must be positive")
		}

		var arrivedMatch *time.Time
		if !rec.ArrivedAt.IsZero() {
			at := rec.ArrivedAt
			arrivedMatch = &at
		}

		// Records without an arrival timestamp never merge; each arrival
		// stays its own lot.
		if arrivedMatch != nil && len(rec.Children) == 0 {
			match, err := repo.FindMatching(ctx, MatchQuery{
				StockUnitID:  params.StockUnitID,
				ResourceType: resourceType,
				ResourceID:   resourceID,
				UnitPrice:    rec.UnitPrice,
				ArrivedAt:    arrivedMatch,
			})
			if err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "matching cost lot")
			}
			if match != nil {
				if err := repo.UpdateCount(ctx, match.ID, match.Count+rec.Count); err != nil {
					return apperrors.Wrap(apperrors.CodeInternal, err, "merging cost lot")
				}
				continue
			}
		}

		lot := models.CostLot{
			StockUnitID:  params.StockUnitID,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			UnitPrice:    rec.UnitPrice,
			Count:        rec.Count,
			ArrivedAt:    arrivalOrNow(rec.ArrivedAt),
			Exact:        rec.Exact,
		}
		if err := repo.Create(ctx, &lot); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating cost lot")
		}

		for _, child := range rec.Children {
			childLot := models.CostLot{
				StockUnitID:  child.StockUnitID,
				ResourceType: resourceType,
				ResourceID:   resourceID,
				UnitPrice:    child.UnitPrice,
				Count:        child.Count,
				ArrivedAt:    arrivalOrNow(child.ArrivedAt),
				Exact:        child.Exact,
				ParentLotID:  &lot.ID,
			}
			if err := repo.Create(ctx, &childLot); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "creating child cost lot")
			}
		}
	}
	return nil
}

func (s *service) createBlended(ctx context.Context, repo Repository, params CreateParams, resourceType enums.ResourceType, resourceID uuid.UUID) error {
	others, err := repo.ListByResource(ctx, ListQuery{
		StockUnitID:   params.StockUnitID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		ChildlessOnly: true,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "listing pool for blending")
	}

	totalCount := 0
	totalPrice := decimal.Zero
	for _, rec := range params.Records {
		if rec.Count <= 0 {
			return apperrors.New(apperrors.CodeValidation, "cost lot count must be positive")
		}
		totalCount += rec.Count
		totalPrice = totalPrice.Add(rec.TotalPrice())
	}
	for _, lot := range others {
		totalCount += lot.Count
		totalPrice = totalPrice.Add(lot.TotalPrice())
	}
	if totalCount <= 0 {
		return nil
	}

	deleteIDs := make([]uuid.UUID, 0, len(others))
	for _, lot := range others {
		deleteIDs = append(deleteIDs, lot.ID)
	}
	if err := repo.DeleteByIDs(ctx, deleteIDs); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "replacing blended pool")
	}

	now := time.Now()
	for _, group := range SplitEvenly(totalPrice, totalCount) {
		lot := models.CostLot{
			StockUnitID:  params.StockUnitID,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			UnitPrice:    group.UnitPrice,
			Count:        group.Count,
			ArrivedAt:    now,
			Exact:        true,
		}
		if err := repo.Create(ctx, &lot); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating blended cost lot")
		}
	}
	return nil
}

// LotsFor reads lots for a resource without touching them.
func (s *service) LotsFor(ctx context.Context, tx *gorm.DB, q ListQuery) ([]models.CostLot, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	lots, err := s.repo.WithTx(tx).ListByResource(ctx, q)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing cost lots")
	}
	return lots, nil
}

// ChildrenOf reads the per-child breakdown hanging off composite lots.
func (s *service) ChildrenOf(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]models.CostLot, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	lots, err := s.repo.WithTx(tx).ChildrenOf(ctx, parentIDs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing child cost lots")
	}
	return lots, nil
}

// ReplacePool drops the unit's childless pool and writes one fresh lot at
// the given price. A zero count only clears the pool.
func (s *service) ReplacePool(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, count int, unitPrice decimal.Decimal) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	lots, err := repo.ListByResource(ctx, ListQuery{
		StockUnitID:   unitID,
		ResourceType:  enums.ResourceStockUnit,
		ResourceID:    unitID,
		ChildlessOnly: true,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "listing pool for replacement")
	}
	deleteIDs := make([]uuid.UUID, 0, len(lots))
	for _, lot := range lots {
		deleteIDs = append(deleteIDs, lot.ID)
	}
	if err := repo.DeleteByIDs(ctx, deleteIDs); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "clearing pool")
	}

	if count > 0 {
		lot := models.CostLot{
			StockUnitID:  unitID,
			ResourceType: enums.ResourceStockUnit,
			ResourceID:   unitID,
			UnitPrice:    unitPrice,
			Count:        count,
			ArrivedAt:    time.Now(),
			Exact:        true,
		}
		if err := repo.Create(ctx, &lot); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "writing replacement cost lot")
		}
	}
	return s.RefreshUnitStats(ctx, tx, unitID)
}

// UpdateZeroPriceLot backfills the price of an exact, zero-priced pool lot.
// Inventory counting creates such lots first and injects the cost later.
func (s *service) UpdateZeroPriceLot(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, unitPrice decimal.Decimal) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	lot, err := repo.Get(ctx, lotID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading cost lot")
	}
	if lot == nil || lot.ResourceType != enums.ResourceStockUnit || !lot.Exact {
		return apperrors.New(apperrors.CodeNotFound, "cost lot not found")
	}
	if !lot.UnitPrice.IsZero() {
		return apperrors.New(apperrors.CodeValidation, "only zero-priced cost lots can be repriced")
	}

	if err := repo.UpdatePrice(ctx, lotID, unitPrice); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "updating cost lot price")
	}
	return s.RefreshUnitStats(ctx, tx, lot.StockUnitID)
}

// RefreshUnitStats recomputes the pooled wholesale aggregates on the unit.
func (s *service) RefreshUnitStats(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	stats, err := repo.UnitStats(ctx, unitID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "aggregating cost lots")
	}

	if stats.TotalCount == 0 {
		if err := repo.ApplyUnitStats(ctx, unitID, nil, nil, nil, nil); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "clearing unit cost stats")
		}
		return nil
	}

	avg := AveragePrice(stats.TotalPrice, stats.TotalCount)
	total := stats.TotalPrice
	if err := repo.ApplyUnitStats(ctx, unitID, &avg, stats.MinPrice, stats.MaxPrice, &total); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "applying unit cost stats")
	}
	return nil
}

func arrivalOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
