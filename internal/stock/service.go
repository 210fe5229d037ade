package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/internal/costlot"
	"github.com/waterfire-source/cardpos-backend/pkg/db"
	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
	"github.com/waterfire-source/cardpos-backend/pkg/logger"
	"github.com/waterfire-source/cardpos-backend/pkg/metrics"
)

// Reconciler realigns a unit's channel quantity after its physical quantity
// moved. The channel engine implements it; binding it late breaks the
// dependency cycle between the two packages.
type Reconciler interface {
	ReconcileTx(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) error
}

// Service applies physical stock mutations. Every mutation resolves a
// handler from the item kind and the reason, moves the quantity, settles
// the wholesale cost lots and appends one ledger entry, all inside a single
// transaction.
type Service interface {
	Increase(ctx context.Context, input IncreaseInput) (*Result, error)
	IncreaseTx(ctx context.Context, tx *gorm.DB, input IncreaseInput) (*Result, error)
	Decrease(ctx context.Context, input DecreaseInput) (*Result, error)
	DecreaseTx(ctx context.Context, tx *gorm.DB, input DecreaseInput) (*Result, error)
	BindReconciler(r Reconciler)
}

type service struct {
	client        *db.Client
	repo          Repository
	lots          costlot.Service
	logg          *logger.Logger
	metrics       *metrics.LedgerMetrics
	systemActorID uuid.UUID
	reconciler    Reconciler
}

// NewService wires the stock mutator. The metrics handle may be nil.
func NewService(client *db.Client, repo Repository, lots costlot.Service, logg *logger.Logger, met *metrics.LedgerMetrics, systemActorID uuid.UUID) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if lots == nil {
		return nil, fmt.Errorf("cost lot service required")
	}
	if systemActorID == uuid.Nil {
		return nil, fmt.Errorf("system actor id required")
	}
	return &service{
		client:        client,
		repo:          repo,
		lots:          lots,
		logg:          logg,
		metrics:       met,
		systemActorID: systemActorID,
	}, nil
}

func (s *service) BindReconciler(r Reconciler) {
	s.reconciler = r
}

// mutation is the working state one handler operates on. The ledger entry
// exists before the handler runs so cost settlement can backfill its price.
type mutation struct {
	svc  *service
	tx   *gorm.DB
	repo Repository

	unit  *models.StockUnit
	item  *models.CatalogItem
	store *models.Store

	count         int
	reason        enums.StockReason
	ref           *ResourceRef
	lots          []costlot.Record
	specificPrice *decimal.Decimal

	entry     *models.StockLedgerEntry
	result    *Result
	shortfall int
}

func (m *mutation) keepRule() enums.LotKeepRule {
	if m.store != nil && m.store.WholesaleKeepRule.IsValid() {
		return m.store.WholesaleKeepRule
	}
	return enums.KeepStacked
}

func (m *mutation) requireRef() (*ResourceRef, error) {
	if m.ref == nil || m.ref.ID == uuid.Nil || !m.ref.Type.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "reason %s requires a resource reference", m.reason)
	}
	return m.ref, nil
}

func (m *mutation) backfillUnitPrice(ctx context.Context, price decimal.Decimal) error {
	m.entry.UnitPrice = &price
	if err := m.repo.SetEntryUnitPrice(ctx, m.entry.ID, price); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "backfilling ledger unit price")
	}
	return nil
}

func (s *service) Increase(ctx context.Context, input IncreaseInput) (*Result, error) {
	if s.client == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "database client required")
	}
	var result *Result
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.IncreaseTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Decrease(ctx context.Context, input DecreaseInput) (*Result, error) {
	if s.client == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "database client required")
	}
	var result *Result
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.DecreaseTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) IncreaseTx(ctx context.Context, tx *gorm.DB, input IncreaseInput) (*Result, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if input.UnitID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "stock unit id is required")
	}
	if input.Count <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "increase count must be positive")
	}
	if !input.Reason.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown stock reason %q", input.Reason)
	}
	if covered := recordsTotalCount(input.Lots); len(input.Lots) > 0 && covered != input.Count {
		return nil, apperrors.Newf(apperrors.CodeValidation, "explicit lots cover %d of %d increased units", covered, input.Count)
	}

	m, err := s.prepare(ctx, tx, input.UnitID)
	if err != nil {
		return nil, err
	}
	m.count = input.Count
	m.reason = input.Reason
	m.ref = input.ResourceRef
	m.lots = normalizeRecords(input.Lots, m.unit.ID)

	handler, ok := increaseHandlers[dispatchKey{Kind: m.item.Kind, Reason: input.Reason}]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnsupportedOperation, "kind %s cannot increase for reason %s", m.item.Kind, input.Reason)
	}

	resultingQty := m.unit.PhysicalQty
	if !m.item.InfiniteStock {
		resultingQty, err = m.repo.AdjustQty(ctx, m.unit.ID, input.Count)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "increasing stock quantity")
		}
	}

	var unitPrice *decimal.Decimal
	if len(m.lots) > 0 {
		avg := recordsAverage(m.lots)
		unitPrice = &avg
	}
	entry := &models.StockLedgerEntry{
		StockUnitID:  m.unit.ID,
		ActorID:      s.actorOrSystem(input.ActorID),
		Reason:       input.Reason,
		Delta:        input.Count,
		UnitPrice:    unitPrice,
		ResultingQty: resultingQty,
		Note:         input.Note,
	}
	if m.ref != nil {
		refType := m.ref.Type
		refID := m.ref.ID
		entry.ResourceType = &refType
		entry.ResourceID = &refID
	}
	if err := m.repo.CreateEntry(ctx, entry); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "writing stock ledger entry")
	}
	m.entry = entry
	m.result = &Result{Entry: entry, TotalCost: decimal.Zero}

	if err := handler(ctx, m); err != nil {
		return nil, err
	}

	s.observeShortfall(m)
	s.logMutation(ctx, m, "stock increased")

	if input.Reason != enums.ReasonECSellReturn {
		if err := s.reconcile(ctx, tx, m); err != nil {
			return nil, err
		}
	}
	return m.result, nil
}

func (s *service) DecreaseTx(ctx context.Context, tx *gorm.DB, input DecreaseInput) (*Result, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if input.UnitID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "stock unit id is required")
	}
	if input.Count < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "decrease count must not be negative")
	}
	if !input.Reason.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown stock reason %q", input.Reason)
	}

	m, err := s.prepare(ctx, tx, input.UnitID)
	if err != nil {
		return nil, err
	}
	m.count = input.Count
	m.reason = input.Reason
	m.ref = input.ResourceRef
	m.specificPrice = input.SpecificUnitPrice

	handler, ok := decreaseHandlers[dispatchKey{Kind: m.item.Kind, Reason: input.Reason}]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnsupportedOperation, "kind %s cannot decrease for reason %s", m.item.Kind, input.Reason)
	}

	resultingQty := m.unit.PhysicalQty
	if !m.item.InfiniteStock {
		resultingQty, err = m.repo.AdjustQty(ctx, m.unit.ID, -input.Count)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "decreasing stock quantity")
		}
		if resultingQty < 0 {
			return nil, apperrors.Newf(apperrors.CodeInsufficientStock, "stock unit %s has insufficient stock", m.unit.ID)
		}
	}

	unitPrice := m.unit.SellPrice
	if input.UnitPriceOverride != nil {
		unitPrice = *input.UnitPriceOverride
	}
	entry := &models.StockLedgerEntry{
		StockUnitID:  m.unit.ID,
		ActorID:      s.actorOrSystem(input.ActorID),
		Reason:       input.Reason,
		Delta:        -input.Count,
		UnitPrice:    &unitPrice,
		ResultingQty: resultingQty,
		Note:         input.Note,
	}
	if m.ref != nil {
		refType := m.ref.Type
		refID := m.ref.ID
		entry.ResourceType = &refType
		entry.ResourceID = &refID
	}
	if err := m.repo.CreateEntry(ctx, entry); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "writing stock ledger entry")
	}
	m.entry = entry
	m.result = &Result{Entry: entry, TotalCost: decimal.Zero}

	if err := handler(ctx, m); err != nil {
		return nil, err
	}

	if resultingQty <= 0 && m.unit.IsSpecialPrice && !m.item.InfiniteStock {
		if err := m.repo.SoftDeleteUnit(ctx, m.unit.ID); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "retiring special price unit")
		}
	}

	s.observeShortfall(m)
	s.logMutation(ctx, m, "stock decreased")

	if input.Reason != enums.ReasonECSell {
		if err := s.reconcile(ctx, tx, m); err != nil {
			return nil, err
		}
	}
	return m.result, nil
}

func (s *service) prepare(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) (*mutation, error) {
	repo := s.repo.WithTx(tx)

	unit, err := repo.GetUnit(ctx, unitID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading stock unit")
	}
	if unit == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "stock unit %s not found", unitID)
	}
	item, err := repo.GetItem(ctx, unit.ItemID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading catalog item")
	}
	if item == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "catalog item %s not found", unit.ItemID)
	}
	store, err := repo.GetStore(ctx, unit.StoreID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading store")
	}
	if store == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "store %s not found", unit.StoreID)
	}

	return &mutation{
		svc:   s,
		tx:    tx,
		repo:  repo,
		unit:  unit,
		item:  item,
		store: store,
	}, nil
}

func (s *service) actorOrSystem(actorID uuid.UUID) uuid.UUID {
	if actorID != uuid.Nil {
		return actorID
	}
	return s.systemActorID
}

func (s *service) observeShortfall(m *mutation) {
	if m.shortfall <= 0 {
		return
	}
	s.metrics.ObserveShortfall(string(m.reason), m.shortfall)
}

func (s *service) reconcile(ctx context.Context, tx *gorm.DB, m *mutation) error {
	if s.reconciler == nil || m.item.InfiniteStock {
		return nil
	}
	return s.reconciler.ReconcileTx(ctx, tx, m.unit.ID)
}

func (s *service) logMutation(ctx context.Context, m *mutation, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithStockUnitID(ctx, m.unit.ID.String())
	logCtx = s.logg.WithReason(logCtx, string(m.reason))
	s.logg.Info(logCtx, fmt.Sprintf("%s by %d, resulting qty %d", msg, m.count, m.entry.ResultingQty))
}

func normalizeRecords(records []costlot.Record, unitID uuid.UUID) []costlot.Record {
	out := make([]costlot.Record, len(records))
	copy(out, records)
	for i := range out {
		if out[i].StockUnitID == uuid.Nil {
			out[i].StockUnitID = unitID
		}
	}
	return out
}

func recordsTotalCount(records []costlot.Record) int {
	count := 0
	for _, rec := range records {
		count += rec.Count
	}
	return count
}

func recordsAverage(records []costlot.Record) decimal.Decimal {
	total := decimal.Zero
	count := 0
	for _, rec := range records {
		total = total.Add(rec.TotalPrice())
		count += rec.Count
	}
	return costlot.AveragePrice(total, count)
}
