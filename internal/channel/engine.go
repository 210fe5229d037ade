package channel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/internal/stock"
	"github.com/waterfire-source/cardpos-backend/pkg/db"
	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/enums"
	apperrors "github.com/waterfire-source/cardpos-backend/pkg/errors"
	"github.com/waterfire-source/cardpos-backend/pkg/logger"
	"github.com/waterfire-source/cardpos-backend/pkg/outbox"
)

// ChangeInput describes one listed quantity mutation.
type ChangeInput struct {
	UnitID uuid.UUID
	Count  int
	Reason enums.ChannelStockReason
	// ResourceID points at the channel order for sell and return flows.
	ResourceID *uuid.UUID
	Note       *string
	ActorID    uuid.UUID
}

// EnableFlags toggles the two listing flags. Nil leaves a flag untouched;
// enabling the external channel implies the base listing.
type EnableFlags struct {
	Channel  *bool
	External *bool
}

// Engine keeps the listed (EC) quantity consistent with the physical
// quantity. It implements stock.Reconciler so every physical mutation pulls
// the listing back inside the margin within the same transaction.
type Engine interface {
	Reconcile(ctx context.Context, unitID uuid.UUID) error
	ReconcileTx(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) error
	IncreaseChannelStockTx(ctx context.Context, tx *gorm.DB, input ChangeInput) (*models.ChannelStockLedgerEntry, error)
	DecreaseChannelStockTx(ctx context.Context, tx *gorm.DB, input ChangeInput) (*models.ChannelStockLedgerEntry, error)
	Enable(ctx context.Context, unitID uuid.UUID, flags EnableFlags) error
	Disable(ctx context.Context, unitID uuid.UUID) error
	PublishToMaximum(ctx context.Context, unitID uuid.UUID) error
}

type engine struct {
	client        *db.Client
	repo          Repository
	stock         stock.Service
	outbox        *outbox.Service
	logg          *logger.Logger
	systemActorID uuid.UUID
}

// NewEngine wires the channel engine. The outbox service may be nil when no
// external channel is configured.
func NewEngine(client *db.Client, repo Repository, stockSvc stock.Service, outboxSvc *outbox.Service, logg *logger.Logger, systemActorID uuid.UUID) (Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("channel repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if systemActorID == uuid.Nil {
		return nil, fmt.Errorf("system actor id required")
	}
	return &engine{
		client:        client,
		repo:          repo,
		stock:         stockSvc,
		outbox:        outboxSvc,
		logg:          logg,
		systemActorID: systemActorID,
	}, nil
}

// Margin is the headroom between what may be listed and what is listed:
// max(0, physical - reserved) - listed. A negative listed quantity means
// the ledger was corrupted outside this engine.
func Margin(unit *models.StockUnit, store *models.Store) (int, error) {
	if unit.ECQty < 0 {
		return 0, apperrors.Newf(apperrors.CodeStateConflict, "stock unit %s has a negative channel quantity", unit.ID)
	}
	ceiling := unit.PhysicalQty - unit.ReservedFor(store)
	if ceiling < 0 {
		ceiling = 0
	}
	return ceiling - unit.ECQty, nil
}

func (e *engine) Reconcile(ctx context.Context, unitID uuid.UUID) error {
	if e.client == nil {
		return apperrors.New(apperrors.CodeInternal, "database client required")
	}
	return e.client.WithTx(ctx, func(tx *gorm.DB) error {
		return e.ReconcileTx(ctx, tx, unitID)
	})
}

// ReconcileTx realigns the listed quantity with the margin. Units that are
// gone, unlisted or not channel eligible are left alone.
func (e *engine) ReconcileTx(ctx context.Context, tx *gorm.DB, unitID uuid.UUID) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	repo := e.repo.WithTx(tx)

	unit, err := repo.GetUnit(ctx, unitID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading stock unit")
	}
	if unit == nil || !unit.ECEnabled {
		return nil
	}
	item, err := repo.GetItem(ctx, unit.ItemID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading catalog item")
	}
	store, err := repo.GetStore(ctx, unit.StoreID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading store")
	}
	if item == nil || store == nil || !store.ECEnabled || !item.ECEligible {
		return nil
	}

	margin, err := Margin(unit, store)
	if err != nil {
		return err
	}
	switch {
	case margin > 0:
		_, err = e.IncreaseChannelStockTx(ctx, tx, ChangeInput{
			UnitID: unitID,
			Count:  margin,
			Reason: enums.ChannelReasonAutoStocking,
		})
	case margin < 0:
		_, err = e.DecreaseChannelStockTx(ctx, tx, ChangeInput{
			UnitID: unitID,
			Count:  -margin,
			Reason: enums.ChannelReasonRecalculate,
		})
	}
	return err
}

func (e *engine) IncreaseChannelStockTx(ctx context.Context, tx *gorm.DB, input ChangeInput) (*models.ChannelStockLedgerEntry, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if input.Count <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "channel increase count must be positive")
	}
	if !input.Reason.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown channel stock reason %q", input.Reason)
	}
	repo := e.repo.WithTx(tx)

	unit, store, err := e.load(ctx, repo, input.UnitID)
	if err != nil {
		return nil, err
	}

	if input.Reason == enums.ChannelReasonECSellReturn {
		// The returned goods come back on hand as well. The physical
		// mutation must not reconcile again or it would double publish.
		ref, err := channelOrderRef(input)
		if err != nil {
			return nil, err
		}
		if _, err := e.stock.IncreaseTx(ctx, tx, stock.IncreaseInput{
			UnitID:      input.UnitID,
			Count:       input.Count,
			Reason:      enums.ReasonECSellReturn,
			ResourceRef: ref,
			ActorID:     e.actorOrSystem(input.ActorID),
		}); err != nil {
			return nil, err
		}
	} else {
		margin, err := Margin(unit, store)
		if err != nil {
			return nil, err
		}
		if input.Count > margin {
			return nil, apperrors.Newf(apperrors.CodeStateConflict, "channel increase of %d exceeds the margin of %d", input.Count, margin)
		}
	}

	return e.applyChange(ctx, tx, unit, input, input.Count)
}

func (e *engine) DecreaseChannelStockTx(ctx context.Context, tx *gorm.DB, input ChangeInput) (*models.ChannelStockLedgerEntry, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if input.Count <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "channel decrease count must be positive")
	}
	if !input.Reason.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown channel stock reason %q", input.Reason)
	}
	repo := e.repo.WithTx(tx)

	unit, _, err := e.load(ctx, repo, input.UnitID)
	if err != nil {
		return nil, err
	}

	if input.Reason == enums.ChannelReasonECSell {
		ref, err := channelOrderRef(input)
		if err != nil {
			return nil, err
		}
		if _, err := e.stock.DecreaseTx(ctx, tx, stock.DecreaseInput{
			UnitID:      input.UnitID,
			Count:       input.Count,
			Reason:      enums.ReasonECSell,
			ResourceRef: ref,
			ActorID:     e.actorOrSystem(input.ActorID),
		}); err != nil {
			return nil, err
		}
	}

	return e.applyChange(ctx, tx, unit, input, -input.Count)
}

func (e *engine) applyChange(ctx context.Context, tx *gorm.DB, unit *models.StockUnit, input ChangeInput, delta int) (*models.ChannelStockLedgerEntry, error) {
	repo := e.repo.WithTx(tx)
	resultingQty, err := repo.AdjustECQty(ctx, unit.ID, delta)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "adjusting channel quantity")
	}
	if resultingQty < 0 {
		return nil, apperrors.Newf(apperrors.CodeStateConflict, "stock unit %s cannot list a negative quantity", unit.ID)
	}

	entry := &models.ChannelStockLedgerEntry{
		StockUnitID:  unit.ID,
		ActorID:      e.actorOrSystem(input.ActorID),
		Reason:       input.Reason,
		Delta:        delta,
		ResultingQty: resultingQty,
		ResourceID:   input.ResourceID,
		Note:         input.Note,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "writing channel ledger entry")
	}

	if unit.ExternalECEnabled && e.outbox != nil {
		rec := &models.OutboxChannelStockRecord{
			StockUnitID:         unit.ID,
			StoreID:             unit.StoreID,
			Delta:               delta,
			ResultingQty:        resultingQty,
			Reason:              input.Reason,
			ExternalProductID:   unit.ExternalProductID,
			ExternalVariantID:   unit.ExternalVariantID,
			ExternalInventoryID: unit.ExternalInventoryID,
			ResourceID:          input.ResourceID,
			Note:                input.Note,
		}
		if err := e.outbox.Emit(ctx, tx, rec); err != nil {
			return nil, err
		}
	}

	if e.logg != nil {
		logCtx := e.logg.WithStockUnitID(ctx, unit.ID.String())
		logCtx = e.logg.WithReason(logCtx, string(input.Reason))
		e.logg.Info(logCtx, fmt.Sprintf("channel stock moved by %d, resulting qty %d", delta, resultingQty))
	}
	return entry, nil
}

// Enable turns listing on or off. Turning anything on demands a sell price
// and complete channel mappings, and immediately publishes the margin.
func (e *engine) Enable(ctx context.Context, unitID uuid.UUID, flags EnableFlags) error {
	if flags.Channel == nil && flags.External == nil {
		return nil
	}
	if e.client == nil {
		return apperrors.New(apperrors.CodeInternal, "database client required")
	}
	return e.client.WithTx(ctx, func(tx *gorm.DB) error {
		return e.enableTx(ctx, tx, unitID, flags)
	})
}

func (e *engine) enableTx(ctx context.Context, tx *gorm.DB, unitID uuid.UUID, flags EnableFlags) error {
	repo := e.repo.WithTx(tx)

	unit, store, err := e.load(ctx, repo, unitID)
	if err != nil {
		return err
	}
	item, err := repo.GetItem(ctx, unit.ItemID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading catalog item")
	}
	if item == nil {
		return apperrors.Newf(apperrors.CodeNotFound, "catalog item %s not found", unit.ItemID)
	}

	channelEnabled := unit.ECEnabled
	externalEnabled := unit.ExternalECEnabled
	if flags.Channel != nil {
		channelEnabled = *flags.Channel
	}
	if flags.External != nil {
		externalEnabled = *flags.External
	}
	if externalEnabled {
		channelEnabled = true
	}

	if channelEnabled || externalEnabled {
		if !store.ECEnabled {
			return apperrors.New(apperrors.CodeStateConflict, "store has no channel configured")
		}
		if !item.ECEligible {
			return apperrors.Newf(apperrors.CodeValidation, "item %s is not channel eligible", item.ID)
		}
		if unit.ECSellPrice.IsZero() || unit.ECSellPrice.IsNegative() {
			return apperrors.Newf(apperrors.CodeValidation, "stock unit %s has no channel sell price", unit.ID)
		}
		if unit.ConditionHandle == nil || *unit.ConditionHandle == "" {
			return apperrors.Newf(apperrors.CodeMappingMissing, "stock unit %s has an unmapped condition", unit.ID)
		}
		if unit.SpecialtyHandle != nil && *unit.SpecialtyHandle == "" {
			return apperrors.Newf(apperrors.CodeMappingMissing, "stock unit %s has an unmapped specialty", unit.ID)
		}
	}
	if externalEnabled && !unit.ExternalECEnabled {
		if isBlank(unit.ExternalProductID) || isBlank(unit.ExternalVariantID) || isBlank(unit.ExternalInventoryID) {
			return apperrors.Newf(apperrors.CodeMappingMissing, "stock unit %s is missing its external channel mapping", unit.ID)
		}
	}

	if err := repo.SetChannelFlags(ctx, unitID, channelEnabled, externalEnabled); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "updating channel flags")
	}

	if channelEnabled || externalEnabled {
		return e.ReconcileTx(ctx, tx, unitID)
	}
	return nil
}

// Disable delists the unit without moving any stock.
func (e *engine) Disable(ctx context.Context, unitID uuid.UUID) error {
	if e.client == nil {
		return apperrors.New(apperrors.CodeInternal, "database client required")
	}
	return e.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		unit, _, err := e.load(ctx, repo, unitID)
		if err != nil {
			return err
		}
		if err := repo.SetChannelFlags(ctx, unit.ID, false, false); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating channel flags")
		}
		return nil
	})
}

// PublishToMaximum lists the full margin in one move.
func (e *engine) PublishToMaximum(ctx context.Context, unitID uuid.UUID) error {
	if e.client == nil {
		return apperrors.New(apperrors.CodeInternal, "database client required")
	}
	return e.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		unit, store, err := e.load(ctx, repo, unitID)
		if err != nil {
			return err
		}
		margin, err := Margin(unit, store)
		if err != nil {
			return err
		}
		if margin <= 0 {
			return nil
		}
		_, err = e.IncreaseChannelStockTx(ctx, tx, ChangeInput{
			UnitID: unitID,
			Count:  margin,
			Reason: enums.ChannelReasonPublish,
		})
		return err
	})
}

func (e *engine) load(ctx context.Context, repo Repository, unitID uuid.UUID) (*models.StockUnit, *models.Store, error) {
	unit, err := repo.GetUnit(ctx, unitID)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading stock unit")
	}
	if unit == nil {
		return nil, nil, apperrors.Newf(apperrors.CodeNotFound, "stock unit %s not found", unitID)
	}
	store, err := repo.GetStore(ctx, unit.StoreID)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading store")
	}
	if store == nil {
		return nil, nil, apperrors.Newf(apperrors.CodeNotFound, "store %s not found", unit.StoreID)
	}
	return unit, store, nil
}

func (e *engine) actorOrSystem(actorID uuid.UUID) uuid.UUID {
	if actorID != uuid.Nil {
		return actorID
	}
	return e.systemActorID
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

func channelOrderRef(input ChangeInput) (*stock.ResourceRef, error) {
	if input.ResourceID == nil || *input.ResourceID == uuid.Nil {
		return nil, apperrors.Newf(apperrors.CodeValidation, "reason %s requires a channel order reference", input.Reason)
	}
	return &stock.ResourceRef{
		Type: enums.ResourceChannelOrder,
		ID:   *input.ResourceID,
	}, nil
}
