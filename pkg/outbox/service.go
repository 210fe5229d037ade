package outbox

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
	"github.com/waterfire-source/cardpos-backend/pkg/logger"
)

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit queues a channel stock record for publication inside the caller's
// transaction.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, rec *models.OutboxChannelStockRecord) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.repo.Insert(tx, rec); err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"record_id":     rec.ID.String(),
			"stock_unit_id": rec.StockUnitID.String(),
			"reason":        rec.Reason,
			"delta":         rec.Delta,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "channel stock record queued")
	}
	return nil
}
