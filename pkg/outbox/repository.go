package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a record inside the caller's transaction so the channel
// mutation and its outbox row commit atomically.
func (r *Repository) Insert(tx *gorm.DB, rec *models.OutboxChannelStockRecord) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(rec).Error
}

// FetchUnpublished returns the oldest unpublished records still inside the
// retry budget.
func (r *Repository) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxChannelStockRecord, error) {
	var rows []models.OutboxChannelStockRecord
	err := r.db.Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(id uuid.UUID) error {
	return r.db.Model(&models.OutboxChannelStockRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now(),
		}).Error
}

func (r *Repository) MarkFailed(id uuid.UUID, cause error) error {
	return r.db.Model(&models.OutboxChannelStockRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminal pins the attempt counter at the retry ceiling so the record
// drops out of future polls while keeping the row for inspection.
func (r *Repository) MarkTerminal(id uuid.UUID, maxAttempts int, cause error) error {
	return r.db.Model(&models.OutboxChannelStockRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": maxAttempts,
		}).Error
}
