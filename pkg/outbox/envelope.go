package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/waterfire-source/cardpos-backend/pkg/db/models"
)

// Envelope is the stable wire structure published to the channel stock
// topic. The channel platform consumes it to adjust external listings.
type Envelope struct {
	RecordID            uuid.UUID  `json:"recordId"`
	StockUnitID         uuid.UUID  `json:"stockUnitId"`
	StoreID             uuid.UUID  `json:"storeId"`
	Delta               int        `json:"delta"`
	ResultingQty        int        `json:"resultingQty"`
	Reason              string     `json:"reason"`
	ExternalProductID   *string    `json:"externalProductId,omitempty"`
	ExternalVariantID   *string    `json:"externalVariantId,omitempty"`
	ExternalInventoryID *string    `json:"externalInventoryId,omitempty"`
	ResourceID          *uuid.UUID `json:"resourceId,omitempty"`
	Note                *string    `json:"note,omitempty"`
	OccurredAt          time.Time  `json:"occurredAt"`
}

// Encode builds the publish payload for a stored record.
func Encode(rec *models.OutboxChannelStockRecord) ([]byte, error) {
	env := Envelope{
		RecordID:            rec.ID,
		StockUnitID:         rec.StockUnitID,
		StoreID:             rec.StoreID,
		Delta:               rec.Delta,
		ResultingQty:        rec.ResultingQty,
		Reason:              string(rec.Reason),
		ExternalProductID:   rec.ExternalProductID,
		ExternalVariantID:   rec.ExternalVariantID,
		ExternalInventoryID: rec.ExternalInventoryID,
		ResourceID:          rec.ResourceID,
		Note:                rec.Note,
		OccurredAt:          rec.CreatedAt,
	}
	return json.Marshal(env)
}
