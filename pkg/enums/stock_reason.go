package enums

import "fmt"

// StockReason maps to the stock_reason enum in Postgres. It labels every
// physical quantity mutation recorded in the stock ledger.
type StockReason string

const (
	ReasonStocking              StockReason = "stocking"
	ReasonStockingRollback      StockReason = "stocking_rollback"
	ReasonTransactionSell       StockReason = "transaction_sell"
	ReasonTransactionSellReturn StockReason = "transaction_sell_return"
	ReasonTransactionBuy        StockReason = "transaction_buy"
	ReasonTransactionBuyReturn  StockReason = "transaction_buy_return"
	ReasonBundle                StockReason = "bundle"
	ReasonBundleRelease         StockReason = "bundle_release"
	ReasonOriginalPack          StockReason = "original_pack"
	ReasonOriginalPackRelease   StockReason = "original_pack_release"
	ReasonPackOpening           StockReason = "pack_opening"
	ReasonPackOpeningRollback   StockReason = "pack_opening_rollback"
	ReasonBoxOpening            StockReason = "box_opening"
	ReasonBoxCreate             StockReason = "box_create"
	ReasonCartonOpening         StockReason = "carton_opening"
	ReasonCartonCreate          StockReason = "carton_create"
	ReasonLoss                  StockReason = "loss"
	ReasonLossRollback          StockReason = "loss_rollback"
	ReasonStoreShipment         StockReason = "store_shipment"
	ReasonStoreShipmentRollback StockReason = "store_shipment_rollback"
	ReasonECSell                StockReason = "ec_sell"
	ReasonECSellReturn          StockReason = "ec_sell_return"
	ReasonTransfer              StockReason = "transfer"
	ReasonAdjustment            StockReason = "adjustment"
	ReasonConsignmentCreate     StockReason = "consignment_create"
	ReasonConsignmentReturn     StockReason = "consignment_return"
)

var validStockReasons = []StockReason{
	ReasonStocking,
	ReasonStockingRollback,
	ReasonTransactionSell,
	ReasonTransactionSellReturn,
	ReasonTransactionBuy,
	ReasonTransactionBuyReturn,
	ReasonBundle,
	ReasonBundleRelease,
	ReasonOriginalPack,
	ReasonOriginalPackRelease,
	ReasonPackOpening,
	ReasonPackOpeningRollback,
	ReasonBoxOpening,
	ReasonBoxCreate,
	ReasonCartonOpening,
	ReasonCartonCreate,
	ReasonLoss,
	ReasonLossRollback,
	ReasonStoreShipment,
	ReasonStoreShipmentRollback,
	ReasonECSell,
	ReasonECSellReturn,
	ReasonTransfer,
	ReasonAdjustment,
	ReasonConsignmentCreate,
	ReasonConsignmentReturn,
}

// StockReasons returns every reason the ledger accepts, in declaration order.
func StockReasons() []StockReason {
	out := make([]StockReason, len(validStockReasons))
	copy(out, validStockReasons)
	return out
}

// IsValid reports whether the value matches the canonical stock_reason enum.
func (r StockReason) IsValid() bool {
	for _, candidate := range validStockReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockReason converts raw input into StockReason.
func ParseStockReason(value string) (StockReason, error) {
	for _, candidate := range validStockReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock reason %q", value)
}
