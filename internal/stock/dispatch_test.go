package stock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// Every kind declares the exact reasons it accepts in each direction. The
// tables below are the contract; anything outside them must resolve to an
// unsupported operation.
var expectedIncrease = map[enums.ItemKind][]enums.StockReason{
	enums.KindNormal: {
		enums.ReasonStocking,
		enums.ReasonPackOpening,
		enums.ReasonTransactionBuy,
		enums.ReasonBoxOpening,
		enums.ReasonBoxCreate,
		enums.ReasonCartonOpening,
		enums.ReasonCartonCreate,
		enums.ReasonTransfer,
		enums.ReasonBundleRelease,
		enums.ReasonOriginalPackRelease,
		enums.ReasonAdjustment,
		enums.ReasonConsignmentCreate,
		enums.ReasonLossRollback,
		enums.ReasonStoreShipmentRollback,
		enums.ReasonPackOpeningRollback,
		enums.ReasonECSellReturn,
		enums.ReasonTransactionSellReturn,
	},
	enums.KindBundle: {
		enums.ReasonBundle,
		enums.ReasonTransactionSellReturn,
	},
	enums.KindOriginalPack: {
		enums.ReasonOriginalPack,
		enums.ReasonECSellReturn,
		enums.ReasonTransactionSellReturn,
	},
}

var expectedDecrease = map[enums.ItemKind][]enums.StockReason{
	enums.KindNormal: {
		enums.ReasonOriginalPack,
		enums.ReasonBundle,
		enums.ReasonLoss,
		enums.ReasonStoreShipment,
		enums.ReasonPackOpening,
		enums.ReasonTransactionSell,
		enums.ReasonECSell,
		enums.ReasonTransfer,
		enums.ReasonBoxOpening,
		enums.ReasonBoxCreate,
		enums.ReasonCartonOpening,
		enums.ReasonCartonCreate,
		enums.ReasonConsignmentReturn,
		enums.ReasonTransactionBuyReturn,
		enums.ReasonAdjustment,
		enums.ReasonStockingRollback,
		enums.ReasonPackOpeningRollback,
	},
	enums.KindBundle: {
		enums.ReasonTransactionSell,
		enums.ReasonBundleRelease,
	},
	enums.KindOriginalPack: {
		enums.ReasonLoss,
		enums.ReasonECSell,
		enums.ReasonTransactionSell,
		enums.ReasonOriginalPackRelease,
	},
}

func contains(reasons []enums.StockReason, reason enums.StockReason) bool {
	for _, candidate := range reasons {
		if candidate == reason {
			return true
		}
	}
	return false
}

func TestDispatchTablesMatchDeclaredContract(t *testing.T) {
	for kind, reasons := range expectedIncrease {
		for _, reason := range enums.StockReasons() {
			got := SupportsIncrease(kind, reason)
			want := contains(reasons, reason)
			require.Equalf(t, want, got, "increase %s/%s", kind, reason)
		}
	}
	for kind, reasons := range expectedDecrease {
		for _, reason := range enums.StockReasons() {
			got := SupportsDecrease(kind, reason)
			want := contains(reasons, reason)
			require.Equalf(t, want, got, "decrease %s/%s", kind, reason)
		}
	}
}

func TestLeafKindsShareOneTable(t *testing.T) {
	for _, kind := range []enums.ItemKind{enums.KindBox, enums.KindCarton} {
		for _, reason := range enums.StockReasons() {
			require.Equalf(t, SupportsIncrease(enums.KindNormal, reason), SupportsIncrease(kind, reason), "increase %s/%s", kind, reason)
			require.Equalf(t, SupportsDecrease(enums.KindNormal, reason), SupportsDecrease(kind, reason), "decrease %s/%s", kind, reason)
		}
	}
}

func TestPackFamilySharesOneTable(t *testing.T) {
	for _, kind := range []enums.ItemKind{enums.KindLuckyBag, enums.KindDeck} {
		for _, reason := range enums.StockReasons() {
			require.Equalf(t, SupportsIncrease(enums.KindOriginalPack, reason), SupportsIncrease(kind, reason), "increase %s/%s", kind, reason)
			require.Equalf(t, SupportsDecrease(enums.KindOriginalPack, reason), SupportsDecrease(kind, reason), "decrease %s/%s", kind, reason)
		}
	}
}
