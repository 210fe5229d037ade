package stock

import (
	"context"

	"github.com/waterfire-source/cardpos-backend/pkg/enums"
)

// dispatchKey pairs an item kind with a mutation reason. Both directions
// resolve their handler from a closed table; a missing key is an
// unsupported operation, never a silent default.
type dispatchKey struct {
	Kind   enums.ItemKind
	Reason enums.StockReason
}

type handler func(ctx context.Context, m *mutation) error

var (
	increaseHandlers = map[dispatchKey]handler{}
	decreaseHandlers = map[dispatchKey]handler{}
)

// leafKinds share the plain pool semantics: lots arrive explicitly and
// leave in arrival order.
var leafKinds = []enums.ItemKind{enums.KindNormal, enums.KindBox, enums.KindCarton}

// packKinds share the original pack assembly semantics.
var packKinds = []enums.ItemKind{enums.KindOriginalPack, enums.KindLuckyBag, enums.KindDeck}

func registerIncrease(kinds []enums.ItemKind, h handler, reasons ...enums.StockReason) {
	for _, kind := range kinds {
		for _, reason := range reasons {
			increaseHandlers[dispatchKey{Kind: kind, Reason: reason}] = h
		}
	}
}

func registerDecrease(kinds []enums.ItemKind, h handler, reasons ...enums.StockReason) {
	for _, kind := range kinds {
		for _, reason := range reasons {
			decreaseHandlers[dispatchKey{Kind: kind, Reason: reason}] = h
		}
	}
}

func init() {
	bundle := []enums.ItemKind{enums.KindBundle}

	registerIncrease(leafKinds, increaseArrivalWithRef,
		enums.ReasonStocking,
		enums.ReasonPackOpening,
	)
	registerIncrease(leafKinds, increaseArrival,
		enums.ReasonTransactionBuy,
		enums.ReasonBoxOpening,
		enums.ReasonBoxCreate,
		enums.ReasonCartonOpening,
		enums.ReasonCartonCreate,
		enums.ReasonTransfer,
		enums.ReasonBundleRelease,
		enums.ReasonOriginalPackRelease,
		enums.ReasonAdjustment,
	)
	registerIncrease(leafKinds, increaseConsignment,
		enums.ReasonConsignmentCreate,
	)
	registerIncrease(leafKinds, increaseRestore,
		enums.ReasonLossRollback,
		enums.ReasonStoreShipmentRollback,
		enums.ReasonPackOpeningRollback,
		enums.ReasonECSellReturn,
		enums.ReasonTransactionSellReturn,
	)

	registerDecrease(leafKinds, decreaseAttach,
		enums.ReasonOriginalPack,
		enums.ReasonBundle,
		enums.ReasonLoss,
		enums.ReasonStoreShipment,
		enums.ReasonPackOpening,
		enums.ReasonTransactionSell,
		enums.ReasonECSell,
	)
	registerDecrease(leafKinds, decreasePlain,
		enums.ReasonTransfer,
		enums.ReasonBoxOpening,
		enums.ReasonBoxCreate,
		enums.ReasonCartonOpening,
		enums.ReasonCartonCreate,
		enums.ReasonConsignmentReturn,
		enums.ReasonTransactionBuyReturn,
		enums.ReasonAdjustment,
	)
	registerDecrease(leafKinds, decreaseStrictRollback,
		enums.ReasonStockingRollback,
		enums.ReasonPackOpeningRollback,
	)

	registerIncrease(bundle, increaseBundleAssemble, enums.ReasonBundle)
	registerIncrease(bundle, increaseBundleRestore, enums.ReasonTransactionSellReturn)
	registerDecrease(bundle, decreaseBundleSale, enums.ReasonTransactionSell)
	registerDecrease(bundle, decreaseBundleRelease, enums.ReasonBundleRelease)

	registerIncrease(packKinds, increasePackAssemble, enums.ReasonOriginalPack)
	registerIncrease(packKinds, increasePackRestore,
		enums.ReasonECSellReturn,
		enums.ReasonTransactionSellReturn,
	)
	registerDecrease(packKinds, decreaseAttach,
		enums.ReasonLoss,
		enums.ReasonECSell,
		enums.ReasonTransactionSell,
	)
	registerDecrease(packKinds, decreasePackRelease, enums.ReasonOriginalPackRelease)
}

// SupportsIncrease reports whether the kind accepts the reason as an
// increase.
func SupportsIncrease(kind enums.ItemKind, reason enums.StockReason) bool {
	_, ok := increaseHandlers[dispatchKey{Kind: kind, Reason: reason}]
	return ok
}

// SupportsDecrease reports whether the kind accepts the reason as a
// decrease.
func SupportsDecrease(kind enums.ItemKind, reason enums.StockReason) bool {
	_, ok := decreaseHandlers[dispatchKey{Kind: kind, Reason: reason}]
	return ok
}
