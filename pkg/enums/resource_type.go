package enums

import "fmt"

// ResourceType maps to the resource_type enum in Postgres. It names the
// business record a ledger entry or cost lot is attached to. Lots in the
// unallocated pool carry ResourceStockUnit with the unit's own id.
type ResourceType string

const (
	ResourceStockUnit     ResourceType = "stock_unit"
	ResourceStocking      ResourceType = "stocking"
	ResourceTransaction   ResourceType = "transaction"
	ResourceChannelOrder  ResourceType = "channel_order"
	ResourcePackOpening   ResourceType = "pack_opening"
	ResourceBundle        ResourceType = "bundle"
	ResourceOriginalPack  ResourceType = "original_pack"
	ResourceLoss          ResourceType = "loss"
	ResourceStoreShipment ResourceType = "store_shipment"
	ResourceTransfer      ResourceType = "transfer"
	ResourceConsignment   ResourceType = "consignment"
)

var validResourceTypes = []ResourceType{
	ResourceStockUnit,
	ResourceStocking,
	ResourceTransaction,
	ResourceChannelOrder,
	ResourcePackOpening,
	ResourceBundle,
	ResourceOriginalPack,
	ResourceLoss,
	ResourceStoreShipment,
	ResourceTransfer,
	ResourceConsignment,
}

// IsValid reports whether the value matches the canonical resource_type enum.
func (r ResourceType) IsValid() bool {
	for _, candidate := range validResourceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseResourceType converts raw input into ResourceType.
func ParseResourceType(value string) (ResourceType, error) {
	for _, candidate := range validResourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resource type %q", value)
}
