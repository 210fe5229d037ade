package enums

import "fmt"

// ChannelStockReason maps to the channel_stock_reason enum in Postgres. It
// labels mutations of the listed (EC) quantity, which moves independently of
// the physical quantity.
type ChannelStockReason string

const (
	ChannelReasonPublish      ChannelStockReason = "publish"
	ChannelReasonAutoStocking ChannelStockReason = "auto_stocking"
	ChannelReasonRecalculate  ChannelStockReason = "recalculate"
	ChannelReasonECSell       ChannelStockReason = "ec_sell"
	ChannelReasonECSellReturn ChannelStockReason = "ec_sell_return"
)

var validChannelStockReasons = []ChannelStockReason{
	ChannelReasonPublish,
	ChannelReasonAutoStocking,
	ChannelReasonRecalculate,
	ChannelReasonECSell,
	ChannelReasonECSellReturn,
}

// IsValid reports whether the value matches the canonical enum.
func (r ChannelStockReason) IsValid() bool {
	for _, candidate := range validChannelStockReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseChannelStockReason converts raw input into ChannelStockReason.
func ParseChannelStockReason(value string) (ChannelStockReason, error) {
	for _, candidate := range validChannelStockReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel stock reason %q", value)
}
