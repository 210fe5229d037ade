package enums

import "fmt"

// ItemKind maps to the item_kind enum in Postgres. The kind decides which
// mutation handlers apply and how the cost pool is maintained.
type ItemKind string

const (
	KindNormal       ItemKind = "normal"
	KindBundle       ItemKind = "bundle"
	KindOriginalPack ItemKind = "original_pack"
	KindLuckyBag     ItemKind = "lucky_bag"
	KindDeck         ItemKind = "deck"
	KindBox          ItemKind = "box"
	KindCarton       ItemKind = "carton"
)

var validItemKinds = []ItemKind{
	KindNormal,
	KindBundle,
	KindOriginalPack,
	KindLuckyBag,
	KindDeck,
	KindBox,
	KindCarton,
}

// ItemKinds returns every kind, in declaration order.
func ItemKinds() []ItemKind {
	out := make([]ItemKind, len(validItemKinds))
	copy(out, validItemKinds)
	return out
}

// IsValid reports whether the value matches the canonical item_kind enum.
func (k ItemKind) IsValid() bool {
	for _, candidate := range validItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsOriginalPackFamily reports whether the kind shares the original_pack
// assembly semantics: a fixed child definition consumed up front and a pool
// re-averaged over the initial stock number.
func (k ItemKind) IsOriginalPackFamily() bool {
	return k == KindOriginalPack || k == KindLuckyBag || k == KindDeck
}

// IsComposite reports whether the kind is assembled from other stock units.
func (k ItemKind) IsComposite() bool {
	return k == KindBundle || k.IsOriginalPackFamily()
}

// ParseItemKind converts raw input into ItemKind.
func ParseItemKind(value string) (ItemKind, error) {
	for _, candidate := range validItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item kind %q", value)
}
