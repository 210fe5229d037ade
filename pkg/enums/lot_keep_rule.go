package enums

import "fmt"

// LotKeepRule decides how a pool absorbs freshly written cost lots. Stacked
// pools keep every lot as its own row; blended pools collapse to a single
// lot re-averaged over the post-change total.
type LotKeepRule string

const (
	KeepStacked LotKeepRule = "stacked"
	KeepBlended LotKeepRule = "blended"
)

// IsValid reports whether the value is a known keep rule.
func (r LotKeepRule) IsValid() bool {
	return r == KeepStacked || r == KeepBlended
}

// ParseLotKeepRule converts raw input into LotKeepRule.
func ParseLotKeepRule(value string) (LotKeepRule, error) {
	switch LotKeepRule(value) {
	case KeepStacked:
		return KeepStacked, nil
	case KeepBlended:
		return KeepBlended, nil
	}
	return "", fmt.Errorf("invalid lot keep rule %q", value)
}
