package domain

import (
	"github.com/shopspring/decimal"
)

// GiftID is the reserved identifier of the threshold gift line.
const GiftID = "discovery-molecule-2ml"

// Promotion is the free-gift rule: Gift is present exactly when the subtotal
// of every other line is strictly greater than Threshold.
type Promotion struct {
	Threshold decimal.Decimal
	Gift      LineItem
}

// DefaultGift is the discovery sample added above the threshold.
func DefaultGift() LineItem {
	return LineItem{
		ID:            GiftID,
		Name:          "2ml Discovery Molecule",
		Brand:         "ELEMENT 01",
		Slug:          "discovery-molecule-sample",
		Price:         decimal.Zero,
		Concentration: "Sample",
		FormulaCode:   "COMP_SPECIMEN",
		Quantity:      1,
	}
}

// DefaultPromotion returns the 100.00 threshold rule with the default gift.
func DefaultPromotion() Promotion {
	return NewPromotion(decimal.NewFromInt(100))
}

// NewPromotion returns the default gift rule with a custom threshold.
func NewPromotion(threshold decimal.Decimal) Promotion {
	return Promotion{Threshold: threshold, Gift: DefaultGift()}
}

// IsGift reports whether item is the gift line.
func (p Promotion) IsGift(item LineItem) bool {
	return item.ID == p.Gift.ID
}

// QualifyingSubtotal sums every line except the gift. The gift never counts
// toward its own eligibility.
func (p Promotion) QualifyingSubtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if p.IsGift(item) {
			continue
		}
		total = total.Add(item.LineTotal())
	}
	return total
}

// Eligible reports whether the qualifying subtotal is above the threshold.
func (p Promotion) Eligible(items []LineItem) bool {
	return p.QualifyingSubtotal(items).GreaterThan(p.Threshold)
}

// Transition describes what a sync did to the gift line.
type Transition int

const (
	Unchanged Transition = iota
	GiftAdded
	GiftRemoved
)

func (t Transition) String() string {
	switch t {
	case GiftAdded:
		return "added"
	case GiftRemoved:
		return "removed"
	default:
		return "unchanged"
	}
}

// Sync adds or removes the gift line so that it is present iff Eligible.
// The input slice is not modified. Running Sync on its own output is a no-op.
func (p Promotion) Sync(items []LineItem) ([]LineItem, Transition) {
	idx := -1
	for i := range items {
		if p.IsGift(items[i]) {
			idx = i
			break
		}
	}

	eligible := p.Eligible(items)
	switch {
	case eligible && idx < 0:
		out := make([]LineItem, 0, len(items)+1)
		out = append(out, items...)
		gift := p.Gift
		gift.Quantity = 1
		return append(out, gift), GiftAdded
	case !eligible && idx >= 0:
		out := make([]LineItem, 0, len(items)-1)
		for _, item := range items {
			if !p.IsGift(item) {
				out = append(out, item)
			}
		}
		return out, GiftRemoved
	default:
		return items, Unchanged
	}
}
