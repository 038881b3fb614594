package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart with its quantity. It carries a copy of
// the product's identifying and pricing fields taken when it was added.
type LineItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	Slug          string          `json:"slug,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Concentration string          `json:"concentration,omitempty"`
	FormulaCode   string          `json:"formula_code,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	Quantity      int             `json:"quantity"`
}

// NewLineItem builds a line item for p.
func NewLineItem(p Product, quantity int) LineItem {
	return LineItem{
		ID:            p.ID,
		Name:          p.Name,
		Brand:         p.Brand,
		Slug:          p.Slug,
		Price:         p.Price,
		Concentration: p.Concentration,
		FormulaCode:   p.FormulaCode,
		ImageURL:      p.ImageURL,
		Quantity:      quantity,
	}
}

// LineTotal returns price * quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// CartState is the persisted state of one cart.
type CartState struct {
	Items     []LineItem `json:"items"`
	IsOpen    bool       `json:"is_open"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s CartState) Clone() CartState {
	out := s
	out.Items = CloneItems(s.Items)
	return out
}

// CloneItems copies items into a new non-nil slice.
func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// FindItemIndex returns the index of the line with the given ID, or -1.
func FindItemIndex(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// Subtotal sums price * quantity over every line, the gift included.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ItemCount sums quantities over every line.
func ItemCount(items []LineItem) int {
	var n int
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// MinorUnits converts an amount to integer cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
