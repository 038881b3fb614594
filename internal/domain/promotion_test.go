package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, price string, qty int) LineItem {
	return LineItem{ID: id, Name: id, Price: decimal.RequireFromString(price), Quantity: qty}
}

func hasGift(items []LineItem) bool {
	return FindItemIndex(items, GiftID) >= 0
}

func TestPromotion_SyncAddsAboveThreshold(t *testing.T) {
	promo := DefaultPromotion()
	items := []LineItem{item("p1", "60", 1), item("p2", "45", 1)}

	out, tr := promo.Sync(items)

	assert.Equal(t, GiftAdded, tr)
	require.Len(t, out, 3)
	assert.Equal(t, GiftID, out[2].ID)
	assert.Equal(t, 1, out[2].Quantity)
	assert.True(t, out[2].Price.IsZero())
	assert.Len(t, items, 2, "input must not be modified")
}

func TestPromotion_ThresholdIsStrict(t *testing.T) {
	promo := DefaultPromotion()

	out, tr := promo.Sync([]LineItem{item("p1", "100.00", 1)})
	assert.Equal(t, Unchanged, tr)
	assert.False(t, hasGift(out))

	out, tr = promo.Sync([]LineItem{item("p1", "100.01", 1)})
	assert.Equal(t, GiftAdded, tr)
	assert.True(t, hasGift(out))
}

func TestPromotion_SyncRemovesAtOrBelowThreshold(t *testing.T) {
	promo := DefaultPromotion()
	items := []LineItem{item("p1", "60", 1), promo.Gift}

	out, tr := promo.Sync(items)

	assert.Equal(t, GiftRemoved, tr)
	assert.Equal(t, []LineItem{item("p1", "60", 1)}, out)
}

func TestPromotion_GiftExcludedFromOwnTrigger(t *testing.T) {
	promo := DefaultPromotion()
	gift := promo.Gift
	gift.Price = decimal.NewFromInt(500)

	out, tr := Promotion{Threshold: promo.Threshold, Gift: promo.Gift}.Sync([]LineItem{item("p1", "10", 1), gift})

	assert.Equal(t, GiftRemoved, tr)
	assert.False(t, hasGift(out))
}

func TestPromotion_CustomThreshold(t *testing.T) {
	promo := NewPromotion(decimal.RequireFromString("49.99"))
	assert.True(t, promo.Eligible([]LineItem{item("p1", "25", 2)}))
	assert.False(t, promo.Eligible([]LineItem{item("p1", "49.99", 1)}))
}

func TestPromotion_SyncIsIdempotent(t *testing.T) {
	promo := DefaultPromotion()
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		var items []LineItem
		for j := 0; j < r.IntN(5); j++ {
			cents := r.Int64N(8000)
			items = append(items, LineItem{
				ID:       string(rune('a' + j)),
				Price:    decimal.New(cents, -2),
				Quantity: 1 + r.IntN(3),
			})
		}
		if r.IntN(2) == 0 {
			items = append(items, promo.Gift)
		}

		once, _ := promo.Sync(items)
		twice, tr := promo.Sync(once)

		assert.Equal(t, Unchanged, tr)
		assert.Equal(t, once, twice)
		assert.Equal(t, promo.Eligible(once), hasGift(once))
	}
}

func TestTransition_String(t *testing.T) {
	assert.Equal(t, "added", GiftAdded.String())
	assert.Equal(t, "removed", GiftRemoved.String())
	assert.Equal(t, "unchanged", Unchanged.String())
}
