package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const (
	receiptPrefix   = "E01-REC-"
	receiptAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	receiptLength   = 8
)

// StockChange records one applied inventory decrement.
type StockChange struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Previous  int    `json:"previous_stock"`
	Remaining int    `json:"remaining_stock"`
}

// SkipReason explains why a line was not reconciled.
type SkipReason string

const (
	SkipVirtual  SkipReason = "virtual_item"
	SkipNotFound SkipReason = "not_in_inventory"
)

// SkippedItem is a line the reconciler deliberately left alone.
type SkippedItem struct {
	ProductID string     `json:"product_id"`
	Reason    SkipReason `json:"reason"`
}

// Receipt is returned for a committed checkout.
type Receipt struct {
	Reference       string        `json:"reference"`
	AttemptID       string        `json:"attempt_id"`
	PaymentIntentID string        `json:"payment_intent_id"`
	AmountMinor     int64         `json:"amount_minor"`
	Currency        string        `json:"currency"`
	Items           []LineItem    `json:"items"`
	Applied         []StockChange `json:"applied"`
	Skipped         []SkippedItem `json:"skipped,omitempty"`
	CompletedAt     time.Time     `json:"completed_at"`
}

// NewReceiptReference returns "E01-REC-" followed by 8 random uppercase
// base-36 characters.
func NewReceiptReference() string {
	var b strings.Builder
	b.Grow(len(receiptPrefix) + receiptLength)
	b.WriteString(receiptPrefix)
	base := big.NewInt(int64(len(receiptAlphabet)))
	for i := 0; i < receiptLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(receiptAlphabet[n.Int64()])
	}
	return b.String()
}
