// Package payment creates and confirms payment intents with an external
// processor. The storefront never sees card data.
package payment

import (
	"context"
)

// Intent statuses the checkout gate cares about.
const (
	StatusSucceeded       = "succeeded"
	StatusProcessing      = "processing"
	StatusRequiresPayment = "requires_payment_method"
	StatusCanceled        = "canceled"
)

// CreateIntentInput holds the parameters for a new payment intent.
type CreateIntentInput struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is a processor-side payment intent.
type Intent struct {
	ID           string            `json:"id"`
	AmountMinor  int64             `json:"amount_minor"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the processor has confirmed the payment.
func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

// Provider defines the interface for payment processor integrations.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "stripe").
	Name() string

	// CreateIntent opens a payment intent for the given amount.
	CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error)

	// GetIntent fetches the current state of a payment intent.
	GetIntent(ctx context.Context, id string) (*Intent, error)
}
