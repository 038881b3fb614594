package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProvider implements Provider with Stripe PaymentIntents.
type StripeProvider struct {
	intents stripeIntentAPI
}

// NewStripeProvider creates a provider authenticated with secretKey.
func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	sc := client.New(secretKey, nil)
	return &StripeProvider{intents: sc.PaymentIntents}, nil
}

func newStripeProviderWithAPI(api stripeIntentAPI) *StripeProvider {
	return &StripeProvider{intents: api}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// CreateIntent opens a PaymentIntent with automatic payment methods.
func (p *StripeProvider) CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountMinor),
		Currency: stripe.String(strings.ToLower(input.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.intents.New(params)
	if err != nil {
		return nil, mapStripeError("create payment intent", err)
	}
	return fromStripe(pi), nil
}

// GetIntent fetches a PaymentIntent by ID.
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.intents.Get(id, params)
	if err != nil {
		return nil, mapStripeError("get payment intent", err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Metadata:     pi.Metadata,
	}
}

// mapStripeError turns Stripe's not-found and invalid-request responses into
// app errors; anything else is wrapped as an upstream failure.
func mapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing:
			return apperrors.PaymentFailed("payment intent not found")
		case se.Type == stripe.ErrorTypeCard || se.Type == stripe.ErrorTypeInvalidRequest:
			return apperrors.PaymentFailed(se.Msg)
		}
	}
	return fmt.Errorf("stripe: %s: %w", op, err)
}
