package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nainu25/ELEMENT-01/internal/cart"
	"github.com/nainu25/ELEMENT-01/internal/domain"
	pkgkafka "github.com/nainu25/ELEMENT-01/pkg/kafka"
	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated       = "storefront.cart.updated"
	TopicCartCleared       = "storefront.cart.cleared"
	TopicCheckoutCompleted = "storefront.checkout.completed"
	TopicCheckoutFailed    = "storefront.checkout.failed"
)

// Aggregate type constants.
const (
	AggregateTypeCart     = "cart"
	AggregateTypeCheckout = "checkout"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// CartItemData is the item payload within cart and checkout events.
type CartItemData struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID      string          `json:"session_id"`
	Operation      string          `json:"operation"`
	Items          []CartItemData  `json:"items"`
	ItemCount      int             `json:"item_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	GiftTransition string          `json:"gift_transition,omitempty"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// CheckoutCompletedData is the payload for a checkout.completed event.
type CheckoutCompletedData struct {
	SessionID       string               `json:"session_id"`
	Receipt         string               `json:"receipt"`
	AttemptID       string               `json:"attempt_id"`
	PaymentIntentID string               `json:"payment_intent_id"`
	AmountMinor     int64                `json:"amount_minor"`
	Currency        string               `json:"currency"`
	Applied         []domain.StockChange `json:"applied"`
	Skipped         []domain.SkippedItem `json:"skipped,omitempty"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	SessionID       string               `json:"session_id"`
	AttemptID       string               `json:"attempt_id"`
	PaymentIntentID string               `json:"payment_intent_id"`
	Reason          string               `json:"reason"`
	Applied         []domain.StockChange `json:"applied"`
}

// Publisher is the part of *pkgkafka.Producer the event producer uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, c cart.Change) error {
	items := make([]CartItemData, len(c.State.Items))
	for i, item := range c.State.Items {
		items[i] = CartItemData{
			ProductID: item.ID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	data := CartUpdatedData{
		SessionID: c.SessionID,
		Operation: string(c.Op),
		Items:     items,
		ItemCount: domain.ItemCount(c.State.Items),
		Subtotal:  domain.Subtotal(c.State.Items),
	}
	if c.Transition != domain.Unchanged {
		data.GiftTransition = c.Transition.String()
	}

	return p.publish(ctx, TopicCartUpdated, c.SessionID, AggregateTypeCart, data)
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, CartClearedData{SessionID: sessionID})
}

// PublishCheckoutCompleted publishes a checkout.completed event.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, sessionID string, r *domain.Receipt) error {
	data := CheckoutCompletedData{
		SessionID:       sessionID,
		Receipt:         r.Reference,
		AttemptID:       r.AttemptID,
		PaymentIntentID: r.PaymentIntentID,
		AmountMinor:     r.AmountMinor,
		Currency:        r.Currency,
		Applied:         r.Applied,
		Skipped:         r.Skipped,
	}
	return p.publish(ctx, TopicCheckoutCompleted, r.AttemptID, AggregateTypeCheckout, data)
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, data CheckoutFailedData) error {
	return p.publish(ctx, TopicCheckoutFailed, data.AttemptID, AggregateTypeCheckout, data)
}

// CartListener returns a cart.Listener that mirrors every mutation to
// Kafka. A clear, or a checkout settlement that empties the cart, is
// published as cart.cleared. Publish failures are logged and dropped.
func (p *Producer) CartListener() cart.Listener {
	return func(ctx context.Context, c cart.Change) {
		ctx = context.WithoutCancel(ctx)

		var err error
		if c.Op == cart.OpClear || (c.Op == cart.OpSettle && len(c.State.Items) == 0) {
			err = p.PublishCartCleared(ctx, c.SessionID)
		} else {
			err = p.PublishCartUpdated(ctx, c)
		}
		if err != nil {
			logger.FromContextOr(ctx, p.logger).Warn("failed to publish cart event",
				slog.String("session_id", c.SessionID),
				slog.String("op", string(c.Op)),
				slog.String("error", err.Error()),
			)
		}
	}
}
