// Package checkout applies inventory decrements for a paid cart and settles
// the cart when every decrement succeeds.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/internal/repository"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

const tracerName = "github.com/nainu25/ELEMENT-01/internal/checkout"

// Mode selects how each line's stock is decremented.
type Mode string

const (
	// ModeReadWrite reads the counter and writes max(0, stock - quantity)
	// back. Concurrent checkouts can lose updates.
	ModeReadWrite Mode = "read-write"
	// ModeConditional decrements in one storage-level operation that fails
	// when stock is insufficient.
	ModeConditional Mode = "conditional"
)

// CartSettler removes the paid lines from the cart after a committed
// checkout. Lines added since the snapshot must survive.
type CartSettler interface {
	SettleCheckout(ctx context.Context, paid []domain.LineItem) domain.CartState
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMode selects the decrement strategy. The default is ModeReadWrite.
func WithMode(m Mode) Option {
	return func(r *Reconciler) { r.mode = m }
}

// WithIdentifierPolicy overrides which IDs have inventory rows. The default
// is domain.IsInventoryID.
func WithIdentifierPolicy(fn func(id string) bool) Option {
	return func(r *Reconciler) { r.isInventoryID = fn }
}

// WithLogger sets the fallback logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// Reconciler decrements inventory for each real line item, one at a time,
// in snapshot order.
type Reconciler struct {
	inventory     repository.InventoryRepository
	decrementer   repository.ConditionalDecrementer
	mode          Mode
	isInventoryID func(string) bool
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewReconciler builds a Reconciler over inventory. ModeConditional requires
// inventory to implement repository.ConditionalDecrementer.
func NewReconciler(inventory repository.InventoryRepository, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		inventory:     inventory,
		mode:          ModeReadWrite,
		isInventoryID: domain.IsInventoryID,
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}

	switch r.mode {
	case ModeReadWrite:
	case ModeConditional:
		d, ok := inventory.(repository.ConditionalDecrementer)
		if !ok {
			return nil, fmt.Errorf("reconcile mode %q: inventory store %T has no conditional decrement", r.mode, inventory)
		}
		r.decrementer = d
	default:
		return nil, fmt.Errorf("unknown reconcile mode %q", r.mode)
	}
	return r, nil
}

// Mode returns the configured decrement strategy.
func (r *Reconciler) Mode() Mode {
	return r.mode
}

// Finalize reconciles items and, on success, removes them from the cart
// through settler.
// It must only be called once payment is confirmed. The first read or write
// error stops the loop: later items are not touched, earlier decrements stay
// applied and the cart is left as it was. The returned error is an
// *apperrors.AppError carrying the underlying message.
func (r *Reconciler) Finalize(ctx context.Context, items []domain.LineItem, settler CartSettler) (*Attempt, error) {
	attempt := newAttempt()
	attempt.StartedAt = r.now()
	attempt.transition(StateReconciling)

	log := logger.FromContextOr(ctx, r.logger).With(
		slog.String("attempt_id", attempt.ID),
		slog.String("mode", string(r.mode)),
	)

	ctx, span := r.tracer.Start(ctx, "checkout.Finalize",
		trace.WithAttributes(
			attribute.String("checkout.attempt_id", attempt.ID),
			attribute.String("checkout.mode", string(r.mode)),
			attribute.Int("checkout.items", len(items)),
		),
	)
	defer span.End()

	for _, item := range items {
		if item.ID == domain.GiftID || !r.isInventoryID(item.ID) {
			attempt.skip(item.ID, domain.SkipVirtual)
			log.Info("skipping virtual item", slog.String("product_id", item.ID))
			continue
		}

		change, err := r.reconcileItem(ctx, item)
		if errors.Is(err, apperrors.ErrNotFound) {
			attempt.skip(item.ID, domain.SkipNotFound)
			log.Warn("inventory row not found, treating item as reconciled",
				slog.String("product_id", item.ID),
			)
			continue
		}
		if err != nil {
			return r.fail(ctx, span, log, attempt, item, err)
		}
		attempt.Applied = append(attempt.Applied, change)
		decrementsTotal.WithLabelValues(string(r.mode)).Inc()
	}

	if settler != nil {
		settler.SettleCheckout(ctx, items)
	}
	attempt.FinishedAt = r.now()
	attempt.transition(StateCommitted)
	r.record(attempt)

	span.SetAttributes(attribute.Int("checkout.applied", len(attempt.Applied)))
	log.Info("checkout reconciled",
		slog.Int("applied", len(attempt.Applied)),
		slog.Int("skipped", len(attempt.Skipped)),
	)
	return attempt, nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, item domain.LineItem) (change domain.StockChange, err error) {
	ctx, span := r.tracer.Start(ctx, "checkout.reconcileItem",
		trace.WithAttributes(
			attribute.String("product.id", item.ID),
			attribute.Int("product.quantity", item.Quantity),
		),
	)
	defer func() {
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	change = domain.StockChange{ProductID: item.ID, Quantity: item.Quantity}

	if r.mode == ModeConditional {
		remaining, err := r.decrementer.DecrementIfAvailable(ctx, item.ID, item.Quantity)
		if err != nil {
			return change, err
		}
		change.Previous = remaining + item.Quantity
		change.Remaining = remaining
		return change, nil
	}

	current, err := r.inventory.ReadStock(ctx, item.ID)
	if err != nil {
		return change, err
	}
	next := max(0, current-item.Quantity)
	if err := r.inventory.WriteStock(ctx, item.ID, next); err != nil {
		return change, err
	}
	change.Previous = current
	change.Remaining = next
	return change, nil
}

func (r *Reconciler) fail(ctx context.Context, span trace.Span, log *slog.Logger, attempt *Attempt, item domain.LineItem, cause error) (*Attempt, error) {
	appErr := apperrors.CheckoutFailed(cause)
	attempt.Err = appErr
	attempt.FinishedAt = r.now()
	attempt.transition(StateFailed)
	r.record(attempt)

	span.RecordError(cause)
	span.SetStatus(codes.Error, appErr.Message)
	log.ErrorContext(ctx, "checkout reconciliation failed",
		slog.String("product_id", item.ID),
		slog.Int("applied_before_failure", len(attempt.Applied)),
		slog.String("error", cause.Error()),
	)
	return attempt, appErr
}

func (r *Reconciler) record(a *Attempt) {
	attemptsTotal.WithLabelValues(a.State.String()).Inc()
	finalizeDuration.WithLabelValues(a.State.String()).Observe(a.Duration().Seconds())
}

func (a *Attempt) skip(productID string, reason domain.SkipReason) {
	a.Skipped = append(a.Skipped, domain.SkippedItem{ProductID: productID, Reason: reason})
	skippedTotal.WithLabelValues(string(reason)).Inc()
}
