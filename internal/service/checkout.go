package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nainu25/ELEMENT-01/internal/checkout"
	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/internal/event"
	"github.com/nainu25/ELEMENT-01/internal/payment"
	"github.com/nainu25/ELEMENT-01/internal/repository"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

// SystemName is stamped on every payment intent's metadata.
const SystemName = "ELEMENT-01"

// Cart is the part of *cart.Store the checkout flow reads and clears.
type Cart interface {
	checkout.CartSettler
	SessionID() string
	Snapshot() domain.CartState
}

// CheckoutEvents publishes checkout outcomes. *event.Producer satisfies it.
type CheckoutEvents interface {
	PublishCheckoutCompleted(ctx context.Context, sessionID string, r *domain.Receipt) error
	PublishCheckoutFailed(ctx context.Context, data event.CheckoutFailedData) error
}

// CheckoutService gates inventory reconciliation behind a confirmed payment.
type CheckoutService struct {
	reconciler *checkout.Reconciler
	payments   payment.Provider
	ledger     repository.PaymentLedger
	events     CheckoutEvents
	currency   string
	logger     *slog.Logger
}

// NewCheckoutService creates a new checkout service. events may be nil.
func NewCheckoutService(
	reconciler *checkout.Reconciler,
	payments payment.Provider,
	ledger repository.PaymentLedger,
	events CheckoutEvents,
	currency string,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		reconciler: reconciler,
		payments:   payments,
		ledger:     ledger,
		events:     events,
		currency:   strings.ToLower(currency),
		logger:     logger,
	}
}

// CreatePaymentIntent opens a payment for the cart's displayed subtotal.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, c Cart) (*payment.Intent, error) {
	state := c.Snapshot()
	if len(state.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	amount := domain.MinorUnits(domain.Subtotal(state.Items))
	if amount <= 0 {
		return nil, apperrors.InvalidInput("cart total must be greater than zero")
	}

	intent, err := s.payments.CreateIntent(ctx, &payment.CreateIntentInput{
		AmountMinor: amount,
		Currency:    s.currency,
		Metadata: map[string]string{
			"system":     SystemName,
			"session_id": c.SessionID(),
		},
		IdempotencyKey: fmt.Sprintf("%s-%d-%d", c.SessionID(), amount, state.UpdatedAt.UnixNano()),
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOr(ctx, s.logger).Info("payment intent created",
		slog.String("payment_intent_id", intent.ID),
		slog.String("provider", s.payments.Name()),
		slog.Int64("amount_minor", amount),
	)
	return intent, nil
}

// Finalize confirms intentID with the processor, reconciles inventory for
// the cart snapshot and returns a receipt. An intent drives at most one
// committed checkout; a failed attempt releases it for retry.
func (s *CheckoutService) Finalize(ctx context.Context, c Cart, intentID string) (*domain.Receipt, error) {
	if intentID == "" {
		return nil, apperrors.InvalidInput("payment_intent_id is required")
	}
	log := logger.FromContextOr(ctx, s.logger).With(slog.String("payment_intent_id", intentID))

	claimID := uuid.New().String()
	claimed, err := s.ledger.Claim(ctx, intentID, claimID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("claim payment intent: %w", err))
	}
	if !claimed {
		return nil, s.claimConflict(ctx, intentID)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := s.ledger.Release(context.WithoutCancel(ctx), intentID, claimID); err != nil {
			log.Warn("failed to release payment intent claim", slog.String("error", err.Error()))
		}
	}()

	items := c.Snapshot().Items
	amount, err := s.confirmPayment(ctx, c, intentID, items)
	if err != nil {
		return nil, err
	}

	attempt, err := s.reconciler.Finalize(ctx, items, c)
	if err != nil {
		s.publishFailed(ctx, log, c.SessionID(), intentID, attempt, err)
		return nil, err
	}

	receipt := &domain.Receipt{
		Reference:       domain.NewReceiptReference(),
		AttemptID:       attempt.ID,
		PaymentIntentID: intentID,
		AmountMinor:     amount,
		Currency:        s.currency,
		Items:           items,
		Applied:         attempt.Applied,
		Skipped:         attempt.Skipped,
		CompletedAt:     attempt.FinishedAt,
	}

	// Inventory and cart are already updated; the claim stays held either way.
	committed = true
	if err := s.ledger.Commit(context.WithoutCancel(ctx), intentID, claimID, receipt.Reference); err != nil {
		log.Error("failed to record committed payment intent",
			slog.String("receipt", receipt.Reference),
			slog.String("error", err.Error()),
		)
	}

	if s.events != nil {
		if err := s.events.PublishCheckoutCompleted(context.WithoutCancel(ctx), c.SessionID(), receipt); err != nil {
			log.Warn("failed to publish checkout completed event", slog.String("error", err.Error()))
		}
	}

	log.Info("checkout completed",
		slog.String("receipt", receipt.Reference),
		slog.String("attempt_id", attempt.ID),
	)
	return receipt, nil
}

func (s *CheckoutService) confirmPayment(ctx context.Context, c Cart, intentID string, items []domain.LineItem) (int64, error) {
	if len(items) == 0 {
		return 0, apperrors.InvalidInput("cart is empty")
	}

	intent, err := s.payments.GetIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.PaymentFailed("payment intent not found")
		}
		return 0, err
	}
	if !intent.Succeeded() {
		return 0, apperrors.PaymentFailed(fmt.Sprintf("payment intent is %s, not %s", intent.Status, payment.StatusSucceeded))
	}
	if sid, ok := intent.Metadata["session_id"]; ok && sid != c.SessionID() {
		return 0, apperrors.PaymentFailed("payment intent belongs to another session")
	}

	amount := domain.MinorUnits(domain.Subtotal(items))
	if intent.AmountMinor != amount || !strings.EqualFold(intent.Currency, s.currency) {
		return 0, apperrors.PaymentFailed(fmt.Sprintf(
			"payment of %d %s does not match cart total of %d %s",
			intent.AmountMinor, intent.Currency, amount, s.currency,
		))
	}
	return amount, nil
}

func (s *CheckoutService) claimConflict(ctx context.Context, intentID string) error {
	ref, err := s.ledger.Reference(ctx, intentID)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("read payment intent ledger: %w", err))
	}
	if ref != "" {
		return apperrors.Conflict(fmt.Sprintf("payment intent %s already completed checkout %s", intentID, ref))
	}
	return apperrors.Conflict(fmt.Sprintf("payment intent %s is already being finalized", intentID))
}

func (s *CheckoutService) publishFailed(ctx context.Context, log *slog.Logger, sessionID, intentID string, attempt *checkout.Attempt, cause error) {
	if s.events == nil {
		return
	}
	reason := cause.Error()
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) {
		reason = appErr.Message
	}

	data := event.CheckoutFailedData{
		SessionID:       sessionID,
		PaymentIntentID: intentID,
		Reason:          reason,
	}
	if attempt != nil {
		data.AttemptID = attempt.ID
		data.Applied = attempt.Applied
	}
	if err := s.events.PublishCheckoutFailed(context.WithoutCancel(ctx), data); err != nil {
		log.Warn("failed to publish checkout failed event", slog.String("error", err.Error()))
	}
}
