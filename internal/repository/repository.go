package repository

import (
	"context"

	"github.com/nainu25/ELEMENT-01/internal/domain"
)

// CartStateRepository is the cart persistence sink, keyed by session ID.
type CartStateRepository interface {
	// Get returns the stored cart, or an error wrapping apperrors.ErrNotFound
	// when the session has none.
	Get(ctx context.Context, sessionID string) (*domain.CartState, error)

	// Save overwrites the stored cart for the session.
	Save(ctx context.Context, sessionID string, state *domain.CartState) error

	// Delete removes the stored cart for the session.
	Delete(ctx context.Context, sessionID string) error
}

// ProductRepository is the catalog read contract. Soft-deleted rows are
// reported as not found.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
}

// InventoryRepository reads and writes stock counters.
type InventoryRepository interface {
	// ReadStock returns the current stock, or an error wrapping
	// apperrors.ErrNotFound when the product has no inventory row.
	ReadStock(ctx context.Context, productID string) (int, error)

	// WriteStock overwrites the stock counter unconditionally.
	WriteStock(ctx context.Context, productID string, quantity int) error
}

// ConditionalDecrementer is implemented by inventory stores that can
// decrement atomically. DecrementIfAvailable returns the remaining stock, an
// error wrapping apperrors.ErrNotFound for a missing row, or one wrapping
// apperrors.ErrInsufficientStock when fewer than quantity units remain.
type ConditionalDecrementer interface {
	DecrementIfAvailable(ctx context.Context, productID string, quantity int) (int, error)
}

// PaymentLedger guarantees a payment intent drives at most one checkout.
type PaymentLedger interface {
	// Claim reserves intentID for attemptID. It returns false when another
	// attempt holds the claim or the intent was already committed.
	Claim(ctx context.Context, intentID, attemptID string) (bool, error)

	// Release drops the claim if attemptID still holds it.
	Release(ctx context.Context, intentID, attemptID string) error

	// Commit marks intentID as consumed by the receipt reference.
	Commit(ctx context.Context, intentID, attemptID, reference string) error

	// Reference returns the receipt reference committed for intentID, or ""
	// when there is none yet.
	Reference(ctx context.Context, intentID string) (string, error)
}
