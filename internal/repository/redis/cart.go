package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nainu25/ELEMENT-01/internal/domain"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

const cartKeyPrefix = "storefront:cart:"

// CartStateRepository implements repository.CartStateRepository using Redis.
// Each save refreshes the TTL, so idle carts expire.
type CartStateRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCartStateRepository creates a new Redis-backed cart sink.
func NewCartStateRepository(client redis.Cmdable, ttl time.Duration) *CartStateRepository {
	return &CartStateRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the cart stored for sessionID.
func (r *CartStateRepository) Get(ctx context.Context, sessionID string) (*domain.CartState, error) {
	data, err := r.client.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var state domain.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if state.Items == nil {
		state.Items = []domain.LineItem{}
	}

	return &state, nil
}

// Save persists the cart with the configured TTL.
func (r *CartStateRepository) Save(ctx context.Context, sessionID string, state *domain.CartState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, cartKeyPrefix+sessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}

	return nil
}

// Delete removes the cart stored for sessionID.
func (r *CartStateRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}

	return nil
}
