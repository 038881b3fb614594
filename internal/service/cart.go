package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nainu25/ELEMENT-01/internal/cart"
	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/internal/repository"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

// CartService hydrates catalog products before they reach a cart.
type CartService struct {
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(products repository.ProductRepository, logger *slog.Logger) *CartService {
	return &CartService{
		products: products,
		logger:   logger,
	}
}

// ResolveProduct fetches a live catalog product by ID, or by slug when the
// identifier is not a UUID.
func (s *CartService) ResolveProduct(ctx context.Context, identifier string) (*domain.Product, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	if domain.IsInventoryID(identifier) {
		return s.products.GetByID(ctx, identifier)
	}
	return s.products.GetBySlug(ctx, identifier)
}

// AddProduct resolves identifier and adds one unit of it to c.
func (s *CartService) AddProduct(ctx context.Context, c *cart.Store, identifier string) (domain.CartState, error) {
	p, err := s.ResolveProduct(ctx, identifier)
	if err != nil {
		return domain.CartState{}, err
	}

	state := c.AddItem(ctx, *p)
	logger.FromContextOr(ctx, s.logger).Debug("product added to cart",
		slog.String("product_id", p.ID),
		slog.Int("lines", len(state.Items)),
	)
	return state, nil
}
