package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/pkg/database"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

const productColumns = `
		id::text, name, brand, slug, COALESCE(description, ''), price::text,
		COALESCE(concentration, ''), COALESCE(image_url, ''), COALESCE(formula_code, ''),
		COALESCE(longevity_hours, 0), COALESCE(sillage_rank, 0),
		COALESCE(molecular_weight::text, ''), stock_quantity, created_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed catalog reader.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a live product by its UUID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if !domain.IsInventoryID(id) {
		return nil, apperrors.NotFound("product", id)
	}
	query := `SELECT` + productColumns + `
		FROM products
		WHERE id = $1 AND is_deleted = FALSE`
	return r.getOne(ctx, "GetProductByID", query, id)
}

// GetBySlug returns a live product by its URL slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT` + productColumns + `
		FROM products
		WHERE slug = $1 AND is_deleted = FALSE`
	return r.getOne(ctx, "GetProductBySlug", query, slug)
}

func (r *ProductRepository) getOne(ctx context.Context, op, query, key string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var (
		p     domain.Product
		price string
	)
	err = r.pool.QueryRow(ctx, query, key).Scan(
		&p.ID,
		&p.Name,
		&p.Brand,
		&p.Slug,
		&p.Description,
		&price,
		&p.Concentration,
		&p.ImageURL,
		&p.FormulaCode,
		&p.LongevityHours,
		&p.SillageRank,
		&p.MolecularWeight,
		&p.StockQuantity,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", key)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q for product %s: %w", price, p.ID, err)
	}
	return &p, nil
}
