package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/pkg/database"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

const productSelect = "id,name,brand,slug,description,price,concentration,image_url," +
	"formula_code,longevity_hours,sillage_rank,molecular_weight,stock_quantity,created_at"

// productRow mirrors the PostgREST JSON for a products row. Nullable columns
// decode to their zero values.
type productRow struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Brand           string          `json:"brand"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Concentration   string          `json:"concentration"`
	ImageURL        string          `json:"image_url"`
	FormulaCode     string          `json:"formula_code"`
	LongevityHours  int             `json:"longevity_hours"`
	SillageRank     int             `json:"sillage_rank"`
	MolecularWeight json.Number     `json:"molecular_weight"`
	StockQuantity   int             `json:"stock_quantity"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (r productRow) toDomain() *domain.Product {
	return &domain.Product{
		ID:              r.ID,
		Name:            r.Name,
		Brand:           r.Brand,
		Slug:            r.Slug,
		Description:     r.Description,
		Price:           r.Price,
		Concentration:   r.Concentration,
		ImageURL:        r.ImageURL,
		FormulaCode:     r.FormulaCode,
		LongevityHours:  r.LongevityHours,
		SillageRank:     r.SillageRank,
		MolecularWeight: r.MolecularWeight.String(),
		StockQuantity:   r.StockQuantity,
		CreatedAt:       r.CreatedAt,
	}
}

// ProductRepository implements repository.ProductRepository over PostgREST.
type ProductRepository struct {
	client *Client
}

// NewProductRepository creates a PostgREST-backed catalog reader.
func NewProductRepository(client *Client) *ProductRepository {
	return &ProductRepository{client: client}
}

// GetByID returns a live product by its UUID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if !domain.IsInventoryID(id) {
		return nil, apperrors.NotFound("product", id)
	}
	return r.getOne(ctx, "GetProductByID", "id", id)
}

// GetBySlug returns a live product by its URL slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.getOne(ctx, "GetProductBySlug", "slug", slug)
}

func (r *ProductRepository) getOne(ctx context.Context, op, column, value string) (_ *domain.Product, err error) {
	target := r.client.tableURL("products", url.Values{
		column:       {"eq." + value},
		"is_deleted": {"eq.false"},
		"select":     {productSelect},
		"limit":      {"1"},
	})
	ctx, end := database.TraceRemote(ctx, op, "GET /rest/v1/products")
	defer func() { end(err) }()

	var rows []productRow
	if err = r.client.do(ctx, http.MethodGet, target, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("product", value)
	}
	return rows[0].toDomain(), nil
}
