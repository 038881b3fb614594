package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nainu25/ELEMENT-01/pkg/database"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

type stockRow struct {
	StockQuantity int `json:"stock_quantity"`
}

type decrementRow struct {
	Applied       bool `json:"applied"`
	StockQuantity int  `json:"stock_quantity"`
}

// InventoryRepository implements repository.InventoryRepository and
// repository.ConditionalDecrementer against the products table.
type InventoryRepository struct {
	client *Client
}

// NewInventoryRepository creates a PostgREST-backed inventory store.
func NewInventoryRepository(client *Client) *InventoryRepository {
	return &InventoryRepository{client: client}
}

// ReadStock returns the current stock counter for productID.
func (r *InventoryRepository) ReadStock(ctx context.Context, productID string) (_ int, err error) {
	target := r.client.tableURL("products", url.Values{
		"id":     {"eq." + productID},
		"select": {"stock_quantity"},
	})
	ctx, end := database.TraceRemote(ctx, "ReadStock", "GET /rest/v1/products")
	defer func() { end(err) }()

	var rows []stockRow
	if err = r.client.do(ctx, http.MethodGet, target, nil, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, apperrors.NotFound("product", productID)
	}
	return rows[0].StockQuantity, nil
}

// WriteStock overwrites the stock counter for productID.
func (r *InventoryRepository) WriteStock(ctx context.Context, productID string, quantity int) (err error) {
	target := r.client.tableURL("products", url.Values{
		"id":     {"eq." + productID},
		"select": {"stock_quantity"},
	})
	ctx, end := database.TraceRemote(ctx, "WriteStock", "PATCH /rest/v1/products")
	defer func() { end(err) }()

	var rows []stockRow
	if err = r.client.do(ctx, http.MethodPatch, target, stockRow{StockQuantity: quantity}, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

// DecrementIfAvailable calls the decrement_stock_if_available function.
func (r *InventoryRepository) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (_ int, err error) {
	ctx, end := database.TraceRemote(ctx, "DecrementIfAvailable", "POST /rest/v1/rpc/decrement_stock_if_available")
	defer func() { end(err) }()

	body := map[string]any{"p_id": productID, "p_quantity": quantity}
	var rows []decrementRow
	if err = r.client.do(ctx, http.MethodPost, r.client.rpcURL("decrement_stock_if_available"), body, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, apperrors.NotFound("product", productID)
	}
	if !rows[0].Applied {
		return 0, apperrors.OutOfStock(productID, quantity, rows[0].StockQuantity)
	}
	return rows[0].StockQuantity, nil
}
