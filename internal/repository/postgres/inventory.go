package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nainu25/ELEMENT-01/pkg/database"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

// InventoryRepository implements repository.InventoryRepository and
// repository.ConditionalDecrementer over the products.stock_quantity column.
type InventoryRepository struct {
	pool database.DBTX
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory store.
func NewInventoryRepository(pool database.DBTX) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// ReadStock returns the current stock counter for productID.
func (r *InventoryRepository) ReadStock(ctx context.Context, productID string) (_ int, err error) {
	query := `SELECT stock_quantity FROM products WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "ReadStock", query)
	defer func() { end(err) }()

	var stock int
	err = r.pool.QueryRow(ctx, query, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", productID)
		}
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return stock, nil
}

// WriteStock overwrites the stock counter for productID.
func (r *InventoryRepository) WriteStock(ctx context.Context, productID string, quantity int) (err error) {
	query := `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "WriteStock", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("write stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

// DecrementIfAvailable subtracts quantity in a single locked statement.
func (r *InventoryRepository) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (_ int, err error) {
	query := `SELECT applied, stock_quantity FROM decrement_stock_if_available($1, $2)`
	ctx, end := database.TraceQuery(ctx, "DecrementIfAvailable", query)
	defer func() { end(err) }()

	var (
		applied bool
		stock   int
	)
	err = r.pool.QueryRow(ctx, query, productID, quantity).Scan(&applied, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", productID)
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	if !applied {
		return 0, apperrors.OutOfStock(productID, quantity, stock)
	}
	return stock, nil
}
