package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The storefront never mutates it except for the
// stock counter during checkout reconciliation.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Brand           string          `json:"brand"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Concentration   string          `json:"concentration,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	FormulaCode     string          `json:"formula_code,omitempty"`
	LongevityHours  int             `json:"longevity_hours,omitempty"`
	SillageRank     int             `json:"sillage_rank,omitempty"`
	MolecularWeight string          `json:"molecular_weight,omitempty"`
	StockQuantity   int             `json:"stock_quantity"`
	CreatedAt       time.Time       `json:"created_at"`
}

// IsInventoryID reports whether id has the catalog's persistent identifier
// format (a canonical 36-character UUID). Anything else, including the
// promotional gift's literal ID, is a virtual item with no stock row.
func IsInventoryID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
