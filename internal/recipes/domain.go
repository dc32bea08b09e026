package recipes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line states how much of a stock item one unit of a product consumes.
// (product_id, stock_item_id) is unique: a product cannot list the same
// ingredient twice.
type Line struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	StockItemID      int64           `json:"stock_item_id"`
	StockItemName    string          `json:"stock_item_name,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	PreferredBrandID *int64          `json:"preferred_brand_id,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AddLineInput describes a new recipe line.
type AddLineInput struct {
	ProductID        int64
	StockItemID      int64
	Quantity         decimal.Decimal
	PreferredBrandID *int64
	Notes            string
}

// UpdateLineInput carries a partial line update.
type UpdateLineInput struct {
	Quantity            *decimal.Decimal
	PreferredBrandID    *int64
	ClearPreferredBrand bool
	Notes               *string
}

// Protection reports whether a stock item may be deleted.
type Protection struct {
	CanDelete  bool `json:"can_delete"`
	UsageCount int  `json:"usage_count"`
}
