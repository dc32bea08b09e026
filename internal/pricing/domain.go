package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the stored precision for prices.
const PriceScale = 2

// Entry is the price a specific brand charges for a specific stock item.
// (stock_item_id, brand_id) is unique; at most one entry per stock item is
// preferred.
type Entry struct {
	ID             int64           `json:"id"`
	StockItemID    int64           `json:"stock_item_id"`
	BrandID        int64           `json:"brand_id"`
	BrandName      string          `json:"brand_name,omitempty"`
	PriceBeforeTax decimal.Decimal `json:"price_before_tax"`
	PriceAfterTax  decimal.Decimal `json:"price_after_tax"`
	IsPreferred    bool            `json:"is_preferred"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AttachInput describes a new pricing offer.
type AttachInput struct {
	StockItemID    int64
	BrandID        int64
	PriceBeforeTax decimal.Decimal
	PriceAfterTax  decimal.Decimal
	IsPreferred    bool
}

// UpdateInput carries a partial price update.
type UpdateInput struct {
	PriceBeforeTax *decimal.Decimal
	PriceAfterTax  *decimal.Decimal
}
