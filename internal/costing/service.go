package costing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/pricing"
	"github.com/larder-erp/larder-erp/internal/recipes"
	"github.com/larder-erp/larder-erp/internal/shared"
)

// RecipePort reads a product's recipe lines.
type RecipePort interface {
	GetRecipe(ctx context.Context, productID int64) ([]recipes.Line, error)
}

// PricePort reads the price catalog.
type PricePort interface {
	Get(ctx context.Context, stockItemID, brandID int64) (pricing.Entry, error)
	ListByItem(ctx context.Context, stockItemID int64) ([]pricing.Entry, error)
}

// QuoteLine is one ingredient of a cost breakdown.
type QuoteLine struct {
	StockItemID   int64           `json:"stock_item_id"`
	StockItemName string          `json:"stock_item_name"`
	Unit          string          `json:"unit"`
	Quantity      decimal.Decimal `json:"quantity"`
	BrandID       *int64          `json:"brand_id,omitempty"`
	BrandName     string          `json:"brand_name,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineCost      decimal.Decimal `json:"line_cost"`
}

// Quote is a live product cost: it is recomputed from current prices on
// every call and never cached.
type Quote struct {
	ProductID int64           `json:"product_id"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Lines     []QuoteLine     `json:"breakdown"`
}

// Service derives product costs from the recipe ledger and price catalog.
type Service struct {
	recipes RecipePort
	prices  PricePort
}

// NewService builds Service.
func NewService(recipePort RecipePort, pricePort PricePort) *Service {
	return &Service{recipes: recipePort, prices: pricePort}
}

// Calculate prices every recipe line and sums the result. Brand selection
// per line: the line's preferred brand if set, otherwise the cheapest
// after-tax offer; ties break toward the earliest-created entry. A line with
// no offers at all costs zero.
func (s *Service) Calculate(ctx context.Context, productID int64) (Quote, error) {
	lines, err := s.recipes.GetRecipe(ctx, productID)
	if err != nil {
		return Quote{}, err
	}
	quote := Quote{ProductID: productID, TotalCost: decimal.Zero, Lines: make([]QuoteLine, 0, len(lines))}
	for _, line := range lines {
		entry, found, err := s.selectEntry(ctx, line)
		if err != nil {
			return Quote{}, err
		}
		ql := QuoteLine{
			StockItemID:   line.StockItemID,
			StockItemName: line.StockItemName,
			Unit:          line.Unit,
			Quantity:      line.Quantity,
			UnitPrice:     decimal.Zero,
			LineCost:      decimal.Zero,
		}
		if found {
			brandID := entry.BrandID
			ql.BrandID = &brandID
			ql.BrandName = entry.BrandName
			ql.UnitPrice = entry.PriceAfterTax
			ql.LineCost = line.Quantity.Mul(entry.PriceAfterTax).Round(pricing.PriceScale)
		}
		quote.TotalCost = quote.TotalCost.Add(ql.LineCost)
		quote.Lines = append(quote.Lines, ql)
	}
	return quote, nil
}

func (s *Service) selectEntry(ctx context.Context, line recipes.Line) (pricing.Entry, bool, error) {
	if line.PreferredBrandID != nil {
		entry, err := s.prices.Get(ctx, line.StockItemID, *line.PreferredBrandID)
		if err == nil {
			return entry, true, nil
		}
		// A brand detached after the recipe was authored falls back to the
		// cheapest-offer rule.
		if !errors.Is(err, shared.ErrNotFound) {
			return pricing.Entry{}, false, err
		}
	}
	entries, err := s.prices.ListByItem(ctx, line.StockItemID)
	if err != nil {
		return pricing.Entry{}, false, err
	}
	if len(entries) == 0 {
		return pricing.Entry{}, false, nil
	}
	best := entries[0]
	for _, candidate := range entries[1:] {
		switch candidate.PriceAfterTax.Cmp(best.PriceAfterTax) {
		case -1:
			best = candidate
		case 0:
			if candidate.ID < best.ID {
				best = candidate
			}
		}
	}
	return best, true, nil
}
