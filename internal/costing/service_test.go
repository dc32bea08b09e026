package costing

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larder-erp/larder-erp/internal/pricing"
	"github.com/larder-erp/larder-erp/internal/recipes"
	"github.com/larder-erp/larder-erp/internal/shared"
)

type stubRecipes struct {
	lines map[int64][]recipes.Line
}

func (s stubRecipes) GetRecipe(ctx context.Context, productID int64) ([]recipes.Line, error) {
	return s.lines[productID], nil
}

type stubPrices struct {
	entries []pricing.Entry
}

func (s stubPrices) Get(ctx context.Context, stockItemID, brandID int64) (pricing.Entry, error) {
	for _, entry := range s.entries {
		if entry.StockItemID == stockItemID && entry.BrandID == brandID {
			return entry, nil
		}
	}
	return pricing.Entry{}, fmt.Errorf("pricing: offer: %w", shared.ErrNotFound)
}

func (s stubPrices) ListByItem(ctx context.Context, stockItemID int64) ([]pricing.Entry, error) {
	var result []pricing.Entry
	for _, entry := range s.entries {
		if entry.StockItemID == stockItemID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculatePicksCheapestOffer(t *testing.T) {
	recipesPort := stubRecipes{lines: map[int64][]recipes.Line{
		7: {{ID: 1, ProductID: 7, StockItemID: 1, StockItemName: "Flour 00", Unit: "kg", Quantity: dec("2")}},
	}}
	pricesPort := stubPrices{entries: []pricing.Entry{
		{ID: 1, StockItemID: 1, BrandID: 10, BrandName: "Brand A", PriceAfterTax: dec("2.00")},
		{ID: 2, StockItemID: 1, BrandID: 11, BrandName: "Brand B", PriceAfterTax: dec("1.50")},
	}}
	svc := NewService(recipesPort, pricesPort)

	quote, err := svc.Calculate(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, quote.Lines, 1)
	require.Equal(t, int64(11), *quote.Lines[0].BrandID)
	require.Equal(t, "3.00", quote.Lines[0].LineCost.StringFixed(2))
	require.Equal(t, "3.00", quote.TotalCost.StringFixed(2))
}

func TestCalculateTieBreaksOnEarliestEntry(t *testing.T) {
	recipesPort := stubRecipes{lines: map[int64][]recipes.Line{
		7: {{ID: 1, ProductID: 7, StockItemID: 1, Quantity: dec("1")}},
	}}
	pricesPort := stubPrices{entries: []pricing.Entry{
		{ID: 5, StockItemID: 1, BrandID: 10, PriceAfterTax: dec("1.50")},
		{ID: 2, StockItemID: 1, BrandID: 11, PriceAfterTax: dec("1.50")},
	}}
	svc := NewService(recipesPort, pricesPort)

	quote, err := svc.Calculate(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(11), *quote.Lines[0].BrandID)
}

func TestCalculateHonoursPreferredBrand(t *testing.T) {
	preferred := int64(10)
	recipesPort := stubRecipes{lines: map[int64][]recipes.Line{
		7: {{ID: 1, ProductID: 7, StockItemID: 1, Quantity: dec("1"), PreferredBrandID: &preferred}},
	}}
	pricesPort := stubPrices{entries: []pricing.Entry{
		{ID: 1, StockItemID: 1, BrandID: 10, PriceAfterTax: dec("2.00")},
		{ID: 2, StockItemID: 1, BrandID: 11, PriceAfterTax: dec("1.50")},
	}}
	svc := NewService(recipesPort, pricesPort)

	quote, err := svc.Calculate(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(10), *quote.Lines[0].BrandID)
	require.Equal(t, "2.00", quote.TotalCost.StringFixed(2))
}

func TestCalculateDanglingPreferredFallsBack(t *testing.T) {
	gone := int64(99)
	recipesPort := stubRecipes{lines: map[int64][]recipes.Line{
		7: {{ID: 1, ProductID: 7, StockItemID: 1, Quantity: dec("1"), PreferredBrandID: &gone}},
	}}
	pricesPort := stubPrices{entries: []pricing.Entry{
		{ID: 1, StockItemID: 1, BrandID: 10, PriceAfterTax: dec("2.00")},
		{ID: 2, StockItemID: 1, BrandID: 11, PriceAfterTax: dec("1.50")},
	}}
	svc := NewService(recipesPort, pricesPort)

	quote, err := svc.Calculate(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(11), *quote.Lines[0].BrandID)
}

func TestCalculateUnpricedLineCostsZero(t *testing.T) {
	recipesPort := stubRecipes{lines: map[int64][]recipes.Line{
		7: {
			{ID: 1, ProductID: 7, StockItemID: 1, Quantity: dec("2")},
			{ID: 2, ProductID: 7, StockItemID: 2, Quantity: dec("3")},
		},
	}}
	pricesPort := stubPrices{entries: []pricing.Entry{
		{ID: 1, StockItemID: 1, BrandID: 10, PriceAfterTax: dec("1.00")},
	}}
	svc := NewService(recipesPort, pricesPort)

	quote, err := svc.Calculate(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	require.Nil(t, quote.Lines[1].BrandID)
	require.True(t, quote.Lines[1].LineCost.IsZero())
	require.Equal(t, "2.00", quote.TotalCost.StringFixed(2))
}

func TestCalculateEmptyRecipe(t *testing.T) {
	svc := NewService(stubRecipes{lines: map[int64][]recipes.Line{}}, stubPrices{})

	quote, err := svc.Calculate(context.Background(), 42)
	require.NoError(t, err)
	require.Empty(t, quote.Lines)
	require.True(t, quote.TotalCost.IsZero())
}

func TestCalculateRoundsPerLine(t *testing.T) {
	recipesPort := stubRecipes{lines: map[int64][]recipes.Line{
		7: {
			{ID: 1, ProductID: 7, StockItemID: 1, Quantity: dec("0.333")},
			{ID: 2, ProductID: 7, StockItemID: 2, Quantity: dec("0.333")},
		},
	}}
	pricesPort := stubPrices{entries: []pricing.Entry{
		{ID: 1, StockItemID: 1, BrandID: 10, PriceAfterTax: dec("1.00")},
		{ID: 2, StockItemID: 2, BrandID: 10, PriceAfterTax: dec("1.00")},
	}}
	svc := NewService(recipesPort, pricesPort)

	quote, err := svc.Calculate(context.Background(), 7)
	require.NoError(t, err)
	// each line rounds to 0.33 before summing
	require.Equal(t, "0.33", quote.Lines[0].LineCost.StringFixed(2))
	require.Equal(t, "0.66", quote.TotalCost.StringFixed(2))
}
