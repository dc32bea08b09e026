package pricing

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larder-erp/larder-erp/internal/shared"
)

type memoryRepo struct {
	entries map[string]Entry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]Entry)}
}

func entryKey(stockItemID, brandID int64) string {
	return fmt.Sprintf("%d:%d", stockItemID, brandID)
}

func (r *memoryRepo) Insert(ctx context.Context, entry Entry) (Entry, error) {
	key := entryKey(entry.StockItemID, entry.BrandID)
	if _, ok := r.entries[key]; ok {
		return Entry{}, fmt.Errorf("pricing: offer exists: %w", shared.ErrConflict)
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt
	r.entries[key] = entry
	return entry, nil
}

func (r *memoryRepo) Get(ctx context.Context, stockItemID, brandID int64) (Entry, error) {
	entry, ok := r.entries[entryKey(stockItemID, brandID)]
	if !ok {
		return Entry{}, fmt.Errorf("pricing: offer: %w", shared.ErrNotFound)
	}
	return entry, nil
}

func (r *memoryRepo) ListByItem(ctx context.Context, stockItemID int64) ([]Entry, error) {
	var result []Entry
	for _, entry := range r.entries {
		if entry.StockItemID == stockItemID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsPreferred != result[j].IsPreferred {
			return result[i].IsPreferred
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *memoryRepo) Update(ctx context.Context, entry Entry) (Entry, error) {
	key := entryKey(entry.StockItemID, entry.BrandID)
	if _, ok := r.entries[key]; !ok {
		return Entry{}, fmt.Errorf("pricing: offer: %w", shared.ErrNotFound)
	}
	entry.UpdatedAt = time.Now().UTC()
	r.entries[key] = entry
	return entry, nil
}

func (r *memoryRepo) Delete(ctx context.Context, stockItemID, brandID int64) error {
	key := entryKey(stockItemID, brandID)
	if _, ok := r.entries[key]; !ok {
		return fmt.Errorf("pricing: offer: %w", shared.ErrNotFound)
	}
	delete(r.entries, key)
	return nil
}

func (r *memoryRepo) DeleteAllForItem(ctx context.Context, stockItemID int64) (int64, error) {
	var removed int64
	for key, entry := range r.entries {
		if entry.StockItemID == stockItemID {
			delete(r.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (r *memoryRepo) SetPreferred(ctx context.Context, stockItemID, brandID int64) error {
	if _, ok := r.entries[entryKey(stockItemID, brandID)]; !ok {
		return fmt.Errorf("pricing: offer: %w", shared.ErrNotFound)
	}
	for key, entry := range r.entries {
		if entry.StockItemID != stockItemID {
			continue
		}
		entry.IsPreferred = entry.BrandID == brandID
		r.entries[key] = entry
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAttachValidatesPrices(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("0"), PriceAfterTax: dec("1")}, "")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("1"), PriceAfterTax: dec("-1")}, "")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	entry, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("1.005"), PriceAfterTax: dec("1.106")}, "")
	require.NoError(t, err)
	require.Equal(t, "1.01", entry.PriceBeforeTax.StringFixed(2))
	require.Equal(t, "1.11", entry.PriceAfterTax.StringFixed(2))
}

func TestAttachDuplicateBrand(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("1"), PriceAfterTax: dec("1.10")}, "")
	require.NoError(t, err)

	_, err = svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("2"), PriceAfterTax: dec("2.20")}, "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestSetPreferredSingleWinner(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	for brandID := int64(1); brandID <= 3; brandID++ {
		_, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: brandID, PriceBeforeTax: dec("1"), PriceAfterTax: dec("1.10")}, "")
		require.NoError(t, err)
	}

	require.NoError(t, svc.SetPreferred(ctx, 1, 2, ""))
	requirePreferred(t, svc, 1, 2)

	// moving the flag demotes the old winner
	require.NoError(t, svc.SetPreferred(ctx, 1, 3, ""))
	requirePreferred(t, svc, 1, 3)

	// idempotent
	require.NoError(t, svc.SetPreferred(ctx, 1, 3, ""))
	requirePreferred(t, svc, 1, 3)
}

func requirePreferred(t *testing.T, svc *Service, stockItemID, brandID int64) {
	t.Helper()
	entries, err := svc.ListByStockItem(context.Background(), stockItemID)
	require.NoError(t, err)
	preferred := 0
	for _, entry := range entries {
		if entry.IsPreferred {
			preferred++
			require.Equal(t, brandID, entry.BrandID)
		}
	}
	require.Equal(t, 1, preferred)
}

func TestSetPreferredMissingOffer(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	err := svc.SetPreferred(context.Background(), 1, 99, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAttachPreferredFlag(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("1"), PriceAfterTax: dec("1.10")}, "")
	require.NoError(t, err)

	entry, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 2, PriceBeforeTax: dec("1"), PriceAfterTax: dec("1.05"), IsPreferred: true}, "")
	require.NoError(t, err)
	require.True(t, entry.IsPreferred)
	requirePreferred(t, svc, 1, 2)
}

func TestUpdatePartial(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("1.00"), PriceAfterTax: dec("1.10")}, "")
	require.NoError(t, err)

	after := dec("1.21")
	updated, err := svc.Update(ctx, 1, 1, UpdateInput{PriceAfterTax: &after}, "")
	require.NoError(t, err)
	require.Equal(t, "1.00", updated.PriceBeforeTax.StringFixed(2))
	require.Equal(t, "1.21", updated.PriceAfterTax.StringFixed(2))

	bad := dec("0")
	_, err = svc.Update(ctx, 1, 1, UpdateInput{PriceBeforeTax: &bad}, "")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDetach(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 1, PriceBeforeTax: dec("1"), PriceAfterTax: dec("1.10")}, "")
	require.NoError(t, err)
	_, err = svc.Attach(ctx, AttachInput{StockItemID: 1, BrandID: 2, PriceBeforeTax: dec("1"), PriceAfterTax: dec("1.10")}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Detach(ctx, 1, 1, ""))
	require.ErrorIs(t, svc.Detach(ctx, 1, 1, ""), shared.ErrNotFound)

	removed, err := svc.DetachAllForStockItem(ctx, 1, "")
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
