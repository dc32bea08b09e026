package stock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larder-erp/larder-erp/internal/shared"
)

type memoryRepo struct {
	items      map[int64]StockItem
	movements  []Movement
	nextItemID int64
	nextMoveID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]StockItem)}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (StockItem, error) {
	item, ok := r.items[id]
	if !ok {
		return StockItem{}, fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ListFilter) ([]StockItem, int, error) {
	var result []StockItem
	for _, item := range r.items {
		if item.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != "" && item.Status() != filter.Status {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, len(result), nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context) ([]StockItem, error) {
	var result []StockItem
	for _, item := range r.items {
		if item.DeletedAt != nil {
			continue
		}
		if st := item.Status(); st == StatusLowStock || st == StatusOutOfStock {
			result = append(result, item)
		}
	}
	return result, nil
}

func (r *memoryRepo) InsertItem(ctx context.Context, item StockItem) (StockItem, error) {
	for _, existing := range r.items {
		if existing.DeletedAt == nil && strings.EqualFold(existing.Name, item.Name) {
			return StockItem{}, fmt.Errorf("stock: item %q: %w", item.Name, shared.ErrConflict)
		}
	}
	r.nextItemID++
	item.ID = r.nextItemID
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, item StockItem) (StockItem, error) {
	if _, ok := r.items[item.ID]; !ok {
		return StockItem{}, fmt.Errorf("stock: item %d: %w", item.ID, shared.ErrNotFound)
	}
	item.UpdatedAt = time.Now().UTC()
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) SetDeletedAt(ctx context.Context, id int64, at *time.Time) error {
	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	item.DeletedAt = at
	r.items[id] = item
	return nil
}

func (r *memoryRepo) GetMovement(ctx context.Context, id int64) (MovementRecord, error) {
	for _, m := range r.movements {
		if m.ID == id {
			return MovementRecord{Movement: m}, nil
		}
	}
	return MovementRecord{}, fmt.Errorf("stock: movement %d: %w", id, shared.ErrNotFound)
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementRecord, int, error) {
	var result []MovementRecord
	for _, m := range r.movements {
		if filter.StockItemID != 0 && m.StockItemID != filter.StockItemID {
			continue
		}
		result = append(result, MovementRecord{Movement: m})
	}
	return result, len(result), nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	item, ok := tx.repo.items[id]
	if !ok || item.DeletedAt != nil {
		return StockItem{}, fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

func (tx *memoryTx) UpdateQuantity(ctx context.Context, id int64, qty decimal.Decimal) error {
	item, ok := tx.repo.items[id]
	if !ok {
		return fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	item.Quantity = qty
	tx.repo.items[id] = item
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	tx.repo.nextMoveID++
	m.ID = tx.repo.nextMoveID
	m.CreatedAt = time.Now().UTC()
	tx.repo.movements = append(tx.repo.movements, m)
	return m, nil
}

func (tx *memoryTx) DeletePricesForItem(ctx context.Context, stockItemID int64) error {
	return nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := tx.repo.items[id]; !ok {
		return fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	delete(tx.repo.items, id)
	return nil
}

type fixedUsage struct {
	count int
}

func (u fixedUsage) CountUsage(ctx context.Context, stockItemID int64) (int, error) {
	return u.count, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedItem(t *testing.T, svc *Service, qty string) StockItem {
	t.Helper()
	item, err := svc.Create(context.Background(), CreateItemInput{
		Name:            "Flour 00",
		Unit:            "kg",
		InitialQuantity: dec(qty),
	})
	require.NoError(t, err)
	return item
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateItemInput{Unit: "kg"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateItemInput{Name: "Flour", Unit: "kg", InitialQuantity: dec("-1")})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateItemInput{Name: "Flour"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	item, err := svc.Create(ctx, CreateItemInput{Name: "  Flour  ", Unit: "kg", InitialQuantity: dec("2.5")})
	require.NoError(t, err)
	require.Equal(t, "Flour", item.Name)
	require.True(t, item.Quantity.Equal(dec("2.5")))
}

func TestCreateDuplicateName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateItemInput{Name: "Butter", Unit: "kg"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateItemInput{Name: "butter", Unit: "kg"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestReceiveAddsQuantityAndMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	updated, err := svc.Receive(ctx, item.ID, ReceiveInput{Quantity: dec("5"), ActorID: "u-chef"})
	require.NoError(t, err)
	require.True(t, updated.Quantity.Equal(dec("15")))

	require.Len(t, repo.movements, 1)
	m := repo.movements[0]
	require.Equal(t, MovementReceived, m.Type)
	require.True(t, m.QtyDelta.Equal(dec("5")))
	require.True(t, m.PreviousQty.Equal(dec("10")))
	require.True(t, m.NewQty.Equal(dec("15")))
	require.Equal(t, "u-chef", m.ActorID)
}

func TestReceiveRejectsNonPositive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	_, err := svc.Receive(ctx, item.ID, ReceiveInput{Quantity: dec("0")})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Receive(ctx, item.ID, ReceiveInput{Quantity: dec("-2")})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Empty(t, repo.movements)
}

func TestAdjustNegativeStockRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	_, err := svc.Adjust(ctx, item.ID, AdjustInput{Delta: dec("-15"), Reason: "spillage"})
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	current, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("10")))
	require.Empty(t, repo.movements)
}

func TestAdjustToZeroAllowed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	updated, err := svc.Adjust(ctx, item.ID, AdjustInput{Delta: dec("-10"), Reason: "stocktake"})
	require.NoError(t, err)
	require.True(t, updated.Quantity.IsZero())
	require.Equal(t, StatusOutOfStock, updated.Status())
	require.Len(t, repo.movements, 1)
}

func TestAdjustRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	_, err := svc.Adjust(ctx, item.ID, AdjustInput{Delta: dec("-1"), Reason: "   "})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Adjust(ctx, item.ID, AdjustInput{Delta: dec("0"), Reason: "noop"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestMovementRefIDMustBeUUID(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	_, err := svc.Receive(ctx, item.ID, ReceiveInput{Quantity: dec("1"), RefID: "not-a-uuid"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Receive(ctx, item.ID, ReceiveInput{
		Quantity: dec("1"),
		RefType:  "purchase_order",
		RefID:    "7a9f4a6e-64c2-4db0-a0f3-9bf83c17a01d",
	})
	require.NoError(t, err)
}

func TestUpdateNeverTouchesQuantity(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	name := "Flour Tipo 00"
	updated, err := svc.Update(ctx, item.ID, UpdateItemInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Flour Tipo 00", updated.Name)
	require.True(t, updated.Quantity.Equal(dec("10")))

	threshold := dec("3")
	updated, err = svc.Update(ctx, item.ID, UpdateItemInput{ReorderThreshold: &threshold})
	require.NoError(t, err)
	require.NotNil(t, updated.ReorderThreshold)

	updated, err = svc.Update(ctx, item.ID, UpdateItemInput{ClearThreshold: true})
	require.NoError(t, err)
	require.Nil(t, updated.ReorderThreshold)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	require.NoError(t, svc.SoftDelete(ctx, item.ID, "u-admin"))

	_, err := svc.Get(ctx, item.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// deleting twice is a no-op
	require.NoError(t, svc.SoftDelete(ctx, item.ID, "u-admin"))

	restored, err := svc.Restore(ctx, item.ID, "u-admin")
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, got.Quantity.Equal(dec("10")))
}

func TestDeleteBlockedByRecipeUsage(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedUsage{count: 2}, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	err := svc.SoftDelete(ctx, item.ID, "")
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	err = svc.ForceDelete(ctx, item.ID, "")
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	canDelete, count, err := svc.CheckDeletionProtection(ctx, item.ID)
	require.NoError(t, err)
	require.False(t, canDelete)
	require.Equal(t, 2, count)
}

func TestForceDeleteKeepsMovements(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedUsage{count: 0}, nil)
	ctx := context.Background()
	item := seedItem(t, svc, "10")

	_, err := svc.Receive(ctx, item.ID, ReceiveInput{Quantity: dec("2")})
	require.NoError(t, err)

	require.NoError(t, svc.ForceDelete(ctx, item.ID, "u-admin"))

	_, err = svc.Get(ctx, item.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	records, total, err := svc.ListMovements(ctx, MovementFilter{StockItemID: item.ID, ListParams: shared.ListParams{Page: 1, Limit: 20}})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
}

func TestListLowStock(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	threshold := dec("5")
	_, err := svc.Create(ctx, CreateItemInput{Name: "Salt", Unit: "kg", InitialQuantity: dec("10"), ReorderThreshold: &threshold})
	require.NoError(t, err)
	low, err := svc.Create(ctx, CreateItemInput{Name: "Sugar", Unit: "kg", InitialQuantity: dec("4"), ReorderThreshold: &threshold})
	require.NoError(t, err)

	flagged, err := svc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	require.Equal(t, low.ID, flagged[0].ID)
}
