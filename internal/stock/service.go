package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (StockItem, error)
	ListItems(ctx context.Context, filter ListFilter) ([]StockItem, int, error)
	ListLowStock(ctx context.Context) ([]StockItem, error)
	InsertItem(ctx context.Context, item StockItem) (StockItem, error)
	UpdateItem(ctx context.Context, item StockItem) (StockItem, error)
	SetDeletedAt(ctx context.Context, id int64, at *time.Time) error
	GetMovement(ctx context.Context, id int64) (MovementRecord, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]MovementRecord, int, error)
}

// TxRepository exposes the operations that must share one transaction.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (StockItem, error)
	UpdateQuantity(ctx context.Context, id int64, qty decimal.Decimal) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	DeletePricesForItem(ctx context.Context, stockItemID int64) error
	DeleteItem(ctx context.Context, id int64) error
}

// UsagePort reports how many recipe lines reference a stock item.
type UsagePort interface {
	CountUsage(ctx context.Context, stockItemID int64) (int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock item operations.
type Service struct {
	repo  RepositoryPort
	usage UsagePort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, usage UsagePort, audit AuditPort) *Service {
	return &Service{repo: repo, usage: usage, audit: audit}
}

// Create registers a new stock item. The initial quantity is part of the
// creation attributes and does not produce a movement.
func (s *Service) Create(ctx context.Context, input CreateItemInput) (StockItem, error) {
	item := StockItem{
		Name:             strings.TrimSpace(input.Name),
		Description:      strings.TrimSpace(input.Description),
		Unit:             strings.TrimSpace(input.Unit),
		Quantity:         input.InitialQuantity.Round(QuantityScale),
		ReorderThreshold: roundThreshold(input.ReorderThreshold),
	}
	if err := validateItem(item); err != nil {
		return StockItem{}, err
	}
	created, err := s.repo.InsertItem(ctx, item)
	if err != nil {
		return StockItem{}, err
	}
	return created, nil
}

// Get loads a stock item. Soft-deleted items are reported as missing.
func (s *Service) Get(ctx context.Context, id int64) (StockItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return StockItem{}, err
	}
	if item.DeletedAt != nil {
		return StockItem{}, fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

// List pages through stock items.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]StockItem, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListItems(ctx, filter)
}

// ListLowStock returns items at or below their reorder threshold.
func (s *Service) ListLowStock(ctx context.Context) ([]StockItem, error) {
	return s.repo.ListLowStock(ctx)
}

// Update applies a partial update to descriptive attributes. Quantity never
// changes here; Receive and Adjust are the only quantity mutations.
func (s *Service) Update(ctx context.Context, id int64, input UpdateItemInput) (StockItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return StockItem{}, err
	}
	if input.Name != nil {
		item.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		item.Description = strings.TrimSpace(*input.Description)
	}
	if input.Unit != nil {
		item.Unit = strings.TrimSpace(*input.Unit)
	}
	if input.ClearThreshold {
		item.ReorderThreshold = nil
	} else if input.ReorderThreshold != nil {
		item.ReorderThreshold = roundThreshold(input.ReorderThreshold)
	}
	if err := validateItem(item); err != nil {
		return StockItem{}, err
	}
	return s.repo.UpdateItem(ctx, item)
}

// Receive adds a strictly positive quantity and writes one RECEIVED movement
// in the same transaction as the quantity update.
func (s *Service) Receive(ctx context.Context, id int64, input ReceiveInput) (StockItem, error) {
	if input.Quantity.Sign() <= 0 {
		return StockItem{}, fmt.Errorf("stock: received quantity must be positive: %w", shared.ErrInvalidInput)
	}
	return s.postMovement(ctx, id, movementParams{
		Type:    MovementReceived,
		Delta:   input.Quantity,
		Reason:  strings.TrimSpace(input.Reason),
		RefType: input.RefType,
		RefID:   input.RefID,
		ActorID: input.ActorID,
	})
}

// Adjust applies a signed correction. The reason is mandatory and the
// resulting quantity may never go negative.
func (s *Service) Adjust(ctx context.Context, id int64, input AdjustInput) (StockItem, error) {
	if input.Delta.IsZero() {
		return StockItem{}, fmt.Errorf("stock: adjustment delta must be non-zero: %w", shared.ErrInvalidInput)
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return StockItem{}, fmt.Errorf("stock: adjustment reason is required: %w", shared.ErrInvalidInput)
	}
	return s.postMovement(ctx, id, movementParams{
		Type:    MovementAdjusted,
		Delta:   input.Delta,
		Reason:  reason,
		RefType: input.RefType,
		RefID:   input.RefID,
		ActorID: input.ActorID,
	})
}

// SoftDelete hides an item. Items referenced by recipe lines cannot be
// deleted in either mode.
func (s *Service) SoftDelete(ctx context.Context, id int64, actorID string) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.DeletedAt != nil {
		return nil
	}
	if err := s.guardUnused(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.repo.SetDeletedAt(ctx, id, &now); err != nil {
		return err
	}
	s.record(ctx, actorID, "stock:soft_delete", id, nil)
	return nil
}

// Restore reverses a soft delete. Restoring an alive item is a no-op.
func (s *Service) Restore(ctx context.Context, id int64, actorID string) (StockItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return StockItem{}, err
	}
	if item.DeletedAt == nil {
		return item, nil
	}
	if err := s.repo.SetDeletedAt(ctx, id, nil); err != nil {
		return StockItem{}, err
	}
	item.DeletedAt = nil
	s.record(ctx, actorID, "stock:restore", id, nil)
	return item, nil
}

// ForceDelete removes an item and its price catalog rows for good. Movements
// are retained as the audit of record. The recipe-usage check runs first as a
// friendly guard; the recipe_lines foreign key is the physical backstop that
// closes the check-then-act window.
func (s *Service) ForceDelete(ctx context.Context, id int64, actorID string) error {
	if _, err := s.repo.GetItem(ctx, id); err != nil {
		return err
	}
	if err := s.guardUnused(ctx, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeletePricesForItem(ctx, id); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "stock:force_delete", id, nil)
	return nil
}

// GetMovement loads one audit entry.
func (s *Service) GetMovement(ctx context.Context, id int64) (MovementRecord, error) {
	return s.repo.GetMovement(ctx, id)
}

// ListMovements pages through the audit log, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementRecord, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMovements(ctx, filter)
}

// CheckDeletionProtection reports whether an item may be deleted.
func (s *Service) CheckDeletionProtection(ctx context.Context, id int64) (bool, int, error) {
	if _, err := s.repo.GetItem(ctx, id); err != nil {
		return false, 0, err
	}
	if s.usage == nil {
		return true, 0, nil
	}
	count, err := s.usage.CountUsage(ctx, id)
	if err != nil {
		return false, 0, err
	}
	return count == 0, count, nil
}

type movementParams struct {
	Type    MovementType
	Delta   decimal.Decimal
	Reason  string
	RefType string
	RefID   string
	ActorID string
}

func (s *Service) postMovement(ctx context.Context, id int64, params movementParams) (StockItem, error) {
	if params.RefID != "" {
		if _, err := uuid.Parse(params.RefID); err != nil {
			return StockItem{}, fmt.Errorf("stock: invalid ref id: %w", shared.ErrInvalidInput)
		}
	}
	delta := params.Delta.Round(QuantityScale)
	var item StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		prev := current.Quantity
		next := prev.Add(delta)
		if next.IsNegative() {
			return fmt.Errorf("stock: adjustment would result in negative stock: %w", shared.ErrBusinessRule)
		}
		if err := tx.UpdateQuantity(ctx, id, next); err != nil {
			return err
		}
		if _, err := tx.InsertMovement(ctx, Movement{
			StockItemID: id,
			Type:        params.Type,
			QtyDelta:    delta,
			PreviousQty: prev,
			NewQty:      next,
			Reason:      params.Reason,
			RefType:     params.RefType,
			RefID:       params.RefID,
			ActorID:     params.ActorID,
		}); err != nil {
			return err
		}
		current.Quantity = next
		item = current
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	s.record(ctx, params.ActorID, fmt.Sprintf("stock:%s", strings.ToLower(string(params.Type))), id, map[string]any{
		"delta":  delta.String(),
		"reason": params.Reason,
	})
	return item, nil
}

func (s *Service) guardUnused(ctx context.Context, id int64) error {
	if s.usage == nil {
		return nil
	}
	count, err := s.usage.CountUsage(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("stock: item is used by %d recipe line(s): %w", count, shared.ErrBusinessRule)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actorID,
		Action:   action,
		Entity:   "stock_item",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}

func validateItem(item StockItem) error {
	if item.Name == "" {
		return fmt.Errorf("stock: name is required: %w", shared.ErrInvalidInput)
	}
	if len(item.Name) > MaxNameLength {
		return fmt.Errorf("stock: name exceeds %d characters: %w", MaxNameLength, shared.ErrInvalidInput)
	}
	if item.Unit == "" {
		return fmt.Errorf("stock: unit of measure is required: %w", shared.ErrInvalidInput)
	}
	if item.Quantity.IsNegative() {
		return fmt.Errorf("stock: quantity must be non-negative: %w", shared.ErrInvalidInput)
	}
	if item.ReorderThreshold != nil && item.ReorderThreshold.IsNegative() {
		return fmt.Errorf("stock: reorder threshold must be non-negative: %w", shared.ErrInvalidInput)
	}
	return nil
}

func roundThreshold(t *decimal.Decimal) *decimal.Decimal {
	if t == nil {
		return nil
	}
	rounded := t.Round(QuantityScale)
	return &rounded
}
