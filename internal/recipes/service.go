package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/larder-erp/larder-erp/internal/pricing"
	"github.com/larder-erp/larder-erp/internal/shared"
	"github.com/larder-erp/larder-erp/internal/stock"
)

// StockPort verifies stock item existence for referential validation.
type StockPort interface {
	GetItem(ctx context.Context, id int64) (stock.StockItem, error)
}

// PricePort verifies that a preferred brand is priced for a stock item.
type PricePort interface {
	Get(ctx context.Context, stockItemID, brandID int64) (pricing.Entry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the recipe ledger.
type Service struct {
	repo   Repository
	stock  StockPort
	prices PricePort
	audit  AuditPort
}

// NewService builds Service.
func NewService(repo Repository, stockPort StockPort, prices PricePort, audit AuditPort) *Service {
	return &Service{repo: repo, stock: stockPort, prices: prices, audit: audit}
}

// AddLine links a stock item into a product's recipe.
func (s *Service) AddLine(ctx context.Context, input AddLineInput, actorID string) (Line, error) {
	if input.Quantity.Sign() <= 0 {
		return Line{}, fmt.Errorf("recipes: quantity must be positive: %w", shared.ErrInvalidInput)
	}
	if err := s.requireItem(ctx, input.StockItemID); err != nil {
		return Line{}, err
	}
	if input.PreferredBrandID != nil {
		if err := s.requirePricedBrand(ctx, input.StockItemID, *input.PreferredBrandID); err != nil {
			return Line{}, err
		}
	}
	line := Line{
		ProductID:        input.ProductID,
		StockItemID:      input.StockItemID,
		Quantity:         input.Quantity.Round(stock.QuantityScale),
		PreferredBrandID: input.PreferredBrandID,
		Notes:            strings.TrimSpace(input.Notes),
	}
	created, err := s.repo.Insert(ctx, line)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Line{}, fmt.Errorf("recipes: stock item already linked to this product: %w", shared.ErrInvalidInput)
		}
		return Line{}, err
	}
	s.record(ctx, actorID, "recipes:add_line", created)
	return created, nil
}

// GetRecipe lists a product's lines in creation order.
func (s *Service) GetRecipe(ctx context.Context, productID int64) ([]Line, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// UpdateLine applies a partial update, re-validating any new preferred brand.
func (s *Service) UpdateLine(ctx context.Context, productID, stockItemID int64, input UpdateLineInput, actorID string) (Line, error) {
	line, err := s.repo.GetLine(ctx, productID, stockItemID)
	if err != nil {
		return Line{}, err
	}
	if input.Quantity != nil {
		if input.Quantity.Sign() <= 0 {
			return Line{}, fmt.Errorf("recipes: quantity must be positive: %w", shared.ErrInvalidInput)
		}
		line.Quantity = input.Quantity.Round(stock.QuantityScale)
	}
	if input.ClearPreferredBrand {
		line.PreferredBrandID = nil
	} else if input.PreferredBrandID != nil {
		if err := s.requirePricedBrand(ctx, stockItemID, *input.PreferredBrandID); err != nil {
			return Line{}, err
		}
		line.PreferredBrandID = input.PreferredBrandID
	}
	if input.Notes != nil {
		line.Notes = strings.TrimSpace(*input.Notes)
	}
	updated, err := s.repo.Update(ctx, line)
	if err != nil {
		return Line{}, err
	}
	s.record(ctx, actorID, "recipes:update_line", updated)
	return updated, nil
}

// RemoveLine unlinks a stock item from a product's recipe.
func (s *Service) RemoveLine(ctx context.Context, productID, stockItemID int64, actorID string) error {
	if err := s.repo.Delete(ctx, productID, stockItemID); err != nil {
		return err
	}
	s.record(ctx, actorID, "recipes:remove_line", Line{ProductID: productID, StockItemID: stockItemID})
	return nil
}

// CountUsage reports how many recipe lines reference a stock item. It also
// serves stock's deletion-protection pre-check.
func (s *Service) CountUsage(ctx context.Context, stockItemID int64) (int, error) {
	return s.repo.CountUsage(ctx, stockItemID)
}

// CheckDeletionProtection reports whether a stock item may be deleted.
func (s *Service) CheckDeletionProtection(ctx context.Context, stockItemID int64) (Protection, error) {
	count, err := s.repo.CountUsage(ctx, stockItemID)
	if err != nil {
		return Protection{}, err
	}
	return Protection{CanDelete: count == 0, UsageCount: count}, nil
}

func (s *Service) requireItem(ctx context.Context, stockItemID int64) error {
	item, err := s.stock.GetItem(ctx, stockItemID)
	if err != nil {
		return err
	}
	if item.DeletedAt != nil {
		return fmt.Errorf("recipes: stock item %d: %w", stockItemID, shared.ErrNotFound)
	}
	return nil
}

func (s *Service) requirePricedBrand(ctx context.Context, stockItemID, brandID int64) error {
	if _, err := s.prices.Get(ctx, stockItemID, brandID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("recipes: brand %d is not priced for stock item %d: %w", brandID, stockItemID, shared.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action string, line Line) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actorID,
		Action:   action,
		Entity:   "recipe_line",
		EntityID: fmt.Sprintf("%d:%d", line.ProductID, line.StockItemID),
	})
}
