package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the price catalog.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Attach adds a brand's pricing offer for a stock item.
func (s *Service) Attach(ctx context.Context, input AttachInput, actorID string) (Entry, error) {
	if err := validatePrice("price before tax", input.PriceBeforeTax); err != nil {
		return Entry{}, err
	}
	if err := validatePrice("price after tax", input.PriceAfterTax); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		StockItemID:    input.StockItemID,
		BrandID:        input.BrandID,
		PriceBeforeTax: input.PriceBeforeTax.Round(PriceScale),
		PriceAfterTax:  input.PriceAfterTax.Round(PriceScale),
		IsPreferred:    false,
	}
	created, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if input.IsPreferred {
		if err := s.repo.SetPreferred(ctx, input.StockItemID, input.BrandID); err != nil {
			return Entry{}, err
		}
		created.IsPreferred = true
	}
	s.record(ctx, actorID, "pricing:attach", created)
	return created, nil
}

// ListByStockItem returns all offers for a stock item, preferred first.
func (s *Service) ListByStockItem(ctx context.Context, stockItemID int64) ([]Entry, error) {
	return s.repo.ListByItem(ctx, stockItemID)
}

// Get loads one offer.
func (s *Service) Get(ctx context.Context, stockItemID, brandID int64) (Entry, error) {
	return s.repo.Get(ctx, stockItemID, brandID)
}

// Update changes prices on an existing offer.
func (s *Service) Update(ctx context.Context, stockItemID, brandID int64, input UpdateInput, actorID string) (Entry, error) {
	entry, err := s.repo.Get(ctx, stockItemID, brandID)
	if err != nil {
		return Entry{}, err
	}
	if input.PriceBeforeTax != nil {
		if err := validatePrice("price before tax", *input.PriceBeforeTax); err != nil {
			return Entry{}, err
		}
		entry.PriceBeforeTax = input.PriceBeforeTax.Round(PriceScale)
	}
	if input.PriceAfterTax != nil {
		if err := validatePrice("price after tax", *input.PriceAfterTax); err != nil {
			return Entry{}, err
		}
		entry.PriceAfterTax = input.PriceAfterTax.Round(PriceScale)
	}
	updated, err := s.repo.Update(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, actorID, "pricing:update", updated)
	return updated, nil
}

// Detach removes the pricing offer. The brand and stock item are untouched.
func (s *Service) Detach(ctx context.Context, stockItemID, brandID int64, actorID string) error {
	if err := s.repo.Delete(ctx, stockItemID, brandID); err != nil {
		return err
	}
	s.record(ctx, actorID, "pricing:detach", Entry{StockItemID: stockItemID, BrandID: brandID})
	return nil
}

// DetachAllForStockItem removes every offer for a stock item.
func (s *Service) DetachAllForStockItem(ctx context.Context, stockItemID int64, actorID string) (int64, error) {
	removed, err := s.repo.DeleteAllForItem(ctx, stockItemID)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actorID, "pricing:detach_all", Entry{StockItemID: stockItemID})
	return removed, nil
}

// SetPreferred marks exactly one brand preferred for a stock item. The
// operation is idempotent.
func (s *Service) SetPreferred(ctx context.Context, stockItemID, brandID int64, actorID string) error {
	if err := s.repo.SetPreferred(ctx, stockItemID, brandID); err != nil {
		return err
	}
	s.record(ctx, actorID, "pricing:set_preferred", Entry{StockItemID: stockItemID, BrandID: brandID})
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action string, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actorID,
		Action:   action,
		Entity:   "stock_item_price",
		EntityID: fmt.Sprintf("%d:%d", entry.StockItemID, entry.BrandID),
	})
}

func validatePrice(field string, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("pricing: %s must be positive: %w", field, shared.ErrInvalidInput)
	}
	return nil
}
