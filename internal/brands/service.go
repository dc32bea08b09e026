package brands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes a new brand.
type CreateInput struct {
	Name        string
	Description string
	IsActive    bool
}

// UpdateInput carries a partial brand update.
type UpdateInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Brand, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (Brand, error) {
	brand, err := s.repo.Get(ctx, id)
	if err != nil {
		return Brand{}, err
	}
	if brand.DeletedAt != nil {
		return Brand{}, fmt.Errorf("brands: brand %d: %w", id, shared.ErrNotFound)
	}
	return brand, nil
}

func (s *Service) Create(ctx context.Context, input CreateInput, actorID string) (Brand, error) {
	brand := Brand{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		IsActive:    input.IsActive,
	}
	if err := s.validate(brand); err != nil {
		return Brand{}, err
	}
	created, err := s.repo.Create(ctx, brand)
	if err != nil {
		return Brand{}, err
	}
	s.record(ctx, actorID, "brands:create", created.ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actorID string) (Brand, error) {
	brand, err := s.Get(ctx, id)
	if err != nil {
		return Brand{}, err
	}
	if input.Name != nil {
		brand.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		brand.Description = strings.TrimSpace(*input.Description)
	}
	if input.IsActive != nil {
		brand.IsActive = *input.IsActive
	}
	if err := s.validate(brand); err != nil {
		return Brand{}, err
	}
	updated, err := s.repo.Update(ctx, brand)
	if err != nil {
		return Brand{}, err
	}
	s.record(ctx, actorID, "brands:update", id)
	return updated, nil
}

func (s *Service) SoftDelete(ctx context.Context, id int64, actorID string) error {
	brand, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if brand.DeletedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	if err := s.repo.SetDeletedAt(ctx, id, &now); err != nil {
		return err
	}
	s.record(ctx, actorID, "brands:soft_delete", id)
	return nil
}

func (s *Service) Restore(ctx context.Context, id int64, actorID string) (Brand, error) {
	brand, err := s.repo.Get(ctx, id)
	if err != nil {
		return Brand{}, err
	}
	if brand.DeletedAt == nil {
		return brand, nil
	}
	if err := s.repo.SetDeletedAt(ctx, id, nil); err != nil {
		return Brand{}, err
	}
	brand.DeletedAt = nil
	s.record(ctx, actorID, "brands:restore", id)
	return brand, nil
}

// ForceDelete removes the brand and all pricing offers attached to it.
func (s *Service) ForceDelete(ctx context.Context, id int64, actorID string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.ForceDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "brands:force_delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actorID,
		Action:   action,
		Entity:   "brand",
		EntityID: fmt.Sprintf("%d", id),
	})
}
