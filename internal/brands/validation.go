package brands

import (
	"fmt"

	"github.com/larder-erp/larder-erp/internal/shared"
)

const maxNameLength = 255

func (s *Service) validate(b Brand) error {
	if b.Name == "" {
		return fmt.Errorf("brands: name is required: %w", shared.ErrInvalidInput)
	}
	if len(b.Name) > maxNameLength {
		return fmt.Errorf("brands: name exceeds %d characters: %w", maxNameLength, shared.ErrInvalidInput)
	}
	return nil
}
