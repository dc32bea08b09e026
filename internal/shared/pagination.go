package shared

import (
	"fmt"
	"math"
)

// MaxPageSize bounds the limit accepted by every listing endpoint.
const MaxPageSize = 100

// ListParams carries caller-supplied pagination for listing operations.
type ListParams struct {
	Page  int
	Limit int
}

// Validate checks page and limit bounds.
func (p ListParams) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1: %w", ErrInvalidInput)
	}
	if p.Limit < 1 || p.Limit > MaxPageSize {
		return fmt.Errorf("limit must be between 1 and %d: %w", MaxPageSize, ErrInvalidInput)
	}
	return nil
}

// Offset converts page/limit into a row offset.
func (p ListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
