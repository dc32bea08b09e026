package stock

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// ImportRow is one already-parsed tabular row. The transport layer is
// responsible for turning CSV or spreadsheet uploads into rows.
type ImportRow struct {
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Unit             string           `json:"unit"`
	Quantity         *decimal.Decimal `json:"quantity"`
	ReorderThreshold *decimal.Decimal `json:"reorder_threshold"`
}

// RowResult records the outcome of one imported row.
type RowResult struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ImportReport summarises a bulk import. The call as a whole never fails:
// per-row errors live inside the report.
type ImportReport struct {
	TotalRows    int         `json:"total_rows"`
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	Results      []RowResult `json:"results"`
}

// ImportRows inserts rows one by one. Each row is validated and persisted
// independently; a failing row is recorded and processing continues.
func (s *Service) ImportRows(ctx context.Context, rows []ImportRow) ImportReport {
	report := ImportReport{
		TotalRows: len(rows),
		Results:   make([]RowResult, 0, len(rows)),
	}
	for i, row := range rows {
		result := RowResult{Row: i + 1, Name: strings.TrimSpace(row.Name)}

		input := CreateItemInput{
			Name:             row.Name,
			Description:      row.Description,
			Unit:             row.Unit,
			ReorderThreshold: row.ReorderThreshold,
		}
		if row.Quantity != nil {
			input.InitialQuantity = *row.Quantity
		}

		created, err := s.Create(ctx, input)
		if err != nil {
			result.Error = importErrorMessage(err)
			report.ErrorCount++
			report.Results = append(report.Results, result)
			continue
		}
		result.Success = true
		result.ID = created.ID
		report.SuccessCount++
		report.Results = append(report.Results, result)
	}
	return report
}

func importErrorMessage(err error) string {
	if errors.Is(err, shared.ErrConflict) {
		return "item with this name already exists"
	}
	return err.Error()
}
