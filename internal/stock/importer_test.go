package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImportRowsPartialFailure(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	qty := dec("10")
	report := svc.ImportRows(ctx, []ImportRow{
		{Name: "Flour 00", Unit: "kg", Quantity: &qty},
		{Name: "", Unit: "kg"},
		{Name: "Butter 82%", Unit: "kg"},
	})

	require.Equal(t, 3, report.TotalRows)
	require.Equal(t, 2, report.SuccessCount)
	require.Equal(t, 1, report.ErrorCount)
	require.Len(t, report.Results, 3)

	require.True(t, report.Results[0].Success)
	require.NotZero(t, report.Results[0].ID)
	require.False(t, report.Results[1].Success)
	require.NotEmpty(t, report.Results[1].Error)
	require.True(t, report.Results[2].Success)
}

func TestImportRowsDuplicateName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateItemInput{Name: "Flour 00", Unit: "kg"})
	require.NoError(t, err)

	report := svc.ImportRows(ctx, []ImportRow{
		{Name: "flour 00", Unit: "kg"},
	})
	require.Equal(t, 1, report.ErrorCount)
	require.Equal(t, "item with this name already exists", report.Results[0].Error)
}

func TestImportRowsEmptyInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	report := svc.ImportRows(context.Background(), nil)
	require.Zero(t, report.TotalRows)
	require.Empty(t, report.Results)
}
