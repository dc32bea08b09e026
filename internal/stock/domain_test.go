package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemStatus(t *testing.T) {
	threshold := dec("5")

	cases := []struct {
		name string
		item StockItem
		want ItemStatus
	}{
		{"zero quantity", StockItem{Quantity: dec("0")}, StatusOutOfStock},
		{"zero with threshold", StockItem{Quantity: dec("0"), ReorderThreshold: &threshold}, StatusOutOfStock},
		{"below threshold", StockItem{Quantity: dec("3"), ReorderThreshold: &threshold}, StatusLowStock},
		{"exactly at threshold", StockItem{Quantity: dec("5"), ReorderThreshold: &threshold}, StatusLowStock},
		{"above threshold", StockItem{Quantity: dec("5.001"), ReorderThreshold: &threshold}, StatusInStock},
		{"no threshold set", StockItem{Quantity: dec("0.001")}, StatusInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.item.Status())
		})
	}
}
