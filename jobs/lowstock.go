package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/larder-erp/larder-erp/internal/alerts"
	"github.com/larder-erp/larder-erp/internal/stock"
)

// LowStockSource lists items at or below their reorder threshold.
type LowStockSource interface {
	ListLowStock(ctx context.Context) ([]stock.StockItem, error)
}

// AlertSink receives low-stock notifications.
type AlertSink interface {
	Push(ctx context.Context, alert alerts.Alert) error
}

// LowStockScanner runs the scheduled scan and feeds the alert list.
type LowStockScanner struct {
	source LowStockSource
	sink   AlertSink
	logger *slog.Logger
}

// NewLowStockScanner constructs the scan handler.
func NewLowStockScanner(source LowStockSource, sink AlertSink, logger *slog.Logger) *LowStockScanner {
	return &LowStockScanner{source: source, sink: sink, logger: logger}
}

// Handle processes TaskLowStockScan tasks. Feed push failures are logged
// and do not fail the task; the scan will run again on the next tick.
func (s *LowStockScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	items, err := s.source.ListLowStock(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	pushed := 0
	for _, item := range items {
		alert := alerts.Alert{
			StockItemID: item.ID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			Status:      string(item.Status()),
			At:          now,
		}
		if item.ReorderThreshold != nil {
			alert.Threshold = *item.ReorderThreshold
		}
		if err := s.sink.Push(ctx, alert); err != nil {
			s.logger.Warn("low stock alert push", slog.Int64("stock_item_id", item.ID), slog.Any("error", err))
			continue
		}
		pushed++
	}
	s.logger.Info("low stock scan complete",
		slog.Int("flagged", len(items)),
		slog.Int("pushed", pushed),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}
