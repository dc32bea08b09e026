package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Alert is one low-stock notification produced by the scan job.
type Alert struct {
	StockItemID int64           `json:"stock_item_id"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Threshold   decimal.Decimal `json:"threshold"`
	Status      string          `json:"status"`
	At          time.Time       `json:"at"`
}

const defaultFeedKey = "stock:lowstock:alerts"

// DefaultFeedSize caps how many alerts the feed retains.
const DefaultFeedSize = 200

// Feed is a capped, redis-backed list of recent low-stock alerts. It is a
// notification surface only; quantity reads always hit the database.
type Feed struct {
	client *redis.Client
	key    string
	max    int64
}

// NewFeed builds Feed. A max of zero falls back to DefaultFeedSize.
func NewFeed(client *redis.Client, max int64) *Feed {
	if max <= 0 {
		max = DefaultFeedSize
	}
	return &Feed{client: client, key: defaultFeedKey, max: max}
}

// Push prepends an alert and trims the feed to its cap.
func (f *Feed) Push(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("alerts: marshal: %w", err)
	}
	pipe := f.client.TxPipeline()
	pipe.LPush(ctx, f.key, payload)
	pipe.LTrim(ctx, f.key, 0, f.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("alerts: push: %w", err)
	}
	return nil
}

// Recent returns up to n alerts, newest first.
func (f *Feed) Recent(ctx context.Context, n int64) ([]Alert, error) {
	if n <= 0 || n > f.max {
		n = f.max
	}
	raw, err := f.client.LRange(ctx, f.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("alerts: range: %w", err)
	}
	result := make([]Alert, 0, len(raw))
	for _, item := range raw {
		var alert Alert
		if err := json.Unmarshal([]byte(item), &alert); err != nil {
			return nil, fmt.Errorf("alerts: unmarshal: %w", err)
		}
		result = append(result, alert)
	}
	return result, nil
}
