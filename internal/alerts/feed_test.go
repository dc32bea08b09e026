package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T, max int64) *Feed {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFeed(client, max)
}

func TestFeedPushAndRecent(t *testing.T) {
	feed := newTestFeed(t, 10)
	ctx := context.Background()

	first := Alert{
		StockItemID: 1,
		Name:        "Flour 00",
		Quantity:    decimal.RequireFromString("2.000"),
		Threshold:   decimal.RequireFromString("5.000"),
		Status:      "LOW_STOCK",
		At:          time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, feed.Push(ctx, first))
	require.NoError(t, feed.Push(ctx, Alert{StockItemID: 2, Name: "Butter 82%", Status: "OUT_OF_STOCK"}))

	recent, err := feed.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// newest first
	require.Equal(t, int64(2), recent[0].StockItemID)
	require.Equal(t, int64(1), recent[1].StockItemID)
	require.Equal(t, "Flour 00", recent[1].Name)
	require.True(t, recent[1].Quantity.Equal(first.Quantity))
}

func TestFeedTrimsToCap(t *testing.T) {
	feed := newTestFeed(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, feed.Push(ctx, Alert{StockItemID: int64(i), Name: fmt.Sprintf("item-%d", i)}))
	}

	recent, err := feed.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, int64(5), recent[0].StockItemID)
	require.Equal(t, int64(3), recent[2].StockItemID)
}

func TestFeedRecentLimit(t *testing.T) {
	feed := newTestFeed(t, 10)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, feed.Push(ctx, Alert{StockItemID: int64(i)}))
	}

	recent, err := feed.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// zero and out-of-range fall back to the cap
	recent, err = feed.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
}

func TestFeedEmpty(t *testing.T) {
	feed := newTestFeed(t, 10)

	recent, err := feed.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, recent)
}
