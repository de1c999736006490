package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/store/memory"
)

func TestCatalogueEditsRefreshCachedStats(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	services := BuildServices(testConfig(), MemoryStores(memory.New()), client, nil, logger)
	ctx := context.Background()

	a, err := services.Inventory.CreateProduct(ctx, inventory.ProductInput{
		SKU: "CACHED-A", Name: "Cached A", Price: decimal.NewFromInt(10), Stock: 4,
	})
	require.NoError(t, err)
	stats, err := services.Analytics.InventoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProducts)
	assert.True(t, stats.TotalRetailValue.Equal(decimal.NewFromInt(40)))

	_, err = services.Inventory.UpdateProduct(ctx, a.ID, inventory.ProductInput{
		SKU: "CACHED-A", Name: "Cached A", Price: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	stats, err = services.Analytics.InventoryStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalRetailValue.Equal(decimal.NewFromInt(4000)), stats.TotalRetailValue.String())

	b, err := services.Inventory.CreateProduct(ctx, inventory.ProductInput{
		SKU: "CACHED-B", Name: "Cached B", Price: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	stats, err = services.Analytics.InventoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalProducts)

	deactivated, err := services.Inventory.DeleteProduct(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	stats, err = services.Analytics.InventoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProducts)
}
