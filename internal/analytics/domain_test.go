package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
)

func TestSummariseInventory(t *testing.T) {
	products := []inventory.Product{
		{Category: "Paper", Stock: 10, MinStock: 5, Price: decimal.NewFromInt(100), Cost: decimal.NewFromInt(60), Active: true},
		{Category: "Ink", Stock: 2, MinStock: 5, Price: decimal.NewFromInt(50), Cost: decimal.NewFromInt(30), Active: true},
		{Category: "Paper", Stock: 1, MinStock: 0, Price: decimal.NewFromInt(10), Cost: decimal.NewFromInt(5), Active: true},
		{Category: "Retired", Stock: 99, MinStock: 100, Price: decimal.NewFromInt(1), Cost: decimal.NewFromInt(1), Active: false},
	}
	stats := SummariseInventory(products)

	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 1, stats.LowStockCount)
	assert.Equal(t, "665", stats.TotalStockValue.String())
	assert.Equal(t, "1110", stats.TotalRetailValue.String())
	assert.EqualValues(t, 13, stats.TotalItems)
	assert.Equal(t, []string{"Ink", "Paper"}, stats.CategoryList)
	assert.Equal(t, 2, stats.Categories)
}

func TestSummariseInvoices(t *testing.T) {
	stats := SummariseInvoices([]invoicing.Invoice{
		{Status: invoicing.StatusPaid, Items: []invoicing.Item{{Quantity: 2, Price: decimal.NewFromInt(1000)}}, TaxRate: decimal.NewFromInt(10)},
		{Status: invoicing.StatusPending},
		{Status: invoicing.StatusOverdue},
		{Status: invoicing.StatusOverdue},
	})
	assert.Equal(t, "2200", stats.TotalRevenue.String())
	assert.Equal(t, 1, stats.PaidCount)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 2, stats.OverdueCount)
	assert.Equal(t, 4, stats.TotalInvoices)
}

func TestWindows(t *testing.T) {
	current, previous := Windows(time.Date(2025, 3, 31, 18, 30, 0, 0, time.UTC), 7)
	assert.Equal(t, time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC), current.From)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), current.To)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), previous.From)
	assert.Equal(t, time.Date(2025, 3, 23, 0, 0, 0, 0, time.UTC), previous.To)
}

func TestBuildSalesAnalyticsEmpty(t *testing.T) {
	current, _ := Windows(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), 30)
	report := BuildSalesAnalytics(30, current, nil, nil)
	assert.True(t, report.Summary.TotalRevenue.IsZero())
	assert.True(t, report.Summary.RevenueGrowth.IsZero())
	assert.Empty(t, report.RevenueTrend)
	assert.Empty(t, report.StatusDistribution)
	assert.NotNil(t, report.TopProducts)
	assert.NotNil(t, report.RecentTransactions)
}
