package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
)

func TestWriteSalesCSV(t *testing.T) {
	report := analytics.SalesAnalytics{
		From: "2025-03-01",
		To:   "2025-03-31",
		Summary: analytics.Summary{
			TotalRevenue:        decimal.NewFromInt(150000),
			TotalInvoices:       3,
			PaidInvoices:        2,
			AverageInvoiceValue: decimal.NewFromInt(75000),
			RevenueGrowth:       decimal.RequireFromString("12.5"),
		},
		RevenueTrend: []analytics.TrendPoint{{Date: "2025-03-02", Revenue: decimal.NewFromInt(150000), Invoices: 2}},
		TopProducts:  []analytics.ProductSales{{Name: "Widget", Quantity: 6, Revenue: decimal.NewFromInt(150000)}},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteSalesCSV(buf, report))

	reader := csv.NewReader(bytes.NewReader(buf.Bytes()))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Metric", "Value"}, records[0])
	assert.Contains(t, records, []string{"Total Revenue", "150000.00"})
	assert.Contains(t, records, []string{"Revenue Growth %", "12.5"})
	assert.Contains(t, records, []string{"2025-03-02", "150000.00", "2"})
	assert.Equal(t, []string{"Widget", "6", "150000.00"}, records[len(records)-1])
}
